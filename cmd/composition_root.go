package cmd

import (
	"fmt"
	"log/slog"

	httpin "dispatch/internal/adapters/in/http"
	"dispatch/internal/adapters/out/amqp"
	"dispatch/internal/adapters/out/notify"
	"dispatch/internal/adapters/out/position"
	"dispatch/internal/adapters/out/postgres"
	redisout "dispatch/internal/adapters/out/redis"
	"dispatch/internal/core/application/broadcast"
	"dispatch/internal/core/application/flow"
	"dispatch/internal/core/application/offers"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/jobs"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CompositionRoot wires every adapter and application component of the
// dispatch client for one driver.
type CompositionRoot struct {
	gormDB      *gorm.DB
	amqpClient  *amqp.Client
	redisClient *redis.Client
	simulator   *position.Simulator

	uowFactory   *postgres.GormUnitOfWorkFactory
	orchestrator *flow.Orchestrator
	coordinator  *offers.Coordinator
	jobManager   *jobs.JobManager
	server       *httpin.Server
}

// NewCompositionRoot builds the full object graph from configuration and an
// open database connection.
func NewCompositionRoot(config Config, gormDB *gorm.DB, logger *slog.Logger) (*CompositionRoot, error) {
	driverID, err := kernel.UUIDFromString(config.DriverID)
	if err != nil {
		return nil, fmt.Errorf("invalid driver id: %w", err)
	}

	drv, err := driver.NewDriver(driverID, config.DriverName, config.DriverVerified)
	if err != nil {
		return nil, fmt.Errorf("invalid driver settings: %w", err)
	}

	start, err := kernel.NewGeoPoint(config.StartLat, config.StartLon)
	if err != nil {
		return nil, fmt.Errorf("invalid start coordinates: %w", err)
	}

	amqpClient, err := amqp.NewClient(config.AmqpURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp client: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
	presence := redisout.NewPresenceStore(redisClient, logger)

	simulator, err := position.NewSimulator(start, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create position simulator: %w", err)
	}

	notifier := notify.NewLogNotifier(logger)
	breaker := broadcast.NewCircuitBreaker()
	leases := broadcast.NewLeaseManager(amqpClient, breaker)

	publisher, err := broadcast.NewPublisher(amqpClient, breaker, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	broadcaster, err := broadcast.NewBroadcaster(driverID, simulator, publisher, presence, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create broadcaster: %w", err)
	}

	uowFactory := postgres.NewGormUnitOfWorkFactory(gormDB)
	deliveries := uowFactory.Create().DeliveryRepository()

	coordinator, err := offers.NewCoordinator(driverID, deliveries, leases, notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create offer coordinator: %w", err)
	}

	orchestrator, err := flow.NewOrchestrator(
		drv, coordinator, broadcaster, publisher, leases,
		uowFactory, simulator, presence, notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	jobManager := jobs.NewJobManager(orchestrator, simulator, presence, logger)

	server := httpin.NewServer(orchestrator, queries.NewGetActiveDeliveriesQueryHandler(gormDB))

	return &CompositionRoot{
		gormDB:       gormDB,
		amqpClient:   amqpClient,
		redisClient:  redisClient,
		simulator:    simulator,
		uowFactory:   uowFactory,
		orchestrator: orchestrator,
		coordinator:  coordinator,
		jobManager:   jobManager,
		server:       server,
	}, nil
}

// Orchestrator returns the delivery flow orchestrator.
func (c *CompositionRoot) Orchestrator() *flow.Orchestrator {
	return c.orchestrator
}

// Coordinator returns the offer coordinator.
func (c *CompositionRoot) Coordinator() *offers.Coordinator {
	return c.coordinator
}

// JobManager returns the scheduled job manager.
func (c *CompositionRoot) JobManager() *jobs.JobManager {
	return c.jobManager
}

// Server returns the HTTP server.
func (c *CompositionRoot) Server() *httpin.Server {
	return c.server
}

// Close releases all held connections.
func (c *CompositionRoot) Close() error {
	c.simulator.Shutdown()

	if err := c.amqpClient.Close(); err != nil {
		return err
	}
	return c.redisClient.Close()
}
