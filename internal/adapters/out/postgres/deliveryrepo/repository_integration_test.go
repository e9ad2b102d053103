package deliveryrepo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"dispatch/internal/adapters/out/postgres/deliveryrepo"
	"dispatch/internal/core/domain/model/delivery"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gorm_postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type mockAggregateTracker struct{}

func (m *mockAggregateTracker) TrackAggregate(_ kernel.UUID, _ any) {}

type GormDeliveryRepositoryTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *gorm.DB
	repo      *deliveryrepo.GormDeliveryRepository
}

func (suite *GormDeliveryRepositoryTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(gorm_postgres.Open(dsn), &gorm.Config{})
	suite.Require().NoError(err)
	suite.db = db

	err = db.AutoMigrate(&deliveryrepo.DeliveryDTO{})
	suite.Require().NoError(err)

	suite.repo = deliveryrepo.NewGormDeliveryRepository(db, &mockAggregateTracker{})
}

func (suite *GormDeliveryRepositoryTestSuite) TearDownSuite() {
	if suite.container != nil {
		err := suite.container.Terminate(context.Background())
		suite.Require().NoError(err)
	}
}

func (suite *GormDeliveryRepositoryTestSuite) SetupTest() {
	err := suite.db.Exec("TRUNCATE TABLE deliveries CASCADE").Error
	suite.Require().NoError(err)
}

// createOfferedDelivery persists a delivery already offered to the driver.
func (suite *GormDeliveryRepositoryTestSuite) createOfferedDelivery(driverID kernel.UUID) *delivery.Delivery {
	pickup, err := kernel.NewGeoPoint(55.751244, 37.618423)
	suite.Require().NoError(err)
	dropoff, err := kernel.NewGeoPoint(55.760186, 37.618711)
	suite.Require().NoError(err)

	d, err := delivery.NewDelivery(
		kernel.NewUUID(), pickup, dropoff, 12.5, delivery.SourceIndividual, time.Now().UTC())
	suite.Require().NoError(err)
	suite.Require().NoError(d.Offer(driverID))

	suite.Require().NoError(suite.repo.Add(context.Background(), d))
	return d
}

func (suite *GormDeliveryRepositoryTestSuite) TestAddAndGet_RoundTrip() {
	driverID := kernel.NewUUID()
	added := suite.createOfferedDelivery(driverID)

	loaded, err := suite.repo.Get(context.Background(), added.ID())

	suite.Require().NoError(err)
	suite.True(loaded.ID().IsEqual(added.ID()))
	suite.Equal(delivery.Offered, loaded.Status())
	suite.Require().NotNil(loaded.Driver())
	suite.True(loaded.Driver().IsEqual(driverID))
	suite.InDelta(12.5, loaded.Price(), 0.001)
}

func (suite *GormDeliveryRepositoryTestSuite) TestGet_UnknownID_ReturnsNotFound() {
	_, err := suite.repo.Get(context.Background(), kernel.NewUUID())

	suite.Require().Error(err)
	suite.ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *GormDeliveryRepositoryTestSuite) TestClaim_OfferedDelivery_AssignsToDriver() {
	driverID := kernel.NewUUID()
	offered := suite.createOfferedDelivery(driverID)

	claimed, err := suite.repo.Claim(context.Background(), offered.ID(), driverID)

	suite.Require().NoError(err)
	suite.Equal(delivery.Assigned, claimed.Status())
	suite.Require().NotNil(claimed.Driver())
	suite.True(claimed.Driver().IsEqual(driverID))
	suite.NotNil(claimed.AssignedAt())
}

func (suite *GormDeliveryRepositoryTestSuite) TestClaim_WrongDriver_ReturnsConflict() {
	offered := suite.createOfferedDelivery(kernel.NewUUID())

	_, err := suite.repo.Claim(context.Background(), offered.ID(), kernel.NewUUID())

	suite.Require().Error(err)
	suite.ErrorIs(err, errs.ErrClaimConflict)
}

func (suite *GormDeliveryRepositoryTestSuite) TestClaim_AlreadyClaimed_ReturnsConflict() {
	driverID := kernel.NewUUID()
	offered := suite.createOfferedDelivery(driverID)

	_, err := suite.repo.Claim(context.Background(), offered.ID(), driverID)
	suite.Require().NoError(err)

	_, err = suite.repo.Claim(context.Background(), offered.ID(), driverID)
	suite.Require().Error(err)
	suite.ErrorIs(err, errs.ErrClaimConflict)
}

func (suite *GormDeliveryRepositoryTestSuite) TestClaim_ConcurrentCallers_ExactlyOneWins() {
	driverID := kernel.NewUUID()
	offered := suite.createOfferedDelivery(driverID)

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan error, callers)

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.repo.Claim(context.Background(), offered.ID(), driverID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			suite.ErrorIs(err, errs.ErrClaimConflict)
			conflicts++
		}
	}

	suite.Equal(1, wins, "the conditional update admits exactly one winner")
	suite.Equal(callers-1, conflicts)
}

func (suite *GormDeliveryRepositoryTestSuite) TestRelease_OfferedDelivery_ReturnsToPool() {
	driverID := kernel.NewUUID()
	offered := suite.createOfferedDelivery(driverID)

	err := suite.repo.Release(context.Background(), offered.ID(), driverID)
	suite.Require().NoError(err)

	released, err := suite.repo.Get(context.Background(), offered.ID())
	suite.Require().NoError(err)
	suite.Equal(delivery.Unassigned, released.Status())
	suite.Nil(released.Driver())
}

func (suite *GormDeliveryRepositoryTestSuite) TestRelease_AfterClaim_ReturnsConflict() {
	driverID := kernel.NewUUID()
	offered := suite.createOfferedDelivery(driverID)

	_, err := suite.repo.Claim(context.Background(), offered.ID(), driverID)
	suite.Require().NoError(err)

	err = suite.repo.Release(context.Background(), offered.ID(), driverID)
	suite.Require().Error(err)
	suite.ErrorIs(err, errs.ErrClaimConflict)
}

func (suite *GormDeliveryRepositoryTestSuite) TestUpdateFinal_TerminalStatus_Persists() {
	driverID := kernel.NewUUID()
	offered := suite.createOfferedDelivery(driverID)
	claimed, err := suite.repo.Claim(context.Background(), offered.ID(), driverID)
	suite.Require().NoError(err)

	now := time.Now().UTC()
	for _, next := range []delivery.Status{
		delivery.HeadingToPickup, delivery.AtPickup, delivery.Collected,
		delivery.HeadingToDropoff, delivery.AtDropoff, delivery.Delivered,
	} {
		suite.Require().NoError(claimed.Advance(next, now))
	}

	err = suite.repo.UpdateFinal(context.Background(), claimed)
	suite.Require().NoError(err)

	final, err := suite.repo.Get(context.Background(), claimed.ID())
	suite.Require().NoError(err)
	suite.Equal(delivery.Delivered, final.Status())
	suite.NotNil(final.CompletedAt())
}

func (suite *GormDeliveryRepositoryTestSuite) TestUpdateFinal_NonTerminalStatus_IsRejected() {
	driverID := kernel.NewUUID()
	offered := suite.createOfferedDelivery(driverID)
	claimed, err := suite.repo.Claim(context.Background(), offered.ID(), driverID)
	suite.Require().NoError(err)

	err = suite.repo.UpdateFinal(context.Background(), claimed)

	suite.Require().Error(err)
	suite.ErrorIs(err, errs.ErrValueIsInvalid)
}

func (suite *GormDeliveryRepositoryTestSuite) TestUpdateFinal_MissingRow_ReturnsPersistenceError() {
	driverID := kernel.NewUUID()
	pickup, _ := kernel.NewGeoPoint(55.75, 37.61)
	dropoff, _ := kernel.NewGeoPoint(55.76, 37.62)
	now := time.Now().UTC()
	unsaved, err := delivery.RestoreDelivery(
		kernel.NewUUID(), delivery.Cancelled, &driverID, pickup, dropoff,
		10, delivery.SourceIndividual, now, &now, &now)
	suite.Require().NoError(err)

	err = suite.repo.UpdateFinal(context.Background(), unsaved)

	suite.Require().Error(err)
	suite.ErrorIs(err, errs.ErrPersistence)
}

func (suite *GormDeliveryRepositoryTestSuite) TestGetAllActiveForDriver_FiltersTerminalAndForeignRows() {
	driverID := kernel.NewUUID()
	otherDriver := kernel.NewUUID()

	active := suite.createOfferedDelivery(driverID)
	foreign := suite.createOfferedDelivery(otherDriver)

	finished := suite.createOfferedDelivery(driverID)
	claimed, err := suite.repo.Claim(context.Background(), finished.ID(), driverID)
	suite.Require().NoError(err)
	suite.Require().NoError(claimed.Advance(delivery.Cancelled, time.Now().UTC()))
	suite.Require().NoError(suite.repo.UpdateFinal(context.Background(), claimed))

	actives, err := suite.repo.GetAllActiveForDriver(context.Background(), driverID)

	suite.Require().NoError(err)
	suite.Require().Len(actives, 1)
	suite.True(actives[0].ID().IsEqual(active.ID()))
	suite.False(actives[0].ID().IsEqual(foreign.ID()))
}

func TestGormDeliveryRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(GormDeliveryRepositoryTestSuite))
}
