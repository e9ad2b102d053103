package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"dispatch/cmd"
	"dispatch/internal/adapters/out/postgres/checkpointrepo"
	"dispatch/internal/adapters/out/postgres/deliveryrepo"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	gorm_postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configs := getConfigs()

	db := mustConnectDB(configs)

	root, err := cmd.NewCompositionRoot(configs, db, logger)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}
	defer func() {
		if closeErr := root.Close(); closeErr != nil {
			logger.Error("Shutdown cleanup failed", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Offer events flow in over the driver's offer topic for the whole
	// process lifetime.
	go func() {
		if runErr := root.Coordinator().Run(ctx); runErr != nil {
			logger.Error("Offer coordinator stopped", "error", runErr)
		}
	}()

	// Intermediate progress is not persisted, so after a restart the last
	// stored row is re-adopted as the active delivery.
	if err := root.Orchestrator().RestoreActiveDelivery(ctx); err != nil {
		logger.Warn("Could not restore active delivery", "error", err)
	}

	if err := root.JobManager().StartAll(); err != nil {
		log.Fatalf("Failed to start background jobs: %v", err)
	}
	defer root.JobManager().StopAll()

	startWebServer(ctx, root, configs.HTTPPort, logger)
}

func mustConnectDB(configs cmd.Config) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		configs.DBHost, configs.DBPort, configs.DBUser,
		configs.DBPassword, configs.DBName, configs.DBSslMode)

	db, err := gorm.Open(gorm_postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&deliveryrepo.DeliveryDTO{}, &checkpointrepo.CheckpointDTO{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func getConfigs() cmd.Config {
	return cmd.Config{
		HTTPPort:       goDotEnvVariable("HTTP_PORT"),
		DBHost:         goDotEnvVariable("DB_HOST"),
		DBPort:         goDotEnvVariable("DB_PORT"),
		DBUser:         goDotEnvVariable("DB_USER"),
		DBPassword:     goDotEnvVariable("DB_PASSWORD"),
		DBName:         goDotEnvVariable("DB_NAME"),
		DBSslMode:      goDotEnvVariable("DB_SSLMODE"),
		AmqpURL:        goDotEnvVariable("AMQP_URL"),
		RedisAddr:      goDotEnvVariable("REDIS_ADDR"),
		DriverID:       goDotEnvVariable("DRIVER_ID"),
		DriverName:     goDotEnvVariable("DRIVER_NAME"),
		DriverVerified: envBool("DRIVER_VERIFIED"),
		StartLat:       envFloat("START_LAT"),
		StartLon:       envFloat("START_LON"),
	}
}

func goDotEnvVariable(key string) string {
	err := godotenv.Load(".env")
	if err != nil {
		log.Fatalf("Error loading .env file")
	}
	return os.Getenv(key)
}

func envBool(key string) bool {
	value, err := strconv.ParseBool(goDotEnvVariable(key))
	if err != nil {
		log.Fatalf("Invalid boolean for %s: %v", key, err)
	}
	return value
}

func envFloat(key string) float64 {
	value, err := strconv.ParseFloat(goDotEnvVariable(key), 64)
	if err != nil {
		log.Fatalf("Invalid number for %s: %v", key, err)
	}
	return value
}

func startWebServer(ctx context.Context, root *cmd.CompositionRoot, port string, logger *slog.Logger) {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	root.Server().RegisterRoutes(e)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	if err := e.Start(fmt.Sprintf("0.0.0.0:%s", port)); err != nil {
		logger.Info("Server stopped", "reason", err)
	}
}
