package cmd

// Config carries the runtime settings of one dispatch client instance.
// Every field is sourced from the environment; see cmd/app/main.go.
type Config struct {
	HTTPPort   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	AmqpURL    string
	RedisAddr  string

	// DriverID and DriverName identify the driver this instance serves.
	DriverID       string
	DriverName     string
	DriverVerified bool

	// StartLat and StartLon seed the simulated position source.
	StartLat float64
	StartLon float64
}
