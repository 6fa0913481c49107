package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Env string

	// Database
	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// Image storage
	ImagesDir string

	// Bluesky
	BskyUser    string
	BskyPass    string
	FirehoseURL string
	PDSURL      string

	// Redis (optional wake-up channel between services)
	RedisURL string

	// Ops HTTP surface (empty = disabled)
	OpsAddr string

	// Stream
	QueueSize int

	// Process
	BatchSize     int
	BatchInterval time.Duration
	BatchPostpone time.Duration
	BatchWait     time.Duration

	// Logging
	LogLevel string
}

func Load() *Config {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Env: getEnv("SF_ENV", "development"),

		DBHost: getEnv("SF_DB_HOST", ""),
		DBPort: getEnv("SF_DB_PORT", ""),
		DBName: getEnv("SF_DB_NAME", ""),
		DBUser: getEnv("SF_DB_USER", ""),
		DBPass: getEnv("SF_DB_PASS", ""),

		ImagesDir: getEnv("SF_DB_IMAGES_DIR", ""),

		BskyUser:    getEnv("SF_BSKY_USER", ""),
		BskyPass:    getEnv("SF_BSKY_PASS", ""),
		FirehoseURL: getEnv("SF_FIREHOSE_URL", "wss://bsky.network/xrpc/com.atproto.sync.subscribeRepos"),
		PDSURL:      getEnv("SF_PDS_URL", "https://bsky.social"),

		RedisURL: getEnv("SF_REDIS_URL", ""),

		OpsAddr: getEnv("SF_OPS_ADDR", ""),

		QueueSize: parseInt(getEnv("SF_QUEUE_SIZE", "1024"), 1024),

		BatchSize:     parseInt(getEnv("SF_BATCH_SIZE", "10"), 10),
		BatchInterval: parseDuration(getEnv("SF_BATCH_INTERVAL", "500ms"), 500*time.Millisecond),
		BatchPostpone: parseDuration(getEnv("SF_BATCH_POSTPONE", "500ms"), 500*time.Millisecond),
		BatchWait:     parseDuration(getEnv("SF_BATCH_WAIT", "4s"), 4*time.Second),

		LogLevel: getEnv("SF_LOG_LEVEL", "info"),
	}
}

// Validate reports every required variable that is missing, so the operator
// can fix the environment in one pass.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"SF_DB_HOST", c.DBHost},
		{"SF_DB_PORT", c.DBPort},
		{"SF_DB_NAME", c.DBName},
		{"SF_DB_USER", c.DBUser},
		{"SF_DB_PASS", c.DBPass},
		{"SF_DB_IMAGES_DIR", c.ImagesDir},
		{"SF_BSKY_USER", c.BskyUser},
		{"SF_BSKY_PASS", c.BskyPass},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DSN builds the key/value connection string for lib/pq.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPass)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseInt(s string, defaultValue int) int {
	value, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return value
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
