package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	Environment string

	StorageDriver              string
	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string
	StorageBucket              string

	AuthProvider string
	JWTSecret    string
	JWTExpiry    int64

	WSAuthTimeout    time.Duration
	WSSendBuffer     int
	MessageMaxLength int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PresenceTTL   time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		StorageDriver:              getEnv("STORAGE_DRIVER", "firestore"),
		FirebaseProject:            getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		StorageBucket:              getEnv("STORAGE_BUCKET", ""),

		AuthProvider: getEnv("AUTH_PROVIDER", "firebase"),
		JWTSecret:    getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiry:    getEnvAsInt64("JWT_EXPIRY", 24*60*60), // 24 hours

		WSAuthTimeout:    getEnvAsDuration("WS_AUTH_TIMEOUT", 10*time.Second),
		WSSendBuffer:     int(getEnvAsInt64("WS_SEND_BUFFER", 256)),
		MessageMaxLength: int(getEnvAsInt64("MESSAGE_MAX_LENGTH", 1000)),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       int(getEnvAsInt64("REDIS_DB", 0)),
		PresenceTTL:   getEnvAsDuration("PRESENCE_TTL", 24*time.Hour),
	}

	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("15s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
