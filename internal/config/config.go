package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	HTTPPort  string
	LogLevel  string
	LogFormat string

	OwnerID   string
	Namespace string
	Backend   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MongoURI      string
	MongoDBName   string

	MongoConnectTimeout         time.Duration
	MongoServerSelectionTimeout time.Duration
	MongoMaxPoolSize            int

	BackendBaseURL     string
	BackendTimeout     time.Duration
	ValidationTimeout  time.Duration
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration

	KafkaBrokers    []string
	KafkaOrderTopic string
	KafkaGroupID    string

	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

func LoadConfig() *Config {
	return &Config{
		HTTPPort:  getEnv("HTTP_PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		OwnerID:   getEnv("CART_OWNER_ID", "device"),
		Namespace: getEnv("CART_NAMESPACE", "storefront"),
		Backend:   getEnv("CART_BACKEND", BackendRedis),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "storefront"),

		MongoConnectTimeout:         getEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		MongoServerSelectionTimeout: getEnvAsDuration("MONGO_SERVER_SELECTION_TIMEOUT", 5*time.Second),
		MongoMaxPoolSize:            getEnvAsInt("MONGO_MAX_POOL_SIZE", 10),

		BackendBaseURL:     getEnv("BACKEND_BASE_URL", "http://localhost:8000"),
		BackendTimeout:     getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second),
		ValidationTimeout:  getEnvAsDuration("VALIDATION_TIMEOUT", 5*time.Second),
		BreakerMaxFailures: getEnvAsInt("BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout: getEnvAsDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "order-events"),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "storefront-cart"),

		ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendRedis, BackendMongo, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown CART_BACKEND %q", c.Backend))
	}
	if c.OwnerID == "" {
		errs = append(errs, errors.New("CART_OWNER_ID must not be empty"))
	}
	if c.BackendTimeout <= 0 {
		errs = append(errs, errors.New("BACKEND_TIMEOUT must be positive"))
	}
	if c.ValidationTimeout <= 0 {
		errs = append(errs, errors.New("VALIDATION_TIMEOUT must be positive"))
	}
	if c.MongoMaxPoolSize <= 0 {
		errs = append(errs, errors.New("MONGO_MAX_POOL_SIZE must be positive"))
	}
	if c.BreakerMaxFailures <= 0 {
		errs = append(errs, errors.New("BREAKER_MAX_FAILURES must be positive"))
	}
	return errors.Join(errs...)
}

// PollerEnabled is true when at least one kafka broker is configured.
func (c *Config) PollerEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
