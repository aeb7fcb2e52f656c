package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the services read from the environment.
// Each binary only uses the sections it needs.
type Config struct {
	ServiceName string
	ServicePort int
	LogLevel    string

	// PostgreSQL
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost string
	RedisPort int
	CacheTTL  time.Duration

	// Broker selection: "kafka" or "rabbitmq"
	Broker        string
	KafkaBrokers  []string
	RabbitHost    string
	RabbitPort    int
	RabbitUser    string
	RabbitPass    string
	ConsumerGroup string

	// Retry policy for subscribed topics
	RetryAttempts      int
	RetryDelay         time.Duration
	RetryMultiplier    float64
	RetryMaxDelay      time.Duration
	LockWaitTime       time.Duration
	LockLeaseTime      time.Duration
	LockKeyPrefix      string
	UpstreamTimeout    time.Duration
	SagaRecoverOnStart bool

	// Service discovery
	ConsulHost string
	ConsulPort int

	// Fallback URLs used when Consul has no healthy instance
	PaymentServiceURL   string
	InventoryServiceURL string
	OrderServiceURL     string
	ProductServiceURL   string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// OpenTelemetry
	OtelEndpoint   string
	OtelAuthHeader string
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ .env not loaded, using process environment: %v", err)
	}

	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "shopsaga"),
		ServicePort: getIntEnv("SERVICE_PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getIntEnv("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "shopsaga"),
		DBPassword: getEnv("DB_PASSWORD", "shopsaga123"),
		DBName:     getEnv("DB_NAME", "shopsaga"),

		RedisHost: getEnv("REDIS_HOST", "localhost"),
		RedisPort: getIntEnv("REDIS_PORT", 6379),
		CacheTTL:  getDurationMsEnv("CACHE_TTL_MS", 5*time.Minute),

		Broker:        getEnv("BROKER", "kafka"),
		KafkaBrokers:  []string{getEnv("KAFKA_BROKER", "localhost:9092")},
		RabbitHost:    getEnv("RABBITMQ_HOST", "localhost"),
		RabbitPort:    getIntEnv("RABBITMQ_PORT", 5672),
		RabbitUser:    getEnv("RABBITMQ_USER", "guest"),
		RabbitPass:    getEnv("RABBITMQ_PASSWORD", "guest"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "shopsaga"),

		RetryAttempts:      getIntEnv("RETRY_ATTEMPTS", 4),
		RetryDelay:         getDurationMsEnv("RETRY_DELAY_MS", 3*time.Second),
		RetryMultiplier:    getFloatEnv("RETRY_MULTIPLIER", 1.5),
		RetryMaxDelay:      getDurationMsEnv("RETRY_MAX_DELAY_MS", 15*time.Second),
		LockWaitTime:       getDurationMsEnv("LOCK_WAIT_MS", 5*time.Second),
		LockLeaseTime:      getDurationMsEnv("LOCK_LEASE_MS", 10*time.Second),
		LockKeyPrefix:      getEnv("LOCK_KEY_PREFIX", "lock:"),
		UpstreamTimeout:    getDurationMsEnv("UPSTREAM_TIMEOUT_MS", 10*time.Second),
		SagaRecoverOnStart: getBoolEnv("SAGA_RECOVER_ON_START", true),

		ConsulHost: getEnv("CONSUL_HOST", "localhost"),
		ConsulPort: getIntEnv("CONSUL_PORT", 8500),

		PaymentServiceURL:   getEnv("PAYMENT_SERVICE_URL", "http://payment-service:8083"),
		InventoryServiceURL: getEnv("INVENTORY_SERVICE_URL", "http://inventory-service:8084"),
		OrderServiceURL:     getEnv("ORDER_SERVICE_URL", "http://order-service:8082"),
		ProductServiceURL:   getEnv("PRODUCT_SERVICE_URL", "http://product-service:8081"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		OtelEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelAuthHeader: getEnv("OTEL_AUTH_HEADER", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("⚠️ %s=%q is not an integer, using %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getBoolEnv(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("⚠️ %s=%q is not a boolean, using %t", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getFloatEnv(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("⚠️ %s=%q is not a number, using %v", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

// getDurationMsEnv reads a millisecond count, matching the units the lock and retry settings use.
func getDurationMsEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	ms, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("⚠️ %s=%q is not a millisecond count, using %s", key, valueStr, defaultValue)
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

// LoadFor is Load with per-binary defaults: SERVICE_NAME, SERVICE_PORT and CONSUMER_GROUP
// fall back to the binary's own name and port instead of the shared defaults.
func LoadFor(serviceName string, defaultPort int) *Config {
	cfg := Load()
	if _, ok := os.LookupEnv("SERVICE_NAME"); !ok {
		cfg.ServiceName = serviceName
	}
	if _, ok := os.LookupEnv("SERVICE_PORT"); !ok {
		cfg.ServicePort = defaultPort
	}
	if _, ok := os.LookupEnv("CONSUMER_GROUP"); !ok {
		cfg.ConsumerGroup = cfg.ServiceName
	}
	return cfg
}
