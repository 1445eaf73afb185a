package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"boxoffice/internal/shared/constants"
)

// Config holds all configuration for the booking service
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Booking rules
	Booking BookingConfig

	// Expiration sweeper
	Sweeper SweeperConfig

	// Charge authority
	Payment PaymentConfig

	// Audit event stream
	Kafka KafkaConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	// TTL values for different operations
	SeatMapTTL      time.Duration
	WebhookEventTTL time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled                 bool          `json:"enabled"`
	WindowDuration          time.Duration `json:"window_duration"`
	DefaultRequests         int           `json:"default_requests"`
	PublicRequests          int           `json:"public_requests"`
	BookingRequests         int           `json:"booking_requests"`
	BookingCriticalRequests int           `json:"booking_critical_requests"`
	WebhookRequests         int           `json:"webhook_requests"`
	AdminRequests           int           `json:"admin_requests"`
	HealthRequests          int           `json:"health_requests"`
	WhitelistedIPs          []string      `json:"whitelisted_ips"`
}

// BookingConfig holds reservation and order rules
type BookingConfig struct {
	MaxSeatsPerReservation int
	ReservationTTL         time.Duration
	ExtensionDuration      time.Duration
	MaxExtensions          int
	RequireIdempotencyKey  bool
	Currency               string
}

// SweeperConfig holds expiration sweeper configuration
type SweeperConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
	LeaseTTL  time.Duration
}

// PaymentConfig holds charge authority configuration
type PaymentConfig struct {
	Provider         string
	BaseURL          string
	APIKey           string
	WebhookSecret    string
	WebhookTolerance time.Duration
	Timeout          time.Duration
}

// KafkaConfig holds audit stream configuration
type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	AuditTopic string
	ClientID   string
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "boxoffice_db"),
			User:     getEnv("DB_USER", "boxoffice_user"),
			Password: getEnv("DB_PASSWORD", "boxoffice_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			SeatMapTTL:      getDurationEnv("REDIS_SEAT_MAP_TTL", constants.TTL_SEAT_MAP),
			WebhookEventTTL: getDurationEnv("REDIS_WEBHOOK_EVENT_TTL", constants.TTL_WEBHOOK_EVENT),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:                 getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:          getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:         getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:          getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 120),
			BookingRequests:         getIntEnv("RATE_LIMIT_BOOKING_REQUESTS", 30),
			BookingCriticalRequests: getIntEnv("RATE_LIMIT_BOOKING_CRITICAL_REQUESTS", 10),
			WebhookRequests:         getIntEnv("RATE_LIMIT_WEBHOOK_REQUESTS", 600),
			AdminRequests:           getIntEnv("RATE_LIMIT_ADMIN_REQUESTS", 200),
			HealthRequests:          getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
			WhitelistedIPs:          getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		Booking: BookingConfig{
			MaxSeatsPerReservation: getIntEnv("RESERVATION_MAX_SEATS", 10),
			ReservationTTL:         getDurationEnv("RESERVATION_TTL", 10*time.Minute),
			ExtensionDuration:      getDurationEnv("RESERVATION_EXTENSION", 5*time.Minute),
			MaxExtensions:          getIntEnv("RESERVATION_MAX_EXTENSIONS", 3),
			RequireIdempotencyKey:  getBoolEnv("REQUIRE_IDEMPOTENCY_KEY", false),
			Currency:               strings.ToUpper(getEnv("CURRENCY", "USD")),
		},

		Sweeper: SweeperConfig{
			Enabled:   getBoolEnv("SWEEPER_ENABLED", true),
			Interval:  getDurationEnv("SWEEPER_INTERVAL", 30*time.Second),
			BatchSize: getIntEnv("SWEEPER_BATCH_SIZE", 100),
			LeaseTTL:  getDurationEnv("SWEEPER_LEASE_TTL", 25*time.Second),
		},

		Payment: PaymentConfig{
			Provider:         getEnv("PAYMENT_PROVIDER", "sandbox"),
			BaseURL:          getEnv("PAYMENT_BASE_URL", ""),
			APIKey:           getEnv("PAYMENT_API_KEY", ""),
			WebhookSecret:    getEnv("PAYMENT_WEBHOOK_SECRET", "whsec_dev"),
			WebhookTolerance: getDurationEnv("PAYMENT_WEBHOOK_TOLERANCE", 5*time.Minute),
			Timeout:          getDurationEnv("PAYMENT_TIMEOUT", 10*time.Second),
		},

		Kafka: KafkaConfig{
			Enabled:    getBoolEnv("KAFKA_ENABLED", false),
			Brokers:    getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "booking-audit"),
			ClientID:   getEnv("KAFKA_CLIENT_ID", "boxoffice"),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
