package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Square   SquareConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port         string
	AdminPort    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SquareConfig holds the gateway settings for the Square Web Payments
// integration. AccessToken is server-only and must never reach a client;
// ClientSettings() is the only projection handed to browsers.
type SquareConfig struct {
	ApplicationID string
	LocationID    string
	AccessToken   string
	Environment   string // "sandbox" or "production"
	EnableExpress bool
	ChargeTimeout time.Duration
	ProbeTimeout  time.Duration
}

// ClientSettings is the client-safe subset of SquareConfig.
type ClientSettings struct {
	ApplicationID string `json:"applicationId"`
	LocationID    string `json:"locationId"`
	Environment   string `json:"environment"`
	EnableExpress bool   `json:"enableExpress"`
	GatewayID     string `json:"gatewayId"`
}

// GatewayID identifies this gateway in checkout forms and order metadata.
const GatewayID = "garilla_square"

func (c SquareConfig) ClientSettings() ClientSettings {
	return ClientSettings{
		ApplicationID: c.ApplicationID,
		LocationID:    c.LocationID,
		Environment:   c.Environment,
		EnableExpress: c.EnableExpress,
		GatewayID:     GatewayID,
	}
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	Topics   TopicConfig
	Enabled  bool
	MockMode bool
}

type TopicConfig struct {
	PaymentSuccess string
	PaymentFailed  string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type AuthConfig struct {
	OIDCIssuer      string
	AdminRole       string
	AntiForgeryKey  string
	RedirectBaseURL string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			AdminPort:    getEnv("ADMIN_PORT", ":8081"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Square: SquareConfig{
			ApplicationID: getEnv("SQUARE_APPLICATION_ID", ""),
			LocationID:    getEnv("SQUARE_LOCATION_ID", ""),
			AccessToken:   getEnv("SQUARE_ACCESS_TOKEN", ""),
			Environment:   getEnv("SQUARE_ENVIRONMENT", "sandbox"),
			EnableExpress: getEnvBool("SQUARE_ENABLE_EXPRESS", true),
			ChargeTimeout: time.Duration(getEnvInt("SQUARE_CHARGE_TIMEOUT_SECONDS", 60)) * time.Second,
			ProbeTimeout:  time.Duration(getEnvInt("SQUARE_PROBE_TIMEOUT_SECONDS", 20)) * time.Second,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers:  []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			GroupID:  getEnv("KAFKA_GROUP_ID", "square-gateway-group"),
			Enabled:  getEnvBool("KAFKA_ENABLED", true),
			MockMode: getEnvBool("KAFKA_MOCK_MODE", false),
			Topics: TopicConfig{
				PaymentSuccess: getEnv("KAFKA_TOPIC_SUCCESS", "payment-success"),
				PaymentFailed:  getEnv("KAFKA_TOPIC_FAILED", "payment-failed"),
			},
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "gateway_user"),
			Password:     getEnv("DB_PASSWORD", "gateway_pass"),
			Database:     getEnv("DB_NAME", "square_gateway"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Auth: AuthConfig{
			OIDCIssuer:      getEnv("OIDC_ISSUER", ""),
			AdminRole:       getEnv("ADMIN_ROLE", "manage_store"),
			AntiForgeryKey:  getEnv("ANTI_FORGERY_KEY", ""),
			RedirectBaseURL: getEnv("REDIRECT_BASE_URL", "http://localhost:3000"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
