package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultIssuer    = "dt-demo-gcp"
	DefaultLoginPath = "/login/"
	DefaultChannel   = "auth-events"
)

type Config struct {
	ServerPort int
	LogLevel   string
	Database   DatabaseConfig
	Auth       AuthConfig
	Events     EventsConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// AuthConfig holds the token and credential settings shared by the
// verifier, the token service and the HTTP layer.
type AuthConfig struct {
	// SecretKey signs and verifies tokens. It is optional at startup;
	// when empty every issuance and verification fails with a
	// configuration error instead of crashing the process.
	SecretKey    string
	Issuer       string
	TokenURL     string
	LoginPath    string
	CookieSecure bool
	HashWorkers  int
	BcryptCost   int
}

// HasSecret reports whether a signing secret is configured.
func (a AuthConfig) HasSecret() bool {
	return a.SecretKey != ""
}

type EventsConfig struct {
	// Backend is one of "", "rabbitmq" or "pubsub". Empty disables publishing.
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "auth"),
		Password: getEnv("DB_USER_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "auth_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	authConfig := AuthConfig{
		SecretKey:    strings.TrimSpace(getEnv("JWT_SECRET_KEY", "")),
		Issuer:       getEnv("JWT_ISSUER", DefaultIssuer),
		TokenURL:     getEnv("TOKEN_URL", "/token"),
		LoginPath:    getEnv("LOGIN_PATH", DefaultLoginPath),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),
		HashWorkers:  getEnvInt("AUTH_HASH_WORKERS", runtime.NumCPU()),
		BcryptCost:   getEnvInt("BCRYPT_COST", 12),
	}

	eventsConfig := EventsConfig{
		Backend: strings.ToLower(getEnv("EVENTS_BACKEND", "")),
		Channel: getEnv("EVENTS_CHANNEL", DefaultChannel),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Database:   dbConfig,
		Auth:       authConfig,
		Events:     eventsConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
