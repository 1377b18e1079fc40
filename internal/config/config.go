package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Port        string
	Environment string

	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	AMQPHost        string
	AMQPPort        string
	AMQPUser        string
	AMQPPassword    string
	AMQPVHost       string
	QueueName       string
	ExchangeName    string
	RoutingKey      string
	PrefetchCount   int
	ConsumerWorkers int

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	StorageBasePath string

	MaxAttempts       int
	RetryDelaySeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppName:     getenv("APP_SERVICE", "mailflow"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Port:        getenv("PORT", "8080"),
		Environment: getenv("ENVIRONMENT", "development"),

		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "mailflow"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 100),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 60),

		AMQPHost:        getenv("AMQP_HOST", "localhost"),
		AMQPPort:        getenv("AMQP_PORT", "5672"),
		AMQPUser:        getenv("AMQP_USER", "guest"),
		AMQPPassword:    getenv("AMQP_PASSWORD", "guest"),
		AMQPVHost:       getenv("AMQP_VHOST", "/"),
		QueueName:       getenv("AMQP_QUEUE", "email-queue"),
		ExchangeName:    getenv("AMQP_EXCHANGE", "email-exchange"),
		RoutingKey:      getenv("AMQP_ROUTING_KEY", "email.send"),
		PrefetchCount:   getenvInt("AMQP_PREFETCH", 8),
		ConsumerWorkers: getenvInt("AMQP_WORKERS", 4),

		SMTPHost:     getenv("SMTP_HOST", "localhost"),
		SMTPPort:     getenvInt("SMTP_PORT", 587),
		SMTPUser:     strings.TrimSpace(getenv("SMTP_USER", "")),
		SMTPPassword: strings.TrimSpace(getenv("SMTP_PASSWORD", "")),
		SMTPFrom:     getenv("SMTP_FROM", "noreply@mailflow.dev"),
		SMTPFromName: getenv("SMTP_FROM_NAME", "Mailflow"),

		StorageBasePath: getenv("STORAGE_BASE_PATH", "/var/lib/mailflow/files"),

		MaxAttempts:       getenvInt("DELIVERY_MAX_ATTEMPTS", 3),
		RetryDelaySeconds: getenvInt("DELIVERY_RETRY_DELAY_SECONDS", 60),
	}
}

// AMQPURL builds the broker connection URL.
func (c *Config) AMQPURL() string {
	vhost := c.AMQPVHost
	if vhost == "/" {
		vhost = ""
	}
	return "amqp://" + c.AMQPUser + ":" + c.AMQPPassword + "@" + c.AMQPHost + ":" + c.AMQPPort + "/" + vhost
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
