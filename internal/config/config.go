package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Telegram TelegramConfig
	Admins   AdminsConfig
	Intake   IntakeConfig
	Listing  ListingConfig
	Kafka    KafkaConfig
}

// AppConfig controls the ops HTTP listener.
type AppConfig struct {
	Name    string
	Env     string
	Host    string
	Port    string
	Version string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for the session store.
type RedisConfig struct {
	Addr              string
	Password          string
	DB                int
	SessionTTLMinutes int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// TelegramConfig configures the chat transport.
type TelegramConfig struct {
	Token              string
	WebhookURL         string
	PollTimeoutSeconds int
	Debug              bool
}

// AdminsConfig is the static admin list reconciled into the store at startup.
type AdminsConfig struct {
	ITAdminIDs  []int64
	AHOAdminIDs []int64
}

// IntakeConfig holds registration choices.
type IntakeConfig struct {
	Organizations           []string
	OrganizationsWithOffice []string
	PortalURL               string
}

// ListingConfig controls "my requests" views.
type ListingConfig struct {
	DoneWindowHours int
}

// KafkaConfig configures the optional ticket event forwarder.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	itAdmins, err := parseIDs(os.Getenv("IT_ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid IT_ADMIN_IDS: %w", err)
	}
	ahoAdmins, err := parseIDs(os.Getenv("AHO_ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid AHO_ADMIN_IDS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "helpdesk-bot"),
			Env:     getEnv("APP_ENV", "development"),
			Host:    getEnv("APP_HOST", "0.0.0.0"),
			Port:    getEnv("APP_PORT", "8080"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:              os.Getenv("REDIS_ADDR"),
			Password:          os.Getenv("REDIS_PASSWORD"),
			DB:                redisDB,
			SessionTTLMinutes: getEnvAsInt("SESSION_TTL_MINUTES", 24*60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Telegram: TelegramConfig{
			Token:              os.Getenv("TELEGRAM_TOKEN"),
			WebhookURL:         os.Getenv("TELEGRAM_WEBHOOK_URL"),
			PollTimeoutSeconds: getEnvAsInt("TELEGRAM_POLL_TIMEOUT", 60),
			Debug:              getEnvAsBool("TELEGRAM_DEBUG", false),
		},
		Admins: AdminsConfig{
			ITAdminIDs:  itAdmins,
			AHOAdminIDs: ahoAdmins,
		},
		Intake: IntakeConfig{
			Organizations: getEnvAsList("ORGANIZATIONS", []string{
				"Министерство финансов Липецкой области",
				"ОКУ «Центра бухгалтерского учета» г.Липецк",
			}),
			OrganizationsWithOffice: getEnvAsList("ORGANIZATIONS_WITH_OFFICE", []string{
				"Министерство финансов Липецкой области",
				"ОКУ «Центра бухгалтерского учета» г.Липецк",
			}),
			PortalURL: getEnv("PORTAL_URL", "https://ufin48.ru/"),
		},
		Listing: ListingConfig{
			DoneWindowHours: getEnvAsInt("LISTING_DONE_WINDOW_HOURS", 48),
		},
		Kafka: KafkaConfig{
			Brokers: splitBrokers(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "helpdesk.requests"),
		},
	}

	return cfg, nil
}

// Validate checks settings the bot cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("config: TELEGRAM_TOKEN is required")
	}
	if c.App.Env == "production" && c.Postgres.DSN == "" {
		return errors.New("config: in production POSTGRES_DSN is required")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// SessionTTL returns how long idle dialogue state survives in Redis.
func (r RedisConfig) SessionTTL() time.Duration {
	if r.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(r.SessionTTLMinutes) * time.Minute
}

// DoneWindow returns the trailing window in which completed requests stay listed.
func (l ListingConfig) DoneWindow() time.Duration {
	if l.DoneWindowHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(l.DoneWindowHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsList splits a ";"-separated value; organization names contain commas.
func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, item := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == ' ' }) {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// splitBrokers parses "host1:9092,host2:9092".
func splitBrokers(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
