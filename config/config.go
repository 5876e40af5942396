package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Rabbit   RabbitConfig
	Store    StoreConfig
	Harvest  HarvestConfig
	Journal  JournalConfig
	Archive  ArchiveConfig
	Metrics  MetricsConfig
	LogLevel string
	LogFile  string
	Mappings *Mappings
}

type RabbitConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	MaxRetries int
}

// URL renders the AMQP connection string.
func (c RabbitConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.Username, c.Password, c.Host, c.Port)
}

type StoreConfig struct {
	URL      string
	Database string
	APIKey   string
	Timeout  time.Duration
}

type HarvestConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type JournalConfig struct {
	Path          string
	RetentionDays int
}

type ArchiveConfig struct {
	Enabled         bool
	PollInterval    time.Duration
	BatchSize       int
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type MetricsConfig struct {
	Addr string
}

// Mappings optionally overrides the built-in field mapping tables.
type Mappings struct {
	MarketStatus map[string]string `yaml:"market_status"`
	PropertyType map[string]string `yaml:"property_type"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Rabbit: RabbitConfig{
			Host:       getEnv("RABBITMQ_HOST", "localhost"),
			Port:       getEnvInt("RABBITMQ_PORT", 5672),
			Username:   getEnv("RABBITMQ_USERNAME", "guest"),
			Password:   getEnv("RABBITMQ_PASSWORD", "guest"),
			MaxRetries: getEnvInt("RABBITMQ_MAX_RETRIES", 10),
		},
		Store: StoreConfig{
			URL:      getEnv("ODOO_URL", "http://localhost:8069"),
			Database: getEnv("ODOO_DB_NAME", "odoo"),
			APIKey:   os.Getenv("ODOO_API_KEY"),
			Timeout:  getEnvSeconds("STORE_TIMEOUT_SECONDS", 30),
		},
		Harvest: HarvestConfig{
			URL:     getEnv("HARVEST_API_URL", "http://localhost:8081"),
			APIKey:  os.Getenv("HARVEST_API_KEY"),
			Timeout: getEnvSeconds("HARVEST_TIMEOUT_SECONDS", 120),
		},
		Journal: JournalConfig{
			Path:          getEnv("JOURNAL_DB_PATH", "estate_ingest.db"),
			RetentionDays: getEnvInt("JOURNAL_RETENTION_DAYS", 30),
		},
		Archive: ArchiveConfig{
			Enabled:         os.Getenv("ARCHIVE_ENABLED") == "true",
			PollInterval:    getEnvSeconds("ARCHIVE_POLL_SECONDS", 30),
			BatchSize:       getEnvInt("ARCHIVE_BATCH_SIZE", 10),
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          os.Getenv("S3_REGION"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "estate_ingest.log"),
	}

	if cfg.Store.APIKey == "" {
		return nil, fmt.Errorf("ODOO_API_KEY is required")
	}

	if path := os.Getenv("MAPPINGS_FILE"); path != "" {
		m, err := loadMappings(path)
		if err != nil {
			return nil, fmt.Errorf("load mappings %s: %w", path, err)
		}
		cfg.Mappings = m
	}

	return cfg, nil
}

func loadMappings(path string) (*Mappings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Mappings
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvSeconds(key string, defaultVal int) time.Duration {
	return time.Duration(getEnvInt(key, defaultVal)) * time.Second
}
