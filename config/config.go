package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Chat     ChatConfig     `yaml:"chat"`
	Log      LogConfig      `yaml:"log"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

// ServerConfig configures the framed TCP endpoint clients connect to.
type ServerConfig struct {
	Address             string `yaml:"address"`
	MaxFrameBytes       int    `yaml:"max_frame_bytes"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	OutboundQueue       int    `yaml:"outbound_queue"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type StorageConfig struct {
	Driver         string `yaml:"driver"`
	SQLitePath     string `yaml:"sqlite_path"`
	SQLitePoolSize int    `yaml:"sqlite_pool_size"`
	// HandleWaitSeconds bounds how long a worker waits for a free
	// pooled connection before its request fails.
	HandleWaitSeconds int `yaml:"handle_wait_seconds"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", d.MaxConns)
	}
	return dsn
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	TicketEventsTopic  string   `yaml:"ticket_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	FlightsCacheTTL    int `yaml:"flights_cache_ttl_seconds"`
	AllocationAttempts int `yaml:"allocation_attempts"`
}

type ChatConfig struct {
	URL            string  `yaml:"url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	SystemPrompt   string  `yaml:"system_prompt"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type JobsConfig struct {
	CacheWarmMinutes int `yaml:"cache_warm_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":12345"
	}
	if c.Server.MaxFrameBytes <= 0 {
		c.Server.MaxFrameBytes = 16 << 20
	}
	if c.Server.OutboundQueue <= 0 {
		c.Server.OutboundQueue = 16
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "ftms.db"
	}
	if c.Storage.SQLitePoolSize <= 0 {
		c.Storage.SQLitePoolSize = 64
	}
	if c.Storage.HandleWaitSeconds <= 0 {
		c.Storage.HandleWaitSeconds = 5
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 64
	}
	if c.Kafka.TicketEventsTopic == "" {
		c.Kafka.TicketEventsTopic = "ticket_events"
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "ticket_notifications"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "ftms-notifier"
	}
	if c.Booking.FlightsCacheTTL <= 0 {
		c.Booking.FlightsCacheTTL = 30
	}
	if c.Booking.AllocationAttempts <= 0 {
		c.Booking.AllocationAttempts = 8
	}
	if c.Chat.URL == "" {
		c.Chat.URL = "http://localhost:11434/v1/chat/completions"
	}
	if c.Chat.APIKey == "" {
		c.Chat.APIKey = "local"
	}
	if c.Chat.Model == "" {
		c.Chat.Model = "qwen3:4b"
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = 1024
	}
	if c.Chat.Temperature == 0 {
		c.Chat.Temperature = 0.7
	}
	if c.Chat.TimeoutSeconds <= 0 {
		c.Chat.TimeoutSeconds = 120
	}
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Jobs.CacheWarmMinutes <= 0 {
		c.Jobs.CacheWarmMinutes = 10
	}
}

// applyEnv lets operators switch the chat backend without editing the file.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("FTMS_AI_URL")); v != "" {
		c.Chat.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("FTMS_AI_MODEL")); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("FTMS_AI_KEY"); v != "" {
		c.Chat.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("FTMS_AI_MAX_TOKENS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chat.MaxTokens = n
		}
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// Path picks the config file: the --config flag, then CONFIG_PATH, then
// config.yaml in the working directory.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "config.yaml"
}
