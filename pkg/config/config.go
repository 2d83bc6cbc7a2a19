package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MarketPulse/internal/domain/models"
	applogger "MarketPulse/pkg/logger"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		StreamInterval  time.Duration `yaml:"stream_interval" default:"30s"`
		RefreshInterval time.Duration `yaml:"refresh_interval" default:"10s"`
	} `yaml:"server"`
	Log     applogger.Config `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Channels struct {
		Timeout time.Duration `yaml:"timeout" default:"15s"`
		// FetchTimeout bounds a whole channel fetch; zero derives it from the
		// per-call timeout, the number of sequential sub-calls and pacing.
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		Ozon         OzonConfig    `yaml:"ozon"`
		Wildberries  WBConfig      `yaml:"wildberries"`
	} `yaml:"channels"`
	Cache struct {
		TTL   time.Duration `yaml:"ttl" default:"15m"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"marketpulse"`
			PoolSize int    `yaml:"pool_size" default:"10"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	KPI   models.KPITargets `yaml:"kpi"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Topics       struct {
			Snapshots string `yaml:"snapshots" default:"marketpulse.snapshots"`
			Alerts    string `yaml:"alerts" default:"marketpulse.alerts"`
			Settings  string `yaml:"settings" default:"marketpulse.settings"`
			Logs      string `yaml:"logs" default:"ops.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"marketpulse"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"10"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
			// Broadcast gives each replica its own group so that every one
			// sees every settings event.
			Broadcast bool `yaml:"broadcast" default:"true"`
		} `yaml:"consumer"`
		LogCollector struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"50"`
		} `yaml:"log_collector"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"marketpulse_channel_daily"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Report struct {
		Interval time.Duration `yaml:"interval" default:"1h"`
		Timezone string        `yaml:"timezone" default:"Europe/Moscow"`
	} `yaml:"report"`
}

type OzonConfig struct {
	Enabled       bool          `yaml:"enabled" default:"true"`
	BaseURL       string        `yaml:"base_url" default:"https://api-seller.ozon.ru" validate:"url"`
	APIKey        string        `yaml:"api_key"`
	ClientID      string        `yaml:"client_id"`
	Timeout       time.Duration `yaml:"timeout"`
	CallDelay     time.Duration `yaml:"call_delay" default:"350ms"`
	AdSpendWeight float64       `yaml:"ad_spend_weight" default:"1"`
	StockLimit    int           `yaml:"stock_limit" default:"20"`
}

type WBConfig struct {
	Enabled       bool          `yaml:"enabled" default:"true"`
	StatBaseURL   string        `yaml:"stat_base_url" default:"https://statistics-api.wildberries.ru/api/v1" validate:"url"`
	AdvBaseURL    string        `yaml:"adv_base_url" default:"https://advert-api.wildberries.ru/adv/v1" validate:"url"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	AdSpendWeight float64       `yaml:"ad_spend_weight" default:"1"`
	StockLimit    int           `yaml:"stock_limit" default:"20"`
}

var validate = validator.New()

// Default returns a configuration made of struct defaults only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. Unset keys keep their defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env if present, then the YAML file (or defaults when
// path is empty), then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	c, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("OZON_API_KEY", &c.Channels.Ozon.APIKey)
	setString("OZON_CLIENT_ID", &c.Channels.Ozon.ClientID)
	setString("OZON_BASE_URL", &c.Channels.Ozon.BaseURL)
	setString("WB_API_KEY", &c.Channels.Wildberries.APIKey)
	setString("WB_API_TOKEN", &c.Channels.Wildberries.APIKey)
	setString("WB_STAT_BASE_URL", &c.Channels.Wildberries.StatBaseURL)
	setString("WB_ADV_BASE_URL", &c.Channels.Wildberries.AdvBaseURL)
	setString("TIMEZONE", &c.Report.Timezone)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("CLICKHOUSE_HOST", &c.ClickHouse.Host)

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return errors.New("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Addr == "" {
		return errors.New("cache.redis.addr is required when redis is enabled")
	}
	if !c.Channels.Ozon.Enabled && !c.Channels.Wildberries.Enabled {
		return errors.New("at least one channel must be enabled")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves report.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("report.timezone %q: %w", c.Report.Timezone, err)
	}
	return loc, nil
}

// ChannelTimeout returns the per-channel timeout, falling back to channels.timeout.
func (c *Config) ChannelTimeout(own time.Duration) time.Duration {
	if own > 0 {
		return own
	}
	return c.Channels.Timeout
}
