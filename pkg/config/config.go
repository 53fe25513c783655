package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RunConfig describes one scheduled collection loop.
type RunConfig struct {
	Dataset       string        `yaml:"dataset"`
	Market        string        `yaml:"market"`
	Columns       []string      `yaml:"columns"`
	Tickers       []string      `yaml:"tickers"`
	SortBy        string        `yaml:"sort_by"`
	Limit         int           `yaml:"limit"`
	Interval      time.Duration `yaml:"interval"`
	MaxIterations int           `yaml:"max_iterations"` // -1 runs until shutdown
	OnError       string        `yaml:"on_error"`       // stop or continue
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	TradingView struct {
		BaseURL string        `yaml:"base_url"`
		Cookie  string        `yaml:"cookie"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"tradingview"`
	Storage struct {
		Backend    string `yaml:"backend"` // file, sqlite or clickhouse
		Dir        string `yaml:"dir"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`
	Collector struct {
		AddMetadata  bool        `yaml:"add_metadata"`
		ValidateData bool        `yaml:"validate_data"`
		Runs         []RunConfig `yaml:"runs"`
	} `yaml:"collector"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Archive struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"archive"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Cache struct {
		Mode string `yaml:"mode"` // memory, redis or layered
	} `yaml:"cache"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		KeyPrefix  string        `yaml:"key_prefix"`
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("TRADINGVIEW_COOKIE"); v != "" {
		c.TradingView.Cookie = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Storage.Backend {
	case "file", "sqlite", "clickhouse":
	case "":
		return fmt.Errorf("storage.backend is required")
	default:
		return fmt.Errorf("storage.backend must be 'file', 'sqlite' or 'clickhouse', got '%s'", c.Storage.Backend)
	}
	if c.Storage.Backend == "file" && c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required for the file backend")
	}
	if c.Storage.Backend == "sqlite" && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
	}
	for i, run := range c.Collector.Runs {
		if run.Dataset == "" {
			return fmt.Errorf("collector.runs[%d]: dataset is required", i)
		}
		if len(run.Columns) == 0 {
			return fmt.Errorf("collector.runs[%d]: columns cannot be empty", i)
		}
		if run.Interval <= 0 {
			return fmt.Errorf("collector.runs[%d]: interval must be positive", i)
		}
		if run.OnError != "" && run.OnError != "stop" && run.OnError != "continue" {
			return fmt.Errorf("collector.runs[%d]: on_error must be 'stop' or 'continue'", i)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis to be enabled")
	}
	return nil
}
