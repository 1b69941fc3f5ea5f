package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"TradeGate/internal/domain/models"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins"` // empty allows any origin
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logger struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		MaxAgeDays int    `yaml:"max_age_days" default:"14"`
	} `yaml:"logger"`
	Audit struct {
		Backend       string        `yaml:"backend" default:"log" validate:"oneof=kafka clickhouse log"`
		BufferSize    int           `yaml:"buffer_size" default:"4096" validate:"gte=1"`
		BatchSize     int           `yaml:"batch_size" default:"200" validate:"gte=1"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"1s"`
	} `yaml:"audit"`
	Kafka struct {
		Enabled         bool     `yaml:"enabled"`
		Brokers         []string `yaml:"brokers"`
		TicksTopic      string   `yaml:"ticks_topic" default:"tradegate.ticks"`
		TradeCloseTopic string   `yaml:"trade_close_topic" default:"tradegate.trade_closes"`
		AuditTopic      string   `yaml:"audit_topic" default:"tradegate.audit"`
		RequiredAcks    int      `yaml:"required_acks" default:"-1"`
		Compression     string   `yaml:"compression" default:"gzip"`
		Producer        struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"tradegate"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"tradegate"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Snapshots struct {
		Backend       string `yaml:"backend" default:"memory" validate:"oneof=memory redis clickhouse"`
		MemoryMaxSize int    `yaml:"memory_max_size" default:"100000" validate:"gte=1"`
		Redis         struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"tradegate"`
		} `yaml:"redis"`
	} `yaml:"snapshots"`
	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"20s"`
	} `yaml:"stream"`
	Workers struct {
		QueueSize int `yaml:"queue_size" default:"64" validate:"gte=1"`
	} `yaml:"workers"`

	Sizing   SizingConfig   `yaml:"sizing"`
	Leverage LeverageConfig `yaml:"leverage"`
	Scalp    ScalpConfig    `yaml:"scalp"`
	Learning LearningConfig `yaml:"learning"`
	States   StatesConfig   `yaml:"states"`
}

// SizingConfig drives the capital sizing function and unit mapping.
type SizingConfig struct {
	Capital         float64 `yaml:"capital" default:"10000" validate:"gte=0"`
	MarginPerUnit   float64 `yaml:"margin_per_unit" default:"1000"`
	MinUnits        int     `yaml:"min_units" default:"1" validate:"gte=0"`
	MaxUnits        int     `yaml:"max_units" default:"10" validate:"gte=0"`
	ReductionFactor float64 `yaml:"reduction_factor" default:"0.5" validate:"gt=0,lte=1"`
	HistorySize     int     `yaml:"history_size" default:"500" validate:"gte=1"`
}

// LeverageConfig drives the re-leverage gate.
type LeverageConfig struct {
	Enabled          bool     `yaml:"leverage_enabled"`
	MaxExtraUnits    int      `yaml:"max_extra_units" default:"1" validate:"gte=0"`
	AllowedRegimes   []string `yaml:"allowed_regimes"`
	ForbiddenRegimes []string `yaml:"forbidden_regimes"`
	MinConfidence    float64  `yaml:"min_confidence" default:"0.65" validate:"gte=0,lte=1"`
	RequireProfit    bool     `yaml:"require_profit"`
	MinProfit        float64  `yaml:"min_profit"`
	MinLiquidity     float64  `yaml:"min_liquidity" default:"0.50" validate:"gte=0,lte=1"`
	MaxDisagreement  float64  `yaml:"max_disagreement" default:"0.40" validate:"gte=0,lte=1"`
}

// ScalpConfig drives the exit state machine.
type ScalpConfig struct {
	TPPoints        float64 `yaml:"tp_points" default:"80" validate:"gt=0"`
	SLPoints        float64 `yaml:"sl_points" default:"40" validate:"gt=0"`
	PointValue      float64 `yaml:"point_value" default:"0.0001" validate:"gt=0"`
	MaxHoldSeconds  int     `yaml:"max_hold_seconds" default:"900" validate:"gt=0"`
	ProtectProfit   bool    `yaml:"protect_profit"`
	CooldownSeconds int     `yaml:"cooldown_seconds" default:"300" validate:"gte=0"`
	HistorySize     int     `yaml:"history_size" default:"200" validate:"gte=1"`
}

// LearningConfig drives the bandit policy and the online update pipeline.
type LearningConfig struct {
	BatchSize                  int     `yaml:"batch_size" default:"20" validate:"gte=1"`
	KeepSnapshots              int     `yaml:"keep_snapshots" default:"10" validate:"gte=1"`
	FreezeDegradationThreshold float64 `yaml:"freeze_degradation_threshold" default:"0.15" validate:"gt=0,lt=1"`
	RollingWindow              int     `yaml:"rolling_window" default:"50" validate:"gte=1"`
	RewardPnLScale             float64 `yaml:"reward_pnl_scale" default:"100" validate:"gt=0"`
	Seed                       uint64  `yaml:"seed"`
}

// StatesConfig holds the threshold tables that discretize context.
type StatesConfig struct {
	ConfidenceBands   []float64    `yaml:"confidence_bands" default:"[0.4,0.7]"`
	DisagreementBands []float64    `yaml:"disagreement_bands" default:"[0.2,0.4]"`
	TimeBuckets       []TimeBucket `yaml:"time_buckets" validate:"dive"`
}

// TimeBucket covers hours in [FromHour, ToHour).
type TimeBucket struct {
	Name     string `yaml:"name" validate:"required"`
	FromHour int    `yaml:"from_hour" validate:"gte=0,lte=23"`
	ToHour   int    `yaml:"to_hour" validate:"gte=1,lte=24"`
}

// DefaultTimeBuckets splits the day into the main trading sessions.
func DefaultTimeBuckets() []TimeBucket {
	return []TimeBucket{
		{Name: "ASIA", FromHour: 0, ToHour: 8},
		{Name: "EUROPE", FromHour: 8, ToHour: 13},
		{Name: "US", FromHour: 13, ToHour: 21},
		{Name: "LATE", FromHour: 21, ToHour: 24},
	}
}

var validate = validator.New()

// Default returns a configuration populated only from default tags.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	c.States.TimeBuckets = DefaultTimeBuckets()
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.States.TimeBuckets) == 0 {
		c.States.TimeBuckets = DefaultTimeBuckets()
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file next to the working directory is honoured when present.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("TRADEGATE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("TRADEGATE_CAPITAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, models.NewConfigurationError("capital", "TRADEGATE_CAPITAL=%q is not a number", v)
		}
		c.Sizing.Capital = f
	}
	if v := os.Getenv("TRADEGATE_LEVERAGE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, models.NewConfigurationError("leverage_enabled", "TRADEGATE_LEVERAGE_ENABLED=%q is not a bool", v)
		}
		c.Leverage.Enabled = b
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return models.NewConfigurationError(fe.Namespace(), "failed %s=%s (value %v)", fe.Tag(), fe.Param(), fe.Value())
		}
		return models.NewConfigurationError("config", "%v", err)
	}

	if c.Sizing.MarginPerUnit <= 0 {
		return models.NewConfigurationError("margin_per_unit", "must be > 0, got %v", c.Sizing.MarginPerUnit)
	}
	if c.Sizing.MinUnits > c.Sizing.MaxUnits {
		return models.NewConfigurationError("min_units", "min_units %d > max_units %d", c.Sizing.MinUnits, c.Sizing.MaxUnits)
	}
	if err := validateBands("confidence_bands", c.States.ConfidenceBands); err != nil {
		return err
	}
	if err := validateBands("disagreement_bands", c.States.DisagreementBands); err != nil {
		return err
	}
	for i, b := range c.States.TimeBuckets {
		if b.FromHour >= b.ToHour {
			return models.NewConfigurationError("time_buckets", "bucket %d (%s) has from_hour %d >= to_hour %d", i, b.Name, b.FromHour, b.ToHour)
		}
	}
	for _, r := range c.Leverage.AllowedRegimes {
		for _, f := range c.Leverage.ForbiddenRegimes {
			if r == f {
				return models.NewConfigurationError("allowed_regimes", "regime %q is both allowed and forbidden", r)
			}
		}
	}
	if c.Audit.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return models.NewConfigurationError("kafka.brokers", "required when audit.backend is kafka")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return models.NewConfigurationError("kafka.brokers", "required when kafka is enabled")
	}
	if c.Stream.Enabled && (c.Stream.WebSocketURL == "" || len(c.Stream.Symbols) == 0) {
		return models.NewConfigurationError("stream", "websocket_url and symbols are required when the stream is enabled")
	}
	return nil
}

func validateBands(field string, bands []float64) error {
	if len(bands) != 2 {
		return models.NewConfigurationError(field, "expected [low_upper, med_upper], got %v", bands)
	}
	if bands[0] < 0 || bands[1] > 1 || bands[0] > bands[1] {
		return models.NewConfigurationError(field, "thresholds must be ascending within [0,1], got %v", bands)
	}
	return nil
}
