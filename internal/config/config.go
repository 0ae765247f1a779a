package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	pkgconfig "github.com/wekeepgrowing/stripe-notion-sync/pkg/config"
	"github.com/wekeepgrowing/stripe-notion-sync/pkg/logger"
)

// ServiceName selects configs/sync.yaml and the SYNC_ environment prefix.
const ServiceName = "sync"

type Config struct {
	Service     ServiceConfig  `mapstructure:"service" yaml:"service"`
	Database    DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server      ServerConfig   `mapstructure:"server" yaml:"server"`
	Log         logger.Config  `mapstructure:"log" yaml:"log"`
	JWT         JWTConfig      `mapstructure:"jwt" yaml:"jwt"`
	Redis       RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Notion      NotionConfig   `mapstructure:"notion" yaml:"notion"`
	Backfill    BackfillConfig `mapstructure:"backfill" yaml:"backfill"`
	Webhook     WebhookConfig  `mapstructure:"webhook" yaml:"webhook"`
	TenantsFile string         `mapstructure:"tenants_file" yaml:"tenants_file" validate:"required"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
	Version     string `mapstructure:"version" yaml:"version"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret" validate:"required"`
	Issuer string `mapstructure:"issuer" yaml:"issuer"`
}

// RedisConfig enables the cross-replica upsert lock and sync event publishing.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr" validate:"required_if=Enabled true"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db" validate:"gte=0"`
	LockTTL  time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	LockWait time.Duration `mapstructure:"lock_wait" yaml:"lock_wait"`
	// PublishEvents sends a message per committed parent entity.
	PublishEvents bool `mapstructure:"publish_events" yaml:"publish_events"`
}

type NotionConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url" validate:"url"`
	Version     string        `mapstructure:"version" yaml:"version"`
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type BackfillConfig struct {
	PageSize     int64         `mapstructure:"page_size" yaml:"page_size" validate:"gte=1,lte=100"`
	StepAttempts int           `mapstructure:"step_attempts" yaml:"step_attempts" validate:"gte=1"`
	StepInterval time.Duration `mapstructure:"step_interval" yaml:"step_interval"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

type WebhookConfig struct {
	RetryBatchSize int           `mapstructure:"retry_batch_size" yaml:"retry_batch_size" validate:"gte=1"`
	RetryInterval  time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
	Tolerance      time.Duration `mapstructure:"tolerance" yaml:"tolerance"`
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "stripe-notion-sync"
	}
	if c.Service.Environment == "" {
		c.Service.Environment = "development"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8080
	}
	if c.Server.GRPC.Port == 0 {
		c.Server.GRPC.Port = 9090
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 30 * time.Second
	}
	if c.Redis.LockWait == 0 {
		c.Redis.LockWait = time.Minute
	}
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = "https://api.notion.com/v1"
	}
	if c.Notion.Version == "" {
		c.Notion.Version = "2022-06-28"
	}
	if c.Notion.MinInterval == 0 {
		c.Notion.MinInterval = 334 * time.Millisecond
	}
	if c.Notion.MaxRetries == 0 {
		c.Notion.MaxRetries = 5
	}
	if c.Notion.Timeout == 0 {
		c.Notion.Timeout = 30 * time.Second
	}
	if c.Backfill.PageSize == 0 {
		c.Backfill.PageSize = 1
	}
	if c.Backfill.StepAttempts == 0 {
		c.Backfill.StepAttempts = 3
	}
	if c.Backfill.RetryBackoff == 0 {
		c.Backfill.RetryBackoff = time.Second
	}
	if c.Webhook.RetryBatchSize == 0 {
		c.Webhook.RetryBatchSize = 50
	}
	if c.Webhook.RetryInterval == 0 {
		c.Webhook.RetryInterval = time.Minute
	}
	if c.Webhook.Tolerance == 0 {
		c.Webhook.Tolerance = 5 * time.Minute
	}
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig reads CONFIG_PATH (default ./configs/sync.yaml) with SYNC_*
// environment overrides, applies defaults and validates the result.
func LoadConfig() (*Config, error) {
	src, err := pkgconfig.Load(ServiceName)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := src.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
