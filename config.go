package orderbook

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	DefaultPriceScale        int32 = 2
	DefaultLevelCapacity     int32 = 1024
	DefaultPublishBufferSize int64 = 4096

	maxPriceScale int32 = 18
)

// Config holds the tunables of a single order book.
type Config struct {
	// MarketID labels logs and metrics. A random id is generated when empty.
	MarketID string `mapstructure:"market_id"`
	// PriceScale is the number of fractional digits in a Price.
	PriceScale int32 `mapstructure:"price_scale"`
	// LevelCapacity is the initial arena size of each side's price tree.
	LevelCapacity int32 `mapstructure:"level_capacity"`
	// PublishBufferSize is the ring buffer size of AsyncPublishLog, a power of 2.
	PublishBufferSize int64 `mapstructure:"publish_buffer_size"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		PriceScale:        DefaultPriceScale,
		LevelCapacity:     DefaultLevelCapacity,
		PublishBufferSize: DefaultPublishBufferSize,
	}
}

// LoadConfig reads path (yaml, json or toml; optional) and overlays ORDERBOOK_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("market_id", def.MarketID)
	v.SetDefault("price_scale", def.PriceScale)
	v.SetDefault("level_capacity", def.LevelCapacity)
	v.SetDefault("publish_buffer_size", def.PublishBufferSize)

	v.SetEnvPrefix("ORDERBOOK")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration ranges.
func (c *Config) Validate() error {
	if c.PriceScale < 0 || c.PriceScale > maxPriceScale {
		return fmt.Errorf("%w: price_scale must be within [0, %d], got %d", ErrInvalidParam, maxPriceScale, c.PriceScale)
	}
	if c.LevelCapacity <= 0 {
		return fmt.Errorf("%w: level_capacity must be positive, got %d", ErrInvalidParam, c.LevelCapacity)
	}
	if c.PublishBufferSize <= 0 || c.PublishBufferSize&(c.PublishBufferSize-1) != 0 {
		return fmt.Errorf("%w: publish_buffer_size must be a power of 2, got %d", ErrInvalidParam, c.PublishBufferSize)
	}
	return nil
}
