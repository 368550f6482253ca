// Package config holds the run configuration assembled from flags,
// environment variables (MKSUB_*) and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/omerimzali/mksub/pkg/formatter"
)

// EnvPrefix is prepended to every environment override, e.g. MKSUB_LEVEL.
const EnvPrefix = "MKSUB"

// Config is the complete set of knobs the driver consumes.
type Config struct {
	Domain     string `mapstructure:"domain"`
	DomainFile string `mapstructure:"domain-file"`
	Wordlist   string `mapstructure:"wordlist" validate:"required"`
	Regex      string `mapstructure:"regex"`
	CIRegex    bool   `mapstructure:"ci-regex"`

	Level      int `mapstructure:"level" validate:"min=0"`
	Threads    int `mapstructure:"threads" validate:"min=0"`
	MaxThreads int `mapstructure:"max-threads" validate:"min=1"`

	Output   string `mapstructure:"output"`
	Silent   bool   `mapstructure:"silent"`
	Shards   int    `mapstructure:"shards" validate:"min=1"`
	BufferMB int    `mapstructure:"buffer-mb" validate:"min=1"`
	Queue    int    `mapstructure:"queue" validate:"min=1"`

	Format   string  `mapstructure:"format" validate:"oneof=plain color json"`
	NoColor  bool    `mapstructure:"no-color"`
	Rate     float64 `mapstructure:"rate" validate:"min=0"`
	Progress bool    `mapstructure:"progress"`

	Grace   time.Duration `mapstructure:"grace" validate:"min=0"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`

	Verbose bool `mapstructure:"verbose"`
	Quiet   bool `mapstructure:"quiet"`
}

// Default returns the values used when nothing overrides them.
func Default() Config {
	return Config{
		CIRegex:    true,
		Level:      1,
		Threads:    100,
		MaxThreads: 100000,
		Silent:     true,
		Shards:     1,
		BufferMB:   100,
		Queue:      100000,
		Format:     formatter.FormatColor,
		Grace:      3 * time.Second,
		Timeout:    30 * time.Second,
	}
}

// BufferBytes is the per-shard flush threshold in bytes.
func (c Config) BufferBytes() int {
	return c.BufferMB * 1024 * 1024
}

// Echo reports whether generated names go to stdout. Without an output file
// stdout is the only destination, so silent is ignored.
func (c Config) Echo() bool {
	return c.Output == "" || !c.Silent
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("ci-regex", d.CIRegex)
	v.SetDefault("level", d.Level)
	v.SetDefault("threads", d.Threads)
	v.SetDefault("max-threads", d.MaxThreads)
	v.SetDefault("silent", d.Silent)
	v.SetDefault("shards", d.Shards)
	v.SetDefault("buffer-mb", d.BufferMB)
	v.SetDefault("queue", d.Queue)
	v.SetDefault("format", d.Format)
	v.SetDefault("grace", d.Grace)
	v.SetDefault("timeout", d.Timeout)
	return v
}

// Load reads the optional config file into v and unmarshals the merged
// result.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
