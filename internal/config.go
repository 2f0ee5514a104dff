package internal

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tuannm99/novabuf/internal/bufferpool"
)

const EnvPrefix = "NOVABUF"

var ErrInvalidConfig = errors.New("config: invalid")

type NovaBufConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Dir      string `mapstructure:"dir"`
		PageFile string `mapstructure:"page_file"`
	} `mapstructure:"storage"`

	BufferPool struct {
		NumFrames int    `mapstructure:"num_frames"`
		Strategy  string `mapstructure:"strategy"`
	} `mapstructure:"bufferpool"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Bench struct {
		Workers    int     `mapstructure:"workers"`
		Ops        int     `mapstructure:"ops"`
		Pages      int     `mapstructure:"pages"`
		Seed       int64   `mapstructure:"seed"`
		WriteRatio float64 `mapstructure:"write_ratio"`
	} `mapstructure:"bench"`
}

var defaults = map[string]any{
	"app_name":              "novabuf",
	"storage.dir":           ".",
	"storage.page_file":     "novabuf.pages",
	"bufferpool.num_frames": bufferpool.DefaultCapacity,
	"bufferpool.strategy":   bufferpool.LRU.String(),
	"log.level":             "info",
	"log.format":            "text",
	"bench.workers":         4,
	"bench.ops":             100_000,
	"bench.pages":           1024,
	"bench.seed":            int64(1),
	"bench.write_ratio":     0.2,
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"dir":         "storage.dir",
	"file":        "storage.page_file",
	"frames":      "bufferpool.num_frames",
	"strategy":    "bufferpool.strategy",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"workers":     "bench.workers",
	"ops":         "bench.ops",
	"pages":       "bench.pages",
	"seed":        "bench.seed",
	"write-ratio": "bench.write_ratio",
}

// RegisterStorageFlags adds the flags every binary shares.
func RegisterStorageFlags(fs *pflag.FlagSet) {
	fs.String("dir", ".", "directory holding page files")
	fs.String("file", "novabuf.pages", "page file name")
	fs.Int("frames", bufferpool.DefaultCapacity, "number of buffer pool frames")
	fs.String("strategy", bufferpool.LRU.String(), "replacement strategy (fifo, lru, lfu, clock)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "text", "log format (text, json)")
}

// RegisterBenchFlags adds the workload flags used by cmd/bench.
func RegisterBenchFlags(fs *pflag.FlagSet) {
	fs.Int("workers", 4, "concurrent workers")
	fs.Int("ops", 100_000, "total page accesses")
	fs.Int("pages", 1024, "distinct pages in the trace")
	fs.Int64("seed", 1, "trace seed")
	fs.Float64("write-ratio", 0.2, "fraction of accesses that modify the page")
}

// LoadConfig reads an optional YAML file, NOVABUF_* environment variables
// and any flags in flags that were set. Later sources win.
func LoadConfig(path string, flags *pflag.FlagSet) (*NovaBufConfig, error) {
	return loadConfig(afero.NewOsFs(), path, flags)
}

func loadConfig(afs afero.Fs, path string, flags *pflag.FlagSet) (*NovaBufConfig, error) {
	v := viper.New()
	v.SetFs(afs)
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg NovaBufConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *NovaBufConfig) Validate() error {
	if c.Storage.PageFile == "" {
		return fmt.Errorf("%w: storage.page_file is empty", ErrInvalidConfig)
	}
	if c.BufferPool.NumFrames <= 0 {
		return fmt.Errorf("%w: bufferpool.num_frames must be positive, got %d", ErrInvalidConfig, c.BufferPool.NumFrames)
	}
	s, err := bufferpool.ParseStrategy(c.BufferPool.Strategy)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if s == bufferpool.LRUK {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, bufferpool.ErrStrategyNotImplemented)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Bench.Workers <= 0 || c.Bench.Ops < 0 || c.Bench.Pages <= 0 {
		return fmt.Errorf("%w: bench workers and pages must be positive", ErrInvalidConfig)
	}
	if c.Bench.WriteRatio < 0 || c.Bench.WriteRatio > 1 {
		return fmt.Errorf("%w: bench.write_ratio must be within [0, 1], got %v", ErrInvalidConfig, c.Bench.WriteRatio)
	}
	return nil
}

// Strategy returns the configured replacement strategy. Only valid after
// Validate succeeded.
func (c *NovaBufConfig) Strategy() bufferpool.Strategy {
	s, _ := bufferpool.ParseStrategy(c.BufferPool.Strategy)
	return s
}

func (c *NovaBufConfig) PageFilePath() string {
	return filepath.Join(c.Storage.Dir, c.Storage.PageFile)
}
