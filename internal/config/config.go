// Package config loads fnvm settings from defaults, an optional config file
// and FNVM_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
	"github.com/sqlvibe/fnvm/internal/log"
)

// EnvPrefix is prepended to every environment key: eval.reduction_limit is
// read from FNVM_EVAL_REDUCTION_LIMIT.
const EnvPrefix = "FNVM"

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Eval    EvalConfig    `mapstructure:"eval"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

type EvalConfig struct {
	// ReductionLimit caps the nodes one evaluation may reduce.
	ReductionLimit int `mapstructure:"reduction_limit"`
	// MaxDepth caps how deeply one evaluation may nest.
	MaxDepth int `mapstructure:"max_depth"`
}

type ScanConfig struct {
	// Workers is the size of the scan goroutine pool; 0 sizes it per scan.
	Workers int `mapstructure:"workers"`
	// ChunkSize is the number of rows handed to one worker task.
	ChunkSize int `mapstructure:"chunk_size"`
}

type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint. Empty disables it.
	Addr string `mapstructure:"addr"`
}

func Default() Config {
	return Config{
		Log:     LogConfig{Level: "INFO", Format: "text"},
		Eval:    EvalConfig{ReductionLimit: VM.DefaultReductionLimit, MaxDepth: VM.DefaultMaxDepth},
		Scan:    ScanConfig{Workers: runtime.GOMAXPROCS(0), ChunkSize: 1024},
		Metrics: MetricsConfig{},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.add_source", d.Log.AddSource)
	v.SetDefault("eval.reduction_limit", d.Eval.ReductionLimit)
	v.SetDefault("eval.max_depth", d.Eval.MaxDepth)
	v.SetDefault("scan.workers", d.Scan.Workers)
	v.SetDefault("scan.chunk_size", d.Scan.ChunkSize)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (any format viper understands; empty means none) over the
// defaults, applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				return Config{}, svdberr.Wrap(svdberr.SVDB_NOTFOUND, err, "config file %s", path)
			}
			return Config{}, svdberr.Wrap(svdberr.SVDB_ERROR, err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, svdberr.Wrap(svdberr.SVDB_ERROR, err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the evaluator and scanner cannot run with.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return svdberr.Errorf(svdberr.SVDB_MISUSE, "log.format must be text or json, got %q", c.Log.Format)
	}
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return svdberr.Errorf(svdberr.SVDB_MISUSE, "unknown log.level %q", c.Log.Level)
	}
	if c.Eval.ReductionLimit <= 0 {
		return svdberr.Errorf(svdberr.SVDB_MISUSE, "eval.reduction_limit must be positive, got %d", c.Eval.ReductionLimit)
	}
	if c.Eval.MaxDepth <= 0 {
		return svdberr.Errorf(svdberr.SVDB_MISUSE, "eval.max_depth must be positive, got %d", c.Eval.MaxDepth)
	}
	if c.Scan.Workers < 0 || c.Scan.ChunkSize <= 0 {
		return svdberr.Errorf(svdberr.SVDB_MISUSE, "scan.workers must not be negative and scan.chunk_size must be positive")
	}
	return nil
}

// LogConfig converts the log section for log.Init.
func (c Config) LogConfig() log.Config {
	return log.Config{Level: c.Log.Level, Format: c.Log.Format, AddSource: c.Log.AddSource}
}

// EvalOptions converts the eval section for VM.NewEvaluator.
func (c Config) EvalOptions() []VM.EvalOption {
	return []VM.EvalOption{VM.WithReductionLimit(c.Eval.ReductionLimit), VM.WithMaxDepth(c.Eval.MaxDepth)}
}

func (c Config) String() string {
	return fmt.Sprintf("log=%s/%s reduction_limit=%d max_depth=%d workers=%d chunk=%d metrics=%q",
		c.Log.Level, c.Log.Format, c.Eval.ReductionLimit, c.Eval.MaxDepth, c.Scan.Workers, c.Scan.ChunkSize, c.Metrics.Addr)
}
