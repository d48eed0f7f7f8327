package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/flowchain/pkg/chain"
	"github.com/randalmurphal/flowchain/pkg/chain/checkpoint"
)

// EngineConfig holds the engine settings read from a Config.
type EngineConfig struct {
	MaxWorkers    int
	ErrorTolerant bool
	LoopLimit     int
	NodeTimeout   time.Duration
	SnapshotDB    string
	LogLevel      string
	LogFormat     string
	Metrics       bool
	Tracing       bool
}

// DefaultEngineConfig is used for keys a Config leaves out. Zero worker and
// loop limits keep the chain defaults.
var DefaultEngineConfig = EngineConfig{
	LogLevel:  "info",
	LogFormat: "text",
}

// Engine extracts engine settings from the "engine" section of cfg, or from
// its top level when there is no such section.
func Engine(cfg Config) EngineConfig {
	if cfg.Has("engine") {
		cfg = cfg.Sub("engine")
	}
	d := DefaultEngineConfig
	return EngineConfig{
		MaxWorkers:    cfg.Int("max_workers", d.MaxWorkers),
		ErrorTolerant: cfg.Bool("error_tolerant", d.ErrorTolerant),
		LoopLimit:     cfg.Int("loop_limit", d.LoopLimit),
		NodeTimeout:   cfg.Duration("node_timeout", d.NodeTimeout),
		SnapshotDB:    cfg.String("snapshot_db", d.SnapshotDB),
		LogLevel:      cfg.String("log_level", d.LogLevel),
		LogFormat:     cfg.String("log_format", d.LogFormat),
		Metrics:       cfg.Bool("metrics", d.Metrics),
		Tracing:       cfg.Bool("tracing", d.Tracing),
	}
}

// Options converts the settings into chain options. The logger and the
// snapshot store are built separately because they own resources.
func (e EngineConfig) Options() []chain.Option {
	opts := []chain.Option{
		chain.WithMetrics(e.Metrics),
		chain.WithTracing(e.Tracing),
	}
	if e.MaxWorkers > 0 {
		opts = append(opts, chain.WithMaxWorkers(e.MaxWorkers))
	}
	if e.LoopLimit > 0 {
		opts = append(opts, chain.WithLoopLimit(e.LoopLimit))
	}
	if e.NodeTimeout > 0 {
		opts = append(opts, chain.WithNodeTimeout(e.NodeTimeout))
	}
	return opts
}

// RunOptions converts the settings into per-call options.
func (e EngineConfig) RunOptions() []chain.RunOption {
	if e.ErrorTolerant {
		return []chain.RunOption{chain.ErrorTolerant()}
	}
	return nil
}

// Level parses LogLevel. Unknown levels are an error.
func (e EngineConfig) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", e.LogLevel, err)
	}
	return level, nil
}

// Logger builds a logger writing to w in LogFormat ("text" or "json").
func (e EngineConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := e.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(e.LogFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", e.LogFormat)
	}
}

// OpenStore opens the snapshot store: SQLite at SnapshotDB, or an in-memory
// store when SnapshotDB is empty.
func (e EngineConfig) OpenStore() (checkpoint.Store, error) {
	if e.SnapshotDB == "" {
		return checkpoint.NewMemoryStore(), nil
	}
	return checkpoint.NewSQLiteStore(e.SnapshotDB)
}
