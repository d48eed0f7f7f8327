package chain

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/randalmurphal/flowchain/pkg/chain/checkpoint"
	"github.com/randalmurphal/flowchain/pkg/chain/expr"
	"github.com/randalmurphal/flowchain/pkg/chain/observability"
)

// DefaultLoopLimit bounds how many times one node may execute in a run.
const DefaultLoopLimit = 1000

// Evaluator evaluates condition and cost expressions.
type Evaluator interface {
	Evaluate(expression string, vars expr.Lookup) (any, error)
}

type config struct {
	maxWorkers  int
	logger      *slog.Logger
	eval        Evaluator
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	tracing     bool
	store       checkpoint.Store
	loopLimit   int
	nodeTimeout time.Duration
}

func defaultConfig() config {
	return config{
		maxWorkers: runtime.NumCPU(),
		logger:     slog.Default(),
		eval:       expr.New(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
		loopLimit:  DefaultLoopLimit,
	}
}

// Option configures a Chain.
type Option func(*Chain)

// WithID sets the chain ID. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(c *Chain) {
		if id != "" {
			c.NodeID = id
		}
	}
}

// WithName sets the display name.
func WithName(name string) Option {
	return func(c *Chain) { c.Name = name }
}

// WithDescription sets the description.
func WithDescription(desc string) Option {
	return func(c *Chain) { c.Description = desc }
}

// WithMaxWorkers bounds how many async nodes run at once.
// Default: runtime.NumCPU()
func WithMaxWorkers(n int) Option {
	return func(c *Chain) {
		if n > 0 {
			c.cfg.maxWorkers = n
		}
	}
}

// WithLogger sets the logger. Nodes receive it enriched with chain and node IDs.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.cfg.logger = logger
		}
	}
}

// WithEvaluator replaces the expression evaluator used by conditions and
// cost expressions.
func WithEvaluator(e Evaluator) Option {
	return func(c *Chain) {
		if e != nil {
			c.cfg.eval = e
		}
	}
}

// WithMetrics enables OpenTelemetry metrics.
func WithMetrics(enabled bool) Option {
	return func(c *Chain) {
		if enabled {
			c.cfg.metrics = observability.NewMetricsRecorder()
		} else {
			c.cfg.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder installs a specific recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(c *Chain) {
		if m != nil {
			c.cfg.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for chain runs and node executions.
func WithTracing(enabled bool) Option {
	return func(c *Chain) {
		c.cfg.tracing = enabled
		if enabled {
			c.cfg.spans = observability.NewSpanManager()
		} else {
			c.cfg.spans = observability.NoopSpanManager{}
		}
	}
}

// WithCheckpointStore persists a snapshot whenever a run ends suspended or
// finished, tagged with the resulting status.
func WithCheckpointStore(store checkpoint.Store) Option {
	return func(c *Chain) { c.cfg.store = store }
}

// WithLoopLimit bounds how many times one node may execute per run.
// Default: DefaultLoopLimit
func WithLoopLimit(n int) Option {
	return func(c *Chain) {
		if n > 0 {
			c.cfg.loopLimit = n
		}
	}
}

// WithNodeTimeout bounds each node execution. Zero means no bound.
func WithNodeTimeout(d time.Duration) Option {
	return func(c *Chain) {
		if d >= 0 {
			c.cfg.nodeTimeout = d
		}
	}
}

type runConfig struct {
	tolerant bool
}

// RunOption configures a single Execute or Resume call.
type RunOption func(*runConfig)

// ErrorTolerant makes Execute return the partial result instead of an error
// when a node fails. The failure stays available through Chain.Err.
func ErrorTolerant() RunOption {
	return func(c *runConfig) { c.tolerant = true }
}
