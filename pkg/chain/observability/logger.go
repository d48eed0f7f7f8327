// Package observability provides structured logging, metrics, and tracing
// for chain execution.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds chain context to a logger.
// Returns a new logger with chain_id and node_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "chain-123", "fetch")
//	enriched.Info("doing work") // includes chain_id, node_id
func EnrichLogger(logger *slog.Logger, chainID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("chain_id", chainID),
		slog.String("node_id", nodeID),
	)
}

// LogChainStart logs the start of a chain run.
func LogChainStart(logger *slog.Logger, chainID, name string, resumed bool) {
	if logger == nil {
		return
	}
	logger.Info("chain run starting",
		slog.String("chain_id", chainID),
		slog.String("chain_name", name),
		slog.Bool("resumed", resumed),
	)
}

// LogChainFinish logs the end of a chain run with its final status.
func LogChainFinish(logger *slog.Logger, chainID, status string, durationMs float64, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("chain run failed",
			slog.String("chain_id", chainID),
			slog.String("status", status),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", durationMs),
		)
		return
	}
	logger.Info("chain run finished",
		slog.String("chain_id", chainID),
		slog.String("status", status),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
	)
}

// LogNodeSkipped logs a node whose condition did not hold.
func LogNodeSkipped(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node skipped",
		slog.String("node_id", nodeID),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogSuspend logs a node parking the chain until inputs arrive.
func LogSuspend(logger *slog.Logger, chainID, nodeID string, params []string) {
	if logger == nil {
		return
	}
	logger.Info("chain suspended",
		slog.String("chain_id", chainID),
		slog.String("node_id", nodeID),
		slog.Any("awaiting", params),
	)
}

// LogSnapshot logs a persisted snapshot.
func LogSnapshot(logger *slog.Logger, chainID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("snapshot saved",
		slog.String("chain_id", chainID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogSnapshotError logs a snapshot failure (non-fatal).
func LogSnapshotError(logger *slog.Logger, chainID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("snapshot failed",
		slog.String("chain_id", chainID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
