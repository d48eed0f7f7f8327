package event

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/flowchain/pkg/chain"
)

// ForwardOption configures Forward.
type ForwardOption func(*forwarder)

type forwarder struct {
	ctx    context.Context
	types  chain.EventType
	logger *slog.Logger
}

// WithContext sets the context passed to Publish. Default: background.
func WithContext(ctx context.Context) ForwardOption {
	return func(f *forwarder) { f.ctx = ctx }
}

// WithTypes forwards only events matching t. Default: every event.
func WithTypes(t chain.EventType) ForwardOption {
	return func(f *forwarder) { f.types = t }
}

// WithLogger sets the logger for publish failures. Default: slog.Default().
func WithLogger(logger *slog.Logger) ForwardOption {
	return func(f *forwarder) { f.logger = logger }
}

// Forward publishes every event of c, including those re-fired from nested
// chains, to bus. It returns a function that stops forwarding.
//
// Publishing happens on the goroutine that emitted the chain event, so a
// blocking bus with full buffers slows the chain down; configure the bus
// as NonBlocking to shed load instead.
func Forward(c *chain.Chain, bus Bus, opts ...ForwardOption) (stop func()) {
	f := &forwarder{
		ctx:    context.Background(),
		types:  chain.EventAll,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	return c.OnFunc(f.types, func(evt chain.Event, _ *chain.Chain) {
		out := FromChain(evt)
		if err := bus.Publish(f.ctx, out); err != nil {
			f.logger.Warn("event publish failed",
				slog.String("type", out.Type),
				slog.String("chain_id", out.ChainID),
				slog.String("error", err.Error()),
			)
		}
	})
}
