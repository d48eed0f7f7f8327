// Package event carries chain lifecycle events to external monitors.
//
// Chain listeners run synchronously on the goroutine that executes the
// node, so slow consumers stall the chain. A Bus decouples them: Forward
// turns every chain event into a serializable Event and publishes it, and
// each subscription drains its own buffered queue on its own goroutine.
//
//	bus := event.NewBus(event.BusConfig{BufferSize: 64})
//	defer bus.Close()
//
//	bus.Subscribe(event.Types("node.error"), event.HandlerFunc(alert))
//	stop := event.Forward(c, bus)
//	defer stop()
//
//	c.Execute(ctx, vars)
package event
