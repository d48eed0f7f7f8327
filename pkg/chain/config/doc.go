/*
Package config reads engine settings from YAML or JSON files.

# Accessors

Config wraps a map[string]any and provides typed accessors that return a
default when a key is missing or has the wrong type. Keys may be dotted
paths into nested maps:

	cfg, err := config.FromFile("flowchain.yaml")
	workers := cfg.Int("engine.max_workers", 4)
	timeout := cfg.Duration("engine.node_timeout", 0)

Duration accepts a time.ParseDuration string or a number of seconds. Int
accepts whole floats but rejects fractions.

# Engine settings

Engine extracts the settings the chain engine understands from the
"engine" section (or the top level when there is no such section):

	engine:
	  max_workers: 8
	  error_tolerant: false
	  loop_limit: 1000
	  node_timeout: 30s
	  snapshot_db: ./chains.db
	  log_level: info
	  log_format: text
	  metrics: true
	  tracing: false

EngineConfig.Options turns them into chain options, EngineConfig.Logger
builds the slog logger, and EngineConfig.OpenStore opens the snapshot store.
*/
package config
