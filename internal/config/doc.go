// Package config defines the configuration for workpoold.
//
// Configuration is organized into sections (Server, Pool, Store) plus
// top-level logging settings. Defaults come from struct tags via
// creasty/defaults; a YAML file and WORKPOOL_* environment variables layer
// on top through viper.
//
// # Pool Configuration
//
//	┌──────────────────┬──────────┬────────────────────────────────────────┐
//	│ Field            │ Default  │ Description                            │
//	├──────────────────┼──────────┼────────────────────────────────────────┤
//	│ minWorkers       │ 0        │ Worker floor, started eagerly          │
//	│ maxWorkers       │ 3        │ Concurrency ceiling                    │
//	│ queueCapacity    │ 64       │ Bound on admitted live jobs            │
//	│ admission        │ "reject" │ Behavior at capacity: reject or block  │
//	│ idleTimeout      │ 30s      │ Idle retirement above the floor        │
//	│ dispatchInterval │ 100ms    │ Runner message delivery tick           │
//	└──────────────────┴──────────┴────────────────────────────────────────┘
//
// # Server and Store
//
// server.mode selects gin's mode ("dev" or "prod"), server.port the listen
// port. store.path is the DuckDB file holding the run history; ":memory:"
// keeps it ephemeral.
package config
