// Package store implements the data access layer for workpoold.
//
// Storage uses DuckDB and holds nothing but diagnostics: the job_runs table
// records the terminal outcome of every finished job. Pending jobs are never
// persisted; a restart starts from an empty pool by design.
//
// # Schema
//
//	┌────────────────────┬─────────────────────────────────────────────┐
//	│  Table             │  Purpose                                    │
//	├────────────────────┼─────────────────────────────────────────────┤
//	│  job_runs          │  Terminal outcome per finished job          │
//	│  schema_migrations │  Migration version tracking                 │
//	└────────────────────┴─────────────────────────────────────────────┘
//
//	job_runs (
//	    job_id BIGINT,
//	    pool_id VARCHAR,
//	    workload VARCHAR,
//	    status VARCHAR,          -- completed | failed | cancelled
//	    result VARCHAR,
//	    error VARCHAR,
//	    submitted_at TIMESTAMP,
//	    finished_at TIMESTAMP
//	)
//
// # List Options
//
// HistoryStore.List uses the functional options pattern; each ListOption
// modifies a squirrel.SelectBuilder and options combine freely:
//
//	runs, err := store.History().List(ctx,
//	    store.ByStatus("failed", "cancelled"),
//	    store.ByWorkload("fibonacci"),
//	    store.WithDefaultSort(),
//	    store.WithLimit(50),
//	    store.WithOffset(0),
//	)
//
// Writes go through raw SQL constants in queries.go; only list queries are
// built dynamically.
package store
