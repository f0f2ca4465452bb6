// Package services implements the business logic layer between the HTTP
// handlers and the pool.
//
// Runner owns the pool: it drives the dispatch tick, routes terminal
// messages into counters and the history store, and exposes a named workload
// registry so work kinds can be submitted by name over the API. History
// wraps read access to persisted runs with filtering and pagination.
package services
