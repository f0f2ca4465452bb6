// Package handlers implements the HTTP layer for the monitoring API.
//
// Handlers translate between HTTP and the services layer: they parse query
// and body parameters, map service errors to status codes and convert models
// to the api/v1 response shapes. Cancellation endpoints return 202 Accepted
// because cancellation is advisory; the outcome lands in the run history.
package handlers
