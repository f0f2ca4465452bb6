// Package server provides the HTTP server for workpoold.
//
// The server uses the Gin web framework. Routes are registered through a
// callback that receives a RouterGroup prefixed with /api/v1, keeping the
// handler wiring out of this package.
//
// # Middleware
//
// Two middleware apply to all routes:
//
//   - ginzap.Ginzap logs each request (method, path, status, latency) with
//     the "http" zap logger.
//   - ginzap.RecoveryWithZap recovers handler panics, logs the stack trace
//     and returns 500.
//
// # Lifecycle
//
//	srv := server.NewServer(cfg, func(router *gin.RouterGroup) {
//	    router.GET("/status", handler.GetStatus)
//	})
//
//	go srv.Start()
//	...
//	srv.Stop(ctx)
//
// Start blocks until the listener fails or Stop is called; Stop performs a
// graceful shutdown with a bounded drain window. In "prod" mode gin runs in
// release mode, in "dev" mode it keeps its debug output.
package server
