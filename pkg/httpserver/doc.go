// Package httpserver runs the paygate HTTP listener with graceful shutdown
// and serves the readiness endpoint.
//
// # Usage
//
//	import "github.com/dmitrymomot/paygate/pkg/httpserver"
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.New(cfg.HTTP, log)
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// Run listens on Config.Addr and blocks. Once ctx is cancelled it stops
// accepting connections and gives in-flight requests ShutdownTimeout to
// finish. Request contexts are detached from ctx, so a webhook delivery that
// is mid-reconciliation is not cut short by the signal itself.
//
// Serve does the same on an existing net.Listener, which tests use with
// 127.0.0.1:0.
//
// # Configuration
//
//	HTTP_ADDR                 listen address (default ":8080")
//	HTTP_READ_HEADER_TIMEOUT  default 5s
//	HTTP_READ_TIMEOUT         default 30s
//	HTTP_WRITE_TIMEOUT        default 30s
//	HTTP_IDLE_TIMEOUT         default 120s
//	HTTP_SHUTDOWN_TIMEOUT     default 10s
//
// A zero duration disables the matching timeout, except ShutdownTimeout which
// falls back to 10s.
//
// # Health Checks
//
// HealthHandler runs every Check with a 3s budget and reports JSON:
//
//	r.Get("/healthz", httpserver.HealthHandler(log,
//		httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)},
//		httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client)},
//	))
//
// All checks up gives 200 {"status":"ok"}. Any failure gives 503 with
// status "degraded" and the failing names marked "down". Error details are
// logged, never returned. With no checks the handler always answers 200.
//
// # Error Handling
//
// Listen and serve failures wrap ErrStart; a shutdown that exceeds
// ShutdownTimeout wraps ErrShutdown.
package httpserver
