// Package requestid propagates a per-request identifier through HTTP
// handlers and log records.
//
//	r.Use(requestid.Middleware(requestid.WithHeaders("webhook-id")))
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
package requestid
