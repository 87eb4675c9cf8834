// Package environment carries the application environment (development or
// production) through context.Context.
//
// HTTP servers attach it with Middleware; handlers consult IsProduction to
// decide how much configuration detail an error response may reveal.
// LoggerExtractor exposes the value to the logger's context extractors.
//
//	handler := environment.Middleware(environment.Parse(os.Getenv("APP_ENV")))(mux)
package environment
