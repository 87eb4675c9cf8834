// Package logger builds *slog.Logger instances and provides the typed
// attribute helpers used across paygate.
//
// The package keeps structured logging uniform between the HTTP layer, the
// reconciliation service and the CLI by exposing one factory, New, configured
// through Option functions. The options select the output format, the minimum
// level, static attributes attached to every record, and ContextExtractor
// callbacks that pull request-scoped values out of a context.Context.
//
// # Architecture
//
// New picks slog.NewJSONHandler or slog.NewTextHandler for the configured
// Format and wraps it in a ContextHandler. ContextHandler runs every registered
// ContextExtractor on each record before delegating, so values such as the
// request ID appear on any record logged with a *Context method without being
// passed explicitly.
//
// Attribute constructors (UserID, Provider, EventID, CustomerID, PlanID, Error
// and the rest) live in attr.go and keep key names consistent across packages.
//
// # Usage
//
//	import "github.com/dmitrymomot/paygate/pkg/logger"
//
//	log := logger.New(
//		logger.WithEnvironment(env, "paygate"),
//		logger.WithLevelName(cfg.LogLevel),
//		logger.WithContextExtractors(
//			requestid.LoggerExtractor(),
//			environment.LoggerExtractor(),
//		),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "entitlement updated",
//		logger.UserID(id),
//		logger.Provider("stripe"),
//		logger.Duration(time.Since(start)),
//	)
//
// # Configuration
//
//   - WithEnvironment, WithDevelopment, WithProduction: debug-level text output
//     outside production, info-level JSON in production, plus service and env
//     attributes.
//   - WithFormat: FormatJSON or FormatText. Any other value panics.
//   - WithLevel, WithLevelName: minimum level. An explicit level wins over the
//     environment default regardless of option order; unknown names such as a
//     typo in LOG_LEVEL are ignored.
//   - WithOutput: destination writer, stdout by default.
//   - WithAttr: static attributes.
//   - WithContextExtractors, WithContextValue: attributes read from the context.
//
// Without options New writes info-level JSON to stdout.
//
// # Error Handling
//
// Error returns an empty attribute for a nil error, and the string helpers do
// the same for empty input, so slog drops them from the output:
//
//	log.InfoContext(ctx, "webhook handled", logger.Error(res.Err), logger.UserID(res.UserID))
//
// needs no nil or empty checks at the call site.
package logger
