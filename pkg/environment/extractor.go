package environment

import (
	"context"
	"log/slog"
)

// LoggerExtractor returns a logger context extractor adding the "env" attribute.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		env, ok := ctx.Value(contextKey{}).(Environment)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.String("env", string(env)), true
	}
}
