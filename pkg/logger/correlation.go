package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type correlationKey struct{}

// SetCorrelationID returns a copy of ctx carrying the given correlation ID.
func SetCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation ID stored in ctx, or "" if none.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// WithCorrelationID returns a log entry tagged with the correlation ID from ctx.
func WithCorrelationID(ctx context.Context, log *logrus.Logger) *logrus.Entry {
	if id := CorrelationID(ctx); id != "" {
		return log.WithField("correlation_id", id)
	}
	return logrus.NewEntry(log)
}
