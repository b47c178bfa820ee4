// ABOUTME: This file provides context-aware structured logging
// ABOUTME: Supports tenant ID, query hash, and pipeline stage propagation with JSON output format
package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

const (
	// Business context keys for retrieval observability
	// These follow OpenTelemetry semantic conventions with 'retrieval.' prefix
	TenantIDKey      ContextKey = "retrieval.tenant.id"
	QueryHashKey     ContextKey = "retrieval.query.hash"
	PipelineStageKey ContextKey = "retrieval.pipeline.stage"
)

// ContextLogger provides context-aware logging with business context
type ContextLogger struct {
	logger *slog.Logger
}

// NewContextLogger wraps an existing logger with context extraction
func NewContextLogger(logger *slog.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns a logger with context values extracted and added as fields
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger

	var fields []any

	if tenantID := ctx.Value(TenantIDKey); tenantID != nil {
		fields = append(fields, string(TenantIDKey), tenantID)
	}
	if queryHash := ctx.Value(QueryHashKey); queryHash != nil {
		fields = append(fields, string(QueryHashKey), queryHash)
	}
	if stage := ctx.Value(PipelineStageKey); stage != nil {
		fields = append(fields, string(PipelineStageKey), stage)
	}

	if len(fields) > 0 {
		logger = logger.With(fields...)
	}

	return logger
}

// Context helper functions

// WithTenantID adds tenant ID to context for observability
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// WithQueryHash adds the query hash to context for observability
func WithQueryHash(ctx context.Context, queryHash string) context.Context {
	return context.WithValue(ctx, QueryHashKey, queryHash)
}

// WithPipelineStage adds the pipeline stage to context for observability
func WithPipelineStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, PipelineStageKey, stage)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
