package logger

import (
	"context"

	pcontext "github.com/uberpack/uberpack/pkg/context"
)

// runFields turns the run id, phase and elapsed time in ctx into log fields
func runFields(ctx context.Context) []Field {
	var fields []Field
	if pcontext.HasRunID(ctx) {
		fields = append(fields, WithField("run_id", pcontext.GetRunID(ctx)))
	}
	if pcontext.HasPhase(ctx) {
		fields = append(fields, WithField("phase", pcontext.GetPhase(ctx)))
	}
	if d := pcontext.GetDuration(ctx); d > 0 {
		fields = append(fields, WithField("elapsed_ms", d.Milliseconds()))
	}
	return fields
}

// WithContext wraps a logger so every call carries the context's run fields
func WithContext(ctx context.Context, logger Logger) Logger {
	if ctx == nil {
		return logger
	}
	return &runLogger{ctx: ctx, logger: logger}
}

type runLogger struct {
	ctx    context.Context
	logger Logger
}

func (l *runLogger) with(fields []Field) []Field {
	return append(runFields(l.ctx), fields...)
}

func (l *runLogger) Info(message string, fields ...Field) { l.logger.Info(message, l.with(fields)...) }
func (l *runLogger) Error(message string, fields ...Field) { l.logger.Error(message, l.with(fields)...) }
func (l *runLogger) Warn(message string, fields ...Field) { l.logger.Warn(message, l.with(fields)...) }
func (l *runLogger) Debug(message string, fields ...Field) { l.logger.Debug(message, l.with(fields)...) }
func (l *runLogger) Success(message string, fields ...Field) { l.logger.Success(message, l.with(fields)...) }

func (l *runLogger) WithTarget(target string) Logger {
	return &runLogger{ctx: l.ctx, logger: l.logger.WithTarget(target)}
}
