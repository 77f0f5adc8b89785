// Package context carries run identity and phase information through an
// assembler run.
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	phaseKey
	startTimeKey
)

const (
	unknownRun   = "unknown-run"
	unknownPhase = "unknown-phase"
)

// WithRunID adds a run ID to the context, generating one when empty
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = GenerateRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		return id
	}
	return unknownRun
}

// HasRunID reports whether a run ID is attached
func HasRunID(ctx context.Context) bool {
	return GetRunID(ctx) != unknownRun
}

// WithPhase adds the current assembler phase name to the context
func WithPhase(parent context.Context, phase string) context.Context {
	return context.WithValue(parent, phaseKey, phase)
}

// GetPhase retrieves the phase name from context
func GetPhase(ctx context.Context) string {
	if p, ok := ctx.Value(phaseKey).(string); ok && p != "" {
		return p
	}
	return unknownPhase
}

// HasPhase reports whether a phase is attached
func HasPhase(ctx context.Context) bool {
	return GetPhase(ctx) != unknownPhase
}

// WithStartTime adds the run start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the start time, and false when none was recorded
func GetStartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startTimeKey).(time.Time)
	return t, ok
}

// GetDuration returns the time elapsed since the recorded start, or zero
func GetDuration(ctx context.Context) time.Duration {
	start, ok := GetStartTime(ctx)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// GenerateRunID creates a new unique run ID
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}

// NewRunContext attaches a fresh run ID (unless one exists) and start time
func NewRunContext(parent context.Context) context.Context {
	ctx := parent
	if !HasRunID(ctx) {
		ctx = WithRunID(ctx, "")
	}
	return WithStartTime(ctx, time.Now())
}
