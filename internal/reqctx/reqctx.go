// Package reqctx tags a run with an id carried through its context.
package reqctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type key int

const runKey key = 0

type RunContext struct {
	RunID     string
	Plugin    string
	StartTime time.Time
}

// Elapsed returns the time since the run started.
func (rc *RunContext) Elapsed() time.Duration {
	return time.Since(rc.StartTime)
}

func WithRunContext(ctx context.Context, plugin string) context.Context {
	return context.WithValue(ctx, runKey, &RunContext{
		RunID:     generateID(),
		Plugin:    plugin,
		StartTime: time.Now(),
	})
}

func GetRunContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runKey).(*RunContext); ok {
		return rc
	}
	return &RunContext{
		RunID:     "unknown",
		StartTime: time.Now(),
	}
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// RunError wraps an error with the run it happened in
type RunError struct {
	RunID  string
	Plugin string
	Err    error
}

// Error implements the error interface
func (e *RunError) Error() string {
	return fmt.Sprintf("run %s (%s): %v", e.RunID, e.Plugin, e.Err)
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError creates a new RunError from context
func NewRunError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	rc := GetRunContext(ctx)
	return &RunError{
		RunID:  rc.RunID,
		Plugin: rc.Plugin,
		Err:    err,
	}
}
