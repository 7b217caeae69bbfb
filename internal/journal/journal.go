// Package journal records completed fills to external sinks. Journaling is
// write-only telemetry: the engine never reads it back, and a failed write
// never fails the fill.
package journal

import (
	"context"

	"github.com/ko0hi/papertrade/internal/engine"
)

// Recorder is the journal sink contract. Implementations also satisfy
// engine.Recorder.
type Recorder interface {
	RecordExecution(ctx context.Context, e engine.Execution) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordExecution(context.Context, engine.Execution) error { return nil }

func (Nop) Close() error { return nil }
