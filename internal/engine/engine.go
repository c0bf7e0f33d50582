// Package engine is the boundary to the external media engine. The agent
// never decodes media itself: it asks ffprobe for metadata and runs ffmpeg
// for stream-copy cuts.
//
// Stream-copy cuts do not re-encode, so for video the real start point may
// land on the keyframe before the requested start. That is a property of
// the cut, not something callers should try to correct.
package engine

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotReady = errors.New("processing engine not initialized")

// InitError means the engine binaries could not be located or started. It is
// sticky for the process: export stays disabled, preview keeps working.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("processing engine failed to start: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ProgressFunc receives best-effort percentages in 0..100. It may never be
// called; silence is not failure.
type ProgressFunc func(percent int)

// CutRequest describes one stream-copy trim.
type CutRequest struct {
	InputPath  string
	OutputPath string
	Start      float64
	Duration   float64
	// Ext selects the container, e.g. ".mp4" or ".mp3".
	Ext string
}

// Engine is the cutting capability. Initialize is idempotent.
type Engine interface {
	Initialize(ctx context.Context) error
	Ready() bool
	InitError() error
	Cut(ctx context.Context, req CutRequest, progress ProgressFunc) error
}

// Prober reads container metadata. It does not depend on Initialize so that
// preview keeps working when the cutting engine is unavailable.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}
