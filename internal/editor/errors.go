package editor

import (
	"errors"
	"fmt"
)

var (
	ErrEngineNotReady = errors.New("processing engine is not ready")
	ErrEmptyRange     = errors.New("selected range is empty")
	ErrExportInFlight = errors.New("an export is already running")
	ErrNoFile         = errors.New("no file selected")
	ErrNoMedia        = errors.New("media is not loaded yet")
	ErrSessionClosed  = errors.New("session closed")
	ErrSuperseded     = errors.New("export discarded: file was replaced")
	ErrNoResult       = errors.New("no export result")
)

// EngineExecutionError wraps a failed engine call. The range is preserved
// so the user can retry.
type EngineExecutionError struct {
	JobID string
	Err   error
}

func (e *EngineExecutionError) Error() string {
	return fmt.Sprintf("crop failed: %v", e.Err)
}

func (e *EngineExecutionError) Unwrap() error { return e.Err }

// PlaybackError is a non-fatal warning: playback did not start.
type PlaybackError struct {
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback failed: %v", e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
