package editor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/heimdex/mediacrop/internal/engine"
	"github.com/heimdex/mediacrop/internal/handle"
	"github.com/heimdex/mediacrop/internal/logging"
	"github.com/heimdex/mediacrop/internal/media"
	"github.com/heimdex/mediacrop/internal/playback"
)

// Surface is the playback element the session drives. Audio and video
// variants live in the playback package; the session never branches on kind.
type Surface interface {
	Play() error
	Pause()
	Seek(t float64)
	Duration() float64
	CurrentTime() float64
	Playing() bool
	SetMuted(muted bool)
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Registry *handle.Registry
	Engine   engine.Engine
	Log      ExportLog
	// OutputDir receives export results.
	OutputDir string
	Logger    *slog.Logger
}

// ExportState is the export controller's state.
type ExportState string

const (
	ExportIdle      ExportState = "idle"
	ExportExporting ExportState = "exporting"
	ExportReady     ExportState = "ready"
)

// PlaybackState mirrors the preview element. CurrentTime is informational
// and never constrains the range.
type PlaybackState struct {
	CurrentTime float64 `json:"current_time"`
	IsPlaying   bool    `json:"is_playing"`
	IsMuted     bool    `json:"is_muted"`
}

// ExportResult is one successful cut and the handle that serves it.
type ExportResult struct {
	JobID        string    `json:"job_id"`
	Handle       string    `json:"handle"`
	Path         string    `json:"-"`
	Size         int64     `json:"size"`
	MIME         string    `json:"mime"`
	DownloadName string    `json:"download_name"`
	Range        Range     `json:"range"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session owns one selected file, its preview handle, the range selector,
// playback state, and the export controller. All methods are safe for
// concurrent use.
type Session struct {
	ID string

	deps   Deps
	ctx    context.Context
	logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	gen      uint64
	src      *media.SourceFile
	srcHdl   string
	surface  Surface
	selector *Selector
	muted    bool
	playing  bool

	exportState ExportState
	// inflight is set while an engine call runs, even one whose file has
	// since been replaced.
	inflight    bool
	progress    int
	jobID       string
	result      *ExportResult
	lastErr     error
}

// NewSession builds an empty session. ctx bounds background engine calls and
// should only end at shutdown.
func NewSession(ctx context.Context, id string, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{
		ID:          id,
		deps:        deps,
		ctx:         ctx,
		logger:      logging.WithSessionID(logger, id),
		selector:    NewSelector(),
		exportState: ExportIdle,
	}
}

// SelectFile replaces the source file. The previous preview handle and any
// export result are released, the range and playback reset, and an export
// still running for the old file will be discarded when it finishes. The
// range stays empty until OnMetadataReady.
func (s *Session) SelectFile(src media.SourceFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.releaseSourceLocked()
	s.releaseResultLocked()

	s.gen++
	s.src = &src
	s.srcHdl = s.deps.Registry.Allocate(handle.Blob{
		Path:         src.Path,
		MIME:         src.OutputMIME(),
		Size:         src.Size,
		DownloadName: src.Name,
	}).ID
	s.surface = nil
	s.selector = NewSelector()
	s.playing = false
	s.exportState = ExportIdle
	s.progress = 0
	s.lastErr = nil

	s.logger.Info("file selected", "name", src.Name, "kind", src.Kind, "size", src.Size)
	return nil
}

// AttachSurface sets the playback element for the current file.
func (s *Session) AttachSurface(surface Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.surface = surface
	if surface != nil {
		surface.SetMuted(s.muted)
	}
}

// OnMetadataReady initialises the range to [0, duration]. Unknown, infinite
// or negative durations are ignored; zero is accepted.
func (s *Session) OnMetadataReady(duration float64) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		s.logger.Warn("ignoring unusable duration", "duration", duration)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == nil || s.closed {
		return
	}
	s.selector.Reset(duration)
	s.logger.Debug("metadata ready", "duration", duration)
}

// LoadFile selects src, probes it and, if the session still holds the same
// file afterwards, attaches a surface and applies the duration. The returned
// error is a warning about metadata; the file stays selected either way.
func (s *Session) LoadFile(ctx context.Context, src media.SourceFile, prober engine.Prober) error {
	if err := s.SelectFile(src); err != nil {
		return err
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	if prober == nil {
		return fmt.Errorf("metadata unavailable: no prober")
	}
	pr, err := prober.Probe(ctx, src.Path)
	if err != nil {
		s.logger.Warn("metadata probe failed", "error", err)
		return fmt.Errorf("metadata unavailable: %w", err)
	}
	duration, ok := pr.Duration()
	if !ok {
		return fmt.Errorf("metadata unavailable: duration unknown")
	}

	var surface Surface
	if src.Kind == media.KindVideo {
		surface = playback.NewVideoSurface(duration, pr.VideoStreams())
	} else {
		surface = playback.NewAudioSurface(duration, pr.AudioStreams())
	}

	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return ErrSuperseded
	}

	s.AttachSurface(surface)
	s.OnMetadataReady(duration)
	return nil
}

// Play starts playback. Failure is a *PlaybackError and leaves the session
// not playing.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.surface == nil {
		s.playing = false
		return &PlaybackError{Err: ErrNoMedia}
	}
	if err := s.surface.Play(); err != nil {
		s.playing = false
		s.logger.Warn("playback failed", "error", err)
		return &PlaybackError{Err: err}
	}
	s.playing = true
	return nil
}

func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.surface != nil {
		s.surface.Pause()
	}
	s.playing = false
}

// Seek moves the playback position, clamped to [0, duration].
func (s *Session) Seek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.surface == nil {
		return
	}
	d := s.selector.Duration()
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > d {
		t = d
	}
	s.surface.Seek(t)
}

func (s *Session) ToggleMute() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.muted = !s.muted
	if s.surface != nil {
		s.surface.SetMuted(s.muted)
	}
}

// Playback returns the current playback state.
func (s *Session) Playback() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playbackLocked()
}

func (s *Session) playbackLocked() PlaybackState {
	st := PlaybackState{IsMuted: s.muted}
	if s.surface != nil {
		st.CurrentTime = s.surface.CurrentTime()
		if s.playing && !s.surface.Playing() {
			s.playing = false
		}
	}
	st.IsPlaying = s.playing
	return st
}

// SetRange applies a slider drag.
func (s *Session) SetRange(start, end float64) Range {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selector.SetRange(start, end)
	return s.selector.Range()
}

// SetManualTime applies typed text to one endpoint.
func (s *Session) SetManualTime(which Endpoint, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selector.SetManualTime(which, text)
}

// EditText stores unapplied text for an endpoint.
func (s *Session) EditText(which Endpoint, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selector.EditText(which, text)
}

func (s *Session) Range() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.Range()
}

// SourceHandle returns the preview handle of the selected file.
func (s *Session) SourceHandle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srcHdl
}

// State is a point-in-time snapshot of a session.
type State struct {
	ID           string            `json:"id"`
	File         *media.SourceFile `json:"file,omitempty"`
	SourceHandle string            `json:"source_handle,omitempty"`
	Duration     float64           `json:"duration"`
	Range        Range             `json:"range"`
	StartText    string            `json:"start_text"`
	EndText      string            `json:"end_text"`
	Playback     PlaybackState     `json:"playback"`
	Export       ExportStatus      `json:"export"`
	LastError    string            `json:"last_error,omitempty"`
}

// State returns a snapshot. It does not consume the last error.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:           s.ID,
		SourceHandle: s.srcHdl,
		Duration:     s.selector.Duration(),
		Range:        s.selector.Range(),
		StartText:    s.selector.Text(EndpointStart),
		EndText:      s.selector.Text(EndpointEnd),
		Playback:     s.playbackLocked(),
		Export:       s.exportLocked(),
	}
	if s.src != nil {
		f := *s.src
		st.File = &f
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Teardown releases every handle the session owns. Safe to call repeatedly.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	s.releaseSourceLocked()
	s.releaseResultLocked()
	s.surface = nil
	s.playing = false
	s.exportState = ExportIdle
	s.logger.Info("session torn down")
}

func (s *Session) releaseSourceLocked() {
	if s.srcHdl != "" {
		if err := s.deps.Registry.Release(s.srcHdl); err != nil {
			s.logger.Warn("failed to release source handle", "error", err)
		}
		s.srcHdl = ""
	}
	if s.src != nil {
		if err := s.src.Remove(); err != nil {
			s.logger.Warn("failed to remove source file", "error", err)
		}
		s.src = nil
	}
}

func (s *Session) releaseResultLocked() {
	if s.result == nil {
		return
	}
	if err := s.deps.Registry.Release(s.result.Handle); err != nil {
		s.logger.Warn("failed to release result handle", "error", err)
	}
	if err := os.Remove(s.result.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove result file", "error", err)
	}
	s.result = nil
}
