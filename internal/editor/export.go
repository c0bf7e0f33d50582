package editor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/mediacrop/internal/engine"
	"github.com/heimdex/mediacrop/internal/handle"
	"github.com/heimdex/mediacrop/internal/logging"
	"github.com/heimdex/mediacrop/internal/timecode"
)

// ExportJob describes one export attempt as reported to an ExportLog.
type ExportJob struct {
	ID        string
	SessionID string
	FileName  string
	Range     Range
}

// ExportLog records export attempts. Implementations must not block for
// long; failures are logged and otherwise ignored.
type ExportLog interface {
	ExportStarted(ctx context.Context, job ExportJob) error
	ExportProgress(ctx context.Context, jobID string, percent int) error
	ExportFinished(ctx context.Context, jobID string, result *ExportResult, err error) error
}

// ExportStatus is the export controller's externally visible state.
type ExportStatus struct {
	State    ExportState   `json:"state"`
	Progress int           `json:"progress"`
	JobID    string        `json:"job_id,omitempty"`
	Result   *ExportResult `json:"result,omitempty"`
}

// ExportRange starts a cut of the current range. Preconditions are checked
// in order: session closed, export in flight, engine not ready, no file,
// empty range. A failed precondition returns an already-failed future and
// the engine is not called.
//
// The cut runs on the session's own context, not ctx, so it outlives the
// request that started it. There is no cancellation.
func (s *Session) ExportRange(ctx context.Context) *Future[*ExportResult] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return failedFuture[*ExportResult](ErrSessionClosed)
	}
	if s.exportState == ExportExporting || s.inflight {
		return failedFuture[*ExportResult](ErrExportInFlight)
	}
	if s.deps.Engine == nil || !s.deps.Engine.Ready() {
		return failedFuture[*ExportResult](ErrEngineNotReady)
	}
	if s.src == nil {
		return failedFuture[*ExportResult](ErrNoFile)
	}
	rng := s.selector.Range()
	if rng.End <= rng.Start {
		return failedFuture[*ExportResult](ErrEmptyRange)
	}

	s.releaseResultLocked()

	job := ExportJob{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		FileName:  s.src.Name,
		Range:     rng,
	}
	src := *s.src
	gen := s.gen

	s.exportState = ExportExporting
	s.inflight = true
	s.progress = 0
	s.jobID = job.ID
	s.lastErr = nil

	req := engine.CutRequest{
		InputPath:  src.Path,
		OutputPath: filepath.Join(s.deps.OutputDir, "out-"+job.ID+src.Ext()),
		Start:      rng.Start,
		Duration:   rng.Length(),
		Ext:        src.Ext(),
	}

	logger := logging.WithJobID(s.logger, job.ID)
	logger.Info("export started",
		"start", timecode.FormatSeconds(rng.Start),
		"end", timecode.FormatSeconds(rng.End),
	)
	if s.deps.Log != nil {
		if err := s.deps.Log.ExportStarted(ctx, job); err != nil {
			logger.Warn("failed to record export start", "error", err)
		}
	}

	fut := newFuture[*ExportResult]()
	go s.runExport(gen, job, req, src.OutputMIME(), src.OutputName(), fut)
	return fut
}

func (s *Session) runExport(gen uint64, job ExportJob, req engine.CutRequest, mimeType, downloadName string, fut *Future[*ExportResult]) {
	logger := logging.WithJobID(s.logger, job.ID)
	started := time.Now()

	err := s.deps.Engine.Cut(s.ctx, req, func(percent int) {
		s.onProgress(gen, job.ID, percent)
	})

	s.mu.Lock()
	s.inflight = false
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		removeQuietly(req.OutputPath)
		logger.Info("export discarded", "reason", "superseded")
		s.recordFinished(job.ID, nil, ErrSuperseded)
		fut.resolve(nil, ErrSuperseded)
		return
	}

	if err != nil {
		execErr := &EngineExecutionError{JobID: job.ID, Err: err}
		s.exportState = ExportIdle
		s.progress = 0
		s.lastErr = execErr
		s.mu.Unlock()

		removeQuietly(req.OutputPath)
		logger.Error("export failed", "error", err, "elapsed", time.Since(started))
		s.recordFinished(job.ID, nil, execErr)
		fut.resolve(nil, execErr)
		return
	}

	info, statErr := os.Stat(req.OutputPath)
	if statErr != nil {
		execErr := &EngineExecutionError{JobID: job.ID, Err: fmt.Errorf("output missing: %w", statErr)}
		s.exportState = ExportIdle
		s.progress = 0
		s.lastErr = execErr
		s.mu.Unlock()

		logger.Error("export failed", "error", execErr)
		s.recordFinished(job.ID, nil, execErr)
		fut.resolve(nil, execErr)
		return
	}

	h := s.deps.Registry.Allocate(handle.Blob{
		Path:         req.OutputPath,
		MIME:         mimeType,
		Size:         info.Size(),
		DownloadName: downloadName,
	})
	result := &ExportResult{
		JobID:        job.ID,
		Handle:       h.ID,
		Path:         req.OutputPath,
		Size:         info.Size(),
		MIME:         mimeType,
		DownloadName: downloadName,
		Range:        job.Range,
		CreatedAt:    time.Now().UTC(),
	}
	s.result = result
	s.exportState = ExportReady
	s.progress = 100
	s.mu.Unlock()

	logger.Info("export finished", "size", info.Size(), "elapsed", time.Since(started))
	s.recordFinished(job.ID, result, nil)
	fut.resolve(result, nil)
}

func (s *Session) onProgress(gen uint64, jobID string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	s.mu.Lock()
	if gen != s.gen || s.jobID != jobID || s.exportState != ExportExporting || percent <= s.progress {
		s.mu.Unlock()
		return
	}
	s.progress = percent
	s.mu.Unlock()

	if s.deps.Log != nil {
		if err := s.deps.Log.ExportProgress(s.ctx, jobID, percent); err != nil {
			s.logger.Debug("failed to record export progress", "job_id", jobID, "error", err)
		}
	}
}

func (s *Session) recordFinished(jobID string, result *ExportResult, err error) {
	if s.deps.Log == nil {
		return
	}
	if logErr := s.deps.Log.ExportFinished(context.WithoutCancel(s.ctx), jobID, result, err); logErr != nil {
		s.logger.Warn("failed to record export outcome", "job_id", jobID, "error", logErr)
	}
}

// ClearResult releases the export result and returns to idle.
func (s *Session) ClearResult() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exportState == ExportExporting {
		return ErrExportInFlight
	}
	if s.result == nil {
		return ErrNoResult
	}
	s.releaseResultLocked()
	s.exportState = ExportIdle
	s.progress = 0
	return nil
}

// Export returns the export controller's state.
func (s *Session) Export() ExportStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportLocked()
}

func (s *Session) exportLocked() ExportStatus {
	st := ExportStatus{State: s.exportState, Progress: s.progress}
	if s.exportState == ExportExporting {
		st.JobID = s.jobID
	}
	if s.result != nil {
		r := *s.result
		st.Result = &r
	}
	return st
}

// ConsumeError returns the last engine failure and clears it.
func (s *Session) ConsumeError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.lastErr
	s.lastErr = nil
	return err
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}
