package history

import (
	"context"
	"errors"
	"log/slog"

	"github.com/heimdex/mediacrop/internal/editor"
)

// Log adapts a Repository to editor.ExportLog.
type Log struct {
	repo   Repository
	logger *slog.Logger
}

func NewLog(repo Repository, logger *slog.Logger) *Log {
	return &Log{repo: repo, logger: logger}
}

func (l *Log) ExportStarted(ctx context.Context, job editor.ExportJob) error {
	return l.repo.CreateJob(ctx, &Job{
		ID:         job.ID,
		SessionID:  job.SessionID,
		FileName:   job.FileName,
		RangeStart: job.Range.Start,
		RangeEnd:   job.Range.End,
		Status:     JobStatusRunning,
	})
}

func (l *Log) ExportProgress(ctx context.Context, jobID string, percent int) error {
	return l.repo.UpdateJobProgress(ctx, jobID, percent)
}

func (l *Log) ExportFinished(ctx context.Context, jobID string, result *editor.ExportResult, err error) error {
	switch {
	case err == nil:
		var size int64
		if result != nil {
			size = result.Size
		}
		return l.repo.FinishJob(ctx, jobID, JobStatusCompleted, size, "")
	case errors.Is(err, editor.ErrSuperseded):
		return l.repo.FinishJob(ctx, jobID, JobStatusDiscarded, 0, err.Error())
	default:
		if l.logger != nil {
			l.logger.Debug("recording failed export", "job_id", jobID, "error", err)
		}
		return l.repo.FinishJob(ctx, jobID, JobStatusFailed, 0, err.Error())
	}
}

// Jobs lists the export attempts of one session, newest first.
func (l *Log) Jobs(ctx context.Context, sessionID string) ([]*Job, error) {
	return l.repo.ListJobsBySession(ctx, sessionID)
}

// Counts summarises every export attempt in this process.
func (l *Log) Counts(ctx context.Context) (Counts, error) {
	return l.repo.CountJobs(ctx)
}
