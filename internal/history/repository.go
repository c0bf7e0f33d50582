package history

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListJobsBySession(ctx context.Context, sessionID string) ([]*Job, error)
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	FinishJob(ctx context.Context, id, status string, outputSize int64, errorMsg string) error
	CountJobs(ctx context.Context) (Counts, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const jobColumns = `id, session_id, file_name, range_start, range_end, status, progress, output_size, error, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = j.CreatedAt
	if j.Status == "" {
		j.Status = JobStatusRunning
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, session_id, file_name, range_start, range_end, status, progress, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.SessionID, j.FileName, j.RangeStart, j.RangeEnd, j.Status, j.Progress,
		j.CreatedAt.Format(time.RFC3339Nano), j.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// GetJob returns nil, nil when the job does not exist.
func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *SQLiteRepository) ListJobsBySession(ctx context.Context, sessionID string) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// UpdateJobProgress never lowers the stored progress.
func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = MAX(progress, ?), updated_at = ? WHERE id = ?
	`, progress, time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

func (r *SQLiteRepository) FinishJob(ctx context.Context, id, status string, outputSize int64, errorMsg string) error {
	progress := "progress"
	if status == JobStatusCompleted {
		progress = "100"
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, progress = `+progress+`, output_size = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullInt(outputSize), nullString(errorMsg), time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

func (r *SQLiteRepository) CountJobs(ctx context.Context) (Counts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return Counts{}, err
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, err
		}
		switch status {
		case JobStatusRunning:
			c.Running = n
		case JobStatusCompleted:
			c.Completed = n
		case JobStatusFailed:
			c.Failed = n
		case JobStatusDiscarded:
			c.Discarded = n
		}
	}
	return c, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var outputSize sql.NullInt64
	var errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.SessionID, &j.FileName, &j.RangeStart, &j.RangeEnd, &j.Status, &j.Progress,
		&outputSize, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	j.OutputSize = outputSize.Int64
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &j, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n > 0}
}
