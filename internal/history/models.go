package history

import "time"

const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusDiscarded = "discarded"
)

// Job is one export attempt.
type Job struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	FileName   string    `json:"file_name"`
	RangeStart float64   `json:"range_start"`
	RangeEnd   float64   `json:"range_end"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	OutputSize int64     `json:"output_size,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Counts summarises jobs by status.
type Counts struct {
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Discarded int `json:"discarded"`
}
