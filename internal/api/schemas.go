package api

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/mediacrop/internal/editor"
	"github.com/heimdex/mediacrop/internal/handle"
	"github.com/heimdex/mediacrop/internal/history"
	"github.com/heimdex/mediacrop/internal/timecode"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

const (
	EngineStateInitializing = "initializing"
	EngineStateReady        = "ready"
	EngineStateFailed       = "failed"
)

type EngineStatusResponse struct {
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
	Version string `json:"version,omitempty"`
}

type StatusResponse struct {
	Engine         EngineStatusResponse `json:"engine"`
	Sessions       int                  `json:"sessions"`
	ExportsRunning int                  `json:"exports_running"`
	Handles        handle.Stats         `json:"handles"`
	History        *history.Counts      `json:"history,omitempty"`
	MaxUploadBytes int64                `json:"max_upload_bytes"`
	MaxUpload      string               `json:"max_upload"`
}

// StateResponse is a session snapshot plus display helpers.
type StateResponse struct {
	editor.State
	FileSize   string `json:"file_size,omitempty"`
	ResultSize string `json:"result_size,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
	ResultURL  string `json:"result_url,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

type RangeRequest struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// EndpointRequest carries typed text for one endpoint. Draft stores the
// text without applying it.
type EndpointRequest struct {
	Text  string `json:"text"`
	Draft bool   `json:"draft,omitempty"`
}

type SeekRequest struct {
	Time *float64 `json:"time"`
}

type ExportAcceptedResponse struct {
	JobID string        `json:"job_id"`
	State StateResponse `json:"state"`
}

type JobResponse struct {
	ID         string `json:"id"`
	FileName   string `json:"file_name"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	OutputSize string `json:"output_size,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string         `json:"error"`
	Code  string         `json:"code,omitempty"`
	State *StateResponse `json:"state,omitempty"`
}

func mediaURL(h string) string {
	if h == "" {
		return ""
	}
	return "/api/media/" + h
}

func humanizeBytes(n int64) string {
	if n <= 0 {
		return ""
	}
	return humanize.Bytes(uint64(n))
}

func StateToResponse(st editor.State) StateResponse {
	resp := StateResponse{
		State:     st,
		SourceURL: mediaURL(st.SourceHandle),
	}
	if st.File != nil {
		resp.FileSize = humanize.Bytes(uint64(st.File.Size))
	}
	if r := st.Export.Result; r != nil {
		resp.ResultSize = humanize.Bytes(uint64(r.Size))
		resp.ResultURL = mediaURL(r.Handle)
	}
	return resp
}

func JobToResponse(j *history.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		FileName:  j.FileName,
		Start:     timecode.FormatSeconds(j.RangeStart),
		End:       timecode.FormatSeconds(j.RangeEnd),
		Status:    j.Status,
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
	if j.OutputSize > 0 {
		resp.OutputSize = humanize.Bytes(uint64(j.OutputSize))
	}
	return resp
}
