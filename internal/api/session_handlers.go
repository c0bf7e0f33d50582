package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/mediacrop/internal/editor"
	"github.com/heimdex/mediacrop/internal/handle"
	"github.com/heimdex/mediacrop/internal/media"
	"github.com/heimdex/mediacrop/internal/timecode"
)

// multipartOverhead is allowed on top of the file limit for boundaries and
// part headers.
const multipartOverhead = 1 << 20

// snapshot reads the session state and surfaces the last engine failure
// exactly once.
func snapshot(s *editor.Session) StateResponse {
	st := s.State()
	if err := s.ConsumeError(); err != nil {
		st.LastError = err.Error()
	}
	return StateToResponse(st)
}

// writeEditorError maps editor and media errors to HTTP responses.
func writeEditorError(w http.ResponseWriter, s *editor.Session, err error) {
	var parseErr *timecode.ParseError

	switch {
	case errors.As(err, &parseErr):
		state := snapshot(s)
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "PARSE_ERROR", State: &state})
	case errors.Is(err, media.ErrUnsupportedFileType):
		WriteError(w, http.StatusUnsupportedMediaType, err.Error(), "UNSUPPORTED_FILE_TYPE")
	case errors.Is(err, media.ErrTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), "FILE_TOO_LARGE")
	case errors.Is(err, editor.ErrEngineNotReady):
		WriteError(w, http.StatusConflict, err.Error(), "ENGINE_NOT_READY")
	case errors.Is(err, editor.ErrExportInFlight):
		WriteError(w, http.StatusConflict, err.Error(), "EXPORT_IN_FLIGHT")
	case errors.Is(err, editor.ErrNoFile):
		WriteError(w, http.StatusConflict, err.Error(), "NO_FILE")
	case errors.Is(err, editor.ErrEmptyRange):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "EMPTY_RANGE")
	case errors.Is(err, editor.ErrNoResult):
		WriteError(w, http.StatusNotFound, err.Error(), "NO_RESULT")
	case errors.Is(err, editor.ErrSessionClosed):
		WriteError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func createSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := cfg.Store.Create()
		cfg.Logger.Info("session created", "session_id", s.ID)
		WriteJSON(w, http.StatusCreated, snapshot(s))
	}
}

func deleteSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Store.Delete(sessionFrom(r).ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func stateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, snapshot(sessionFrom(r)))
	}
}

// uploadHandler streams the multipart "file" field to the scratch dir, then
// selects it and probes its metadata. A probe failure is returned as a
// warning; the file stays selected.
func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)

		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes+multipartOverhead)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "expected multipart/form-data", "BAD_REQUEST")
			return
		}

		var src media.SourceFile
		found := false
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					writeEditorError(w, s, media.ErrTooLarge)
					return
				}
				WriteError(w, http.StatusBadRequest, "malformed upload", "BAD_REQUEST")
				return
			}
			if part.FormName() != "file" {
				part.Close()
				continue
			}

			src, err = media.Save(cfg.UploadDir, part.FileName(), part.Header.Get("Content-Type"), part, cfg.MaxUploadBytes)
			part.Close()
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					err = media.ErrTooLarge
				}
				cfg.Logger.Warn("upload rejected", "session_id", s.ID, "name", part.FileName(), "error", err)
				writeEditorError(w, s, err)
				return
			}
			found = true
			break
		}

		if !found {
			WriteError(w, http.StatusBadRequest, "missing file field", "BAD_REQUEST")
			return
		}

		warning := ""
		if err := s.LoadFile(r.Context(), src, cfg.Prober); err != nil {
			if errors.Is(err, editor.ErrSessionClosed) {
				src.Remove()
				writeEditorError(w, s, err)
				return
			}
			warning = err.Error()
		}

		resp := snapshot(s)
		resp.Warning = warning
		WriteJSON(w, http.StatusOK, resp)
	}
}

func setRangeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)

		var req RangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Start == nil && req.End == nil {
			WriteError(w, http.StatusBadRequest, "start or end is required", "BAD_REQUEST")
			return
		}

		cur := s.Range()
		start, end := cur.Start, cur.End
		if req.Start != nil {
			start = *req.Start
		}
		if req.End != nil {
			end = *req.End
		}
		s.SetRange(start, end)

		WriteJSON(w, http.StatusOK, snapshot(s))
	}
}

func setEndpointHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)

		which, err := editor.ParseEndpoint(chi.URLParam(r, "which"))
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}

		var req EndpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.Draft {
			s.EditText(which, req.Text)
			WriteJSON(w, http.StatusOK, snapshot(s))
			return
		}

		if err := s.SetManualTime(which, req.Text); err != nil {
			writeEditorError(w, s, err)
			return
		}
		WriteJSON(w, http.StatusOK, snapshot(s))
	}
}

func playbackActionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)

		warning := ""
		switch chi.URLParam(r, "action") {
		case "play":
			if err := s.Play(); err != nil {
				var pe *editor.PlaybackError
				if !errors.As(err, &pe) {
					writeEditorError(w, s, err)
					return
				}
				warning = err.Error()
			}
		case "pause":
			s.Pause()
		case "mute":
			s.ToggleMute()
		default:
			WriteError(w, http.StatusNotFound, "unknown playback action", "NOT_FOUND")
			return
		}

		resp := snapshot(s)
		resp.Warning = warning
		WriteJSON(w, http.StatusOK, resp)
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)

		var req SeekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time == nil {
			WriteError(w, http.StatusBadRequest, "time is required", "BAD_REQUEST")
			return
		}
		s.Seek(*req.Time)
		WriteJSON(w, http.StatusOK, snapshot(s))
	}
}

// startExportHandler kicks off a cut and returns immediately; clients poll
// the state endpoint for progress.
func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)

		fut := s.ExportRange(r.Context())
		select {
		case <-fut.Done():
			if _, err := fut.Await(r.Context()); err != nil {
				var execErr *editor.EngineExecutionError
				if !errors.As(err, &execErr) {
					writeEditorError(w, s, err)
					return
				}
			}
		default:
		}

		st := snapshot(s)
		jobID := st.Export.JobID
		if jobID == "" && st.Export.Result != nil {
			jobID = st.Export.Result.JobID
		}
		WriteJSON(w, http.StatusAccepted, ExportAcceptedResponse{JobID: jobID, State: st})
	}
}

func clearExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if err := s.ClearResult(); err != nil {
			writeEditorError(w, s, err)
			return
		}
		WriteJSON(w, http.StatusOK, snapshot(s))
	}
}

// mediaHandler serves the bytes behind a handle with range support.
func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blob, err := cfg.Registry.Resolve(chi.URLParam(r, "handle"))
		switch {
		case errors.Is(err, handle.ErrReleased):
			WriteError(w, http.StatusGone, "media handle released", "HANDLE_RELEASED")
			return
		case err != nil:
			WriteError(w, http.StatusNotFound, "media not found", "NOT_FOUND")
			return
		}

		download := r.URL.Query().Get("download") == "1"
		if err := cfg.MediaServer.ServeBlob(w, r, blob, download); err != nil {
			cfg.Logger.Error("media serve error", "error", err)
		}
	}
}
