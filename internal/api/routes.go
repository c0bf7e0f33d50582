package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/mediacrop/internal/engine"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())

	r.Get("/", pageHandler())
	r.Get("/health", healthHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusHandler(cfg))
		r.Get("/media/{handle}", mediaHandler(cfg))
		r.Head("/media/{handle}", mediaHandler(cfg))

		r.Post("/sessions", createSessionHandler(cfg))
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.Store))

			r.Delete("/", deleteSessionHandler(cfg))
			r.Get("/state", stateHandler(cfg))
			r.Post("/file", uploadHandler(cfg))
			r.Put("/range", setRangeHandler(cfg))
			r.Put("/range/{which}", setEndpointHandler(cfg))
			r.Post("/playback/{action}", playbackActionHandler(cfg))
			r.Put("/playback/seek", seekHandler(cfg))
			r.Post("/export", startExportHandler(cfg))
			r.Delete("/export", clearExportHandler(cfg))
			r.Get("/exports", listExportsHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

// EngineStatus reports the engine banner state.
func EngineStatus(eng engine.Engine) EngineStatusResponse {
	if eng == nil {
		return EngineStatusResponse{State: EngineStateFailed, Error: engine.ErrNotReady.Error()}
	}
	if eng.Ready() {
		resp := EngineStatusResponse{State: EngineStateReady}
		if v, ok := eng.(interface{ Version() string }); ok {
			resp.Version = v.Version()
		}
		return resp
	}
	if err := eng.InitError(); err != nil {
		return EngineStatusResponse{State: EngineStateFailed, Error: err.Error()}
	}
	return EngineStatusResponse{State: EngineStateInitializing}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Engine:         EngineStatus(cfg.Engine),
			Sessions:       cfg.Store.Len(),
			ExportsRunning: cfg.Store.Exporting(),
			Handles:        cfg.Registry.Stats(),
			MaxUploadBytes: cfg.MaxUploadBytes,
			MaxUpload:      humanizeBytes(cfg.MaxUploadBytes),
		}

		if cfg.History != nil {
			counts, err := cfg.History.Counts(r.Context())
			if err != nil {
				cfg.Logger.Warn("failed to count export history", "error", err)
			} else {
				resp.History = &counts
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)

		resp := JobsResponse{Jobs: []JobResponse{}}
		if cfg.History == nil {
			WriteJSON(w, http.StatusOK, resp)
			return
		}

		jobs, err := cfg.History.Jobs(r.Context(), s.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
			return
		}
		for _, j := range jobs {
			resp.Jobs = append(resp.Jobs, JobToResponse(j))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
