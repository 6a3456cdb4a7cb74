package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/mosdac_downloader/internal/logctx"
	"github.com/italolelis/mosdac_downloader/internal/orchestrator"
	"github.com/italolelis/mosdac_downloader/internal/telemetry"
)

// ProgressSource exposes the live counters of a run.
type ProgressSource interface {
	Snapshot() orchestrator.Snapshot
}

type StatusHandler struct {
	progress  ProgressSource
	telemetry *telemetry.Telemetry
}

func NewStatusHandler(progress ProgressSource, t *telemetry.Telemetry) *StatusHandler {
	return &StatusHandler{progress: progress, telemetry: t}
}

// Routes mounts /healthz, /status and /metrics.
func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(h.telemetry).Middleware)

	r.Get("/healthz", h.HandleHealth)
	r.Get("/status", h.HandleStatus)
	r.Method(http.MethodGet, "/metrics", h.telemetry.Handler())

	return r
}

func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.progress.Snapshot())
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to encode response", "err", err)
	}
}
