package jobs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Handler serves the polling surface for pipeline job progress.
type Handler struct {
	log  *slog.Logger
	feed *Feed
}

// NewHandler constructs a Handler over the given feed.
func NewHandler(log *slog.Logger, feed *Feed) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if feed == nil {
		feed = NewFeed(log)
	}
	return &Handler{log: log, feed: feed}
}

// Register mounts the job routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /jobs/{id}", h.handleGet)
	mux.HandleFunc("POST /jobs/{id}", h.handlePost)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.PathValue("id"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	snap, ok := h.feed.Snapshot(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.PathValue("id"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	var upd ProgressUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	if upd.Status != "" && !ValidStatus(upd.Status) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status: %q", upd.Status))
		return
	}
	if upd.Progress < 0 || upd.Progress > 100 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("progress out of range [0,100]: %d", upd.Progress))
		return
	}

	h.feed.Publish(jobID, upd, time.Now().UTC())
	h.log.Debug("jobs.publish", "job_id", jobID, "status", upd.Status, "progress", upd.Progress)

	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
