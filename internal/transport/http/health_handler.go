package http

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-chi/render"

	"github.com/ONEcampaign/interest-rates/internal/config"
	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/operations"
	"github.com/ONEcampaign/interest-rates/internal/scheduler"
)

// LatestRun reports the most recent finished run.
type LatestRun interface {
	Latest() (*operations.OperationResponse, bool)
}

// Schedule lists scheduled jobs. *scheduler.Scheduler implements it.
type Schedule interface {
	Entries() []scheduler.Entry
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	runs     LatestRun
	schedule Schedule
	started  time.Time
	logger   *slog.Logger
}

// NewHealthHandler creates a new health handler. schedule may be nil.
func NewHealthHandler(runs LatestRun, schedule Schedule, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		runs:     runs,
		schedule: schedule,
		started:  time.Now(),
		logger:   logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health. The service is degraded while the
// latest run has failed.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"name":    config.AppName,
		"version": config.AppVersion,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	}
	if latest, ok := h.runs.Latest(); ok {
		body["last_run"] = map[string]interface{}{
			"id":         latest.ID,
			"group":      latest.Group,
			"status":     latest.Status,
			"start_time": latest.StartTime,
			"error":      latest.Error,
		}
		if latest.Status == operations.OperationStatusFailed {
			body["status"] = "degraded"
		}
	}
	render.JSON(w, r, body)
}

// Schedule handles GET /api/schedule
func (h *HealthHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if h.schedule == nil {
		render.JSON(w, r, []scheduler.Entry{})
		return
	}
	render.JSON(w, r, h.schedule.Entries())
}

// OutputFile describes a file in the output directory.
type OutputFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	URL      string    `json:"url"`
}

// OutputsHandler lists and serves the chart files.
type OutputsHandler struct {
	dir    string
	logger *slog.Logger
}

func NewOutputsHandler(dir string, logger *slog.Logger) *OutputsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutputsHandler{dir: dir, logger: logger.With(slog.String("handler", "outputs"))}
}

// List handles GET /api/outputs
func (h *OutputsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.dir)
	if err != nil && !os.IsNotExist(err) {
		h.logger.ErrorContext(r.Context(), "Failed to list outputs", slog.String("error", err.Error()))
		apperrors.WriteError(w, r, apperrors.NewStorageError("list outputs", err))
		return
	}

	files := make([]OutputFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, OutputFile{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
			URL:      "/outputs/" + e.Name(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	render.JSON(w, r, files)
}

// Files serves the output directory under /outputs/.
func (h *OutputsHandler) Files() http.Handler {
	return http.StripPrefix("/outputs/", http.FileServer(http.Dir(filepath.Clean(h.dir))))
}
