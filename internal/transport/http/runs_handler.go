package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/operations"
)

// Runner executes pipeline runs and reports on them. *operations.Manager
// implements it.
type Runner interface {
	Execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error)
	GetOperation(id string) (*operations.OperationResponse, error)
	ListOperations() []*operations.OperationResponse
	History() []*operations.OperationResponse
	Latest() (*operations.OperationResponse, bool)
	GetRegistry() *operations.Registry
}

var validate = validator.New()

// RunRequest is the body of POST /api/runs. An empty body runs the steps
// due today.
type RunRequest struct {
	Steps   []string `json:"steps,omitempty" validate:"omitempty,dive,required"`
	All     bool     `json:"all"`
	Refresh bool     `json:"refresh"`
}

// Bind implements the render.Binder interface for request validation
func (r *RunRequest) Bind(*http.Request) error {
	if err := validate.Struct(r); err != nil {
		return apperrors.FromValidation(err)
	}
	return nil
}

// RunsHandler starts runs and reports their state.
type RunsHandler struct {
	runner  Runner
	baseCtx context.Context
	logger  *slog.Logger
	running atomic.Bool
}

// NewRunsHandler creates a runs handler. Background runs use baseCtx, so
// they outlive the request that started them.
func NewRunsHandler(baseCtx context.Context, runner Runner, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		runner:  runner,
		baseCtx: baseCtx,
		logger:  logger.With(slog.String("handler", "runs")),
	}
}

// Routes sets up the run routes
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Start)
	r.Get("/latest", h.Latest)
	r.Get("/{id}", h.Get)
	return r
}

// List handles GET /api/runs
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"active": h.runner.ListOperations(),
		"recent": h.runner.History(),
	})
}

// Latest handles GET /api/runs/latest
func (h *RunsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.runner.Latest()
	if !ok {
		apperrors.WriteError(w, r, apperrors.ErrRunNotFound)
		return
	}
	render.JSON(w, r, resp)
}

// Get handles GET /api/runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp, err := h.runner.GetOperation(id)
	if err != nil {
		apperrors.WriteError(w, r, apperrors.NotFoundError("run "+id))
		return
	}
	render.JSON(w, r, resp)
}

// Start handles POST /api/runs. Only one run started here is in flight at
// a time.
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	req := &RunRequest{}
	if r.ContentLength != 0 {
		if err := render.Bind(r, req); err != nil {
			apperrors.WriteError(w, r, asValidation(err))
			return
		}
	}
	reg := h.runner.GetRegistry()
	for _, id := range req.Steps {
		if !reg.Has(id) {
			apperrors.WriteError(w, r, apperrors.NotFoundError("step "+id))
			return
		}
	}

	if !h.running.CompareAndSwap(false, true) {
		apperrors.WriteError(w, r, apperrors.ErrConflict)
		return
	}

	opReq := operations.OperationRequest{
		ID:      uuid.NewString(),
		Steps:   req.Steps,
		All:     req.All,
		Refresh: req.Refresh,
		Today:   time.Now(),
	}
	go func() {
		defer h.running.Store(false)
		resp, err := h.runner.Execute(h.baseCtx, opReq)
		if err != nil {
			h.logger.ErrorContext(h.baseCtx, "run failed",
				slog.String("operation_id", opReq.ID),
				slog.String("error", err.Error()))
			return
		}
		h.logger.InfoContext(h.baseCtx, "run finished",
			slog.String("operation_id", resp.ID),
			slog.String("status", string(resp.Status)))
	}()

	h.logger.InfoContext(r.Context(), "run accepted", slog.String("operation_id", opReq.ID))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"id": opReq.ID, "status": "accepted"})
}

// asValidation keeps application errors and treats anything else, such as
// malformed JSON, as invalid input.
func asValidation(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewAppValidationError(err.Error())
}
