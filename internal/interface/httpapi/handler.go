package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// StatsService serves and resets the send ledger.
type StatsService interface {
	GetStats(ctx context.Context) (*entity.StatsView, error)
	ResetCounters(ctx context.Context) error
}

// AutomationService reads and drives per-lead automation.
type AutomationService interface {
	GetDetail(ctx context.Context, leadID string) (*entity.AutomationDetail, error)
	EnsureRecord(ctx context.Context, leadID string, stage entity.Stage) (*entity.AutomationRecord, error)
	UpdateStage(ctx context.Context, leadID string, stage entity.Stage) (*entity.AutomationRecord, error)
	Pause(ctx context.Context, leadID string, reason entity.PauseReason) (*entity.AutomationRecord, error)
	Resume(ctx context.Context, leadID string) (*entity.AutomationRecord, error)
}

// stageRequest is the body of the enroll and stage change routes.
type stageRequest struct {
	Stage entity.Stage `json:"stage" validate:"required"`
}

// Handler exposes the admin endpoints used by the CRM pipeline and operators.
type Handler struct {
	stats       StatsService
	automations AutomationService
	validate    *validator.Validate
	logger      logger.Logger
}

// NewHandler creates a new admin handler
func NewHandler(stats StatsService, automations AutomationService, logger logger.Logger) *Handler {
	return &Handler{
		stats:       stats,
		automations: automations,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Register mounts the admin routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/stats", h.getStats)
	mux.HandleFunc("POST /api/v1/stats/reset", h.resetStats)
	mux.HandleFunc("GET /api/v1/automations/{leadId}", h.getAutomation)
	mux.HandleFunc("POST /api/v1/automations/{leadId}", h.enroll)
	mux.HandleFunc("POST /api/v1/automations/{leadId}/stage", h.updateStage)
	mux.HandleFunc("POST /api/v1/automations/{leadId}/pause", h.pause)
	mux.HandleFunc("POST /api/v1/automations/{leadId}/resume", h.resume)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	view, err := h.stats.GetStats(r.Context())
	if err != nil {
		h.logger.Error("Failed to load stats", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) resetStats(w http.ResponseWriter, r *http.Request) {
	if err := h.stats.ResetCounters(r.Context()); err != nil {
		h.logger.Error("Failed to reset stats", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to reset stats")
		return
	}
	h.logger.Info("Email stats reset")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getAutomation(w http.ResponseWriter, r *http.Request) {
	leadID := r.PathValue("leadId")
	detail, err := h.automations.GetDetail(r.Context(), leadID)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "automation not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load automation", "leadId", leadID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load automation")
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// enroll creates the lead's automation at the given stage if it has none.
func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	leadID := r.PathValue("leadId")
	stage, ok := h.decodeStage(w, r)
	if !ok {
		return
	}
	record, err := h.automations.EnsureRecord(r.Context(), leadID, stage)
	h.respondRecord(w, leadID, "enroll", record, err)
}

func (h *Handler) updateStage(w http.ResponseWriter, r *http.Request) {
	leadID := r.PathValue("leadId")
	stage, ok := h.decodeStage(w, r)
	if !ok {
		return
	}
	record, err := h.automations.UpdateStage(r.Context(), leadID, stage)
	h.respondRecord(w, leadID, "update stage", record, err)
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	leadID := r.PathValue("leadId")
	record, err := h.automations.Pause(r.Context(), leadID, entity.PauseReasonManual)
	h.respondRecord(w, leadID, "pause", record, err)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	leadID := r.PathValue("leadId")
	record, err := h.automations.Resume(r.Context(), leadID)
	h.respondRecord(w, leadID, "resume", record, err)
}

func (h *Handler) decodeStage(w http.ResponseWriter, r *http.Request) (entity.Stage, bool) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "stage is required")
		return "", false
	}
	if !req.Stage.Valid() {
		h.writeError(w, http.StatusBadRequest, "unknown stage "+string(req.Stage))
		return "", false
	}
	return req.Stage, true
}

func (h *Handler) respondRecord(w http.ResponseWriter, leadID, action string, record *entity.AutomationRecord, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "automation not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to "+action+" automation", "leadId", leadID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to "+action+" automation")
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write response", "status", status, "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
