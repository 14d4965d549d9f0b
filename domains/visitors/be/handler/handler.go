package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/domains/visitors/be/repo"
	"github.com/gateflow-app/gateflow/domains/visitors/be/service"
	platformlogging "github.com/gateflow-app/gateflow/platform/go/logging"
	"github.com/gateflow-app/gateflow/platform/go/problem"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

type operation string

const (
	createOperation      operation = "visitorsCreate"
	decisionOperation    operation = "visitorsDecision"
	leaveAtGateOperation operation = "visitorsLeaveAtGate"
)

// Handler exposes the visitor lifecycle over HTTP.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("visitors service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the visitor endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Post("/{visitorID}/decision", h.decision)
	r.Post("/{visitorID}/leave-at-gate", h.leaveAtGate)
	return r
}

type createRequest struct {
	UnitRef      string `json:"unitRef"`
	VisitorType  string `json:"visitorType"`
	VisitorPhone string `json:"visitorPhone"`
	GuardID      string `json:"guardId"`
	PhotoRef     string `json:"photoRef"`
	Note         string `json:"note"`
}

type decisionRequest struct {
	Decision   string `json:"decision"`
	ResidentID string `json:"residentId"`
	Note       string `json:"note"`
}

type leaveAtGateRequest struct {
	GuardID string `json:"guardId"`
	Note    string `json:"note"`
}

type visitorResponse struct {
	VisitorID    string  `json:"visitorId"`
	SocietyID    string  `json:"societyId"`
	FlatID       string  `json:"flatId"`
	FlatNo       string  `json:"flatNo"`
	VisitorType  string  `json:"visitorType"`
	VisitorPhone string  `json:"visitorPhone"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"createdAt"`
	ApprovedAt   *string `json:"approvedAt,omitempty"`
	ApprovedBy   string  `json:"approvedBy,omitempty"`
	GuardID      string  `json:"guardId"`
	PhotoRef     string  `json:"photoRef,omitempty"`
	Note         string  `json:"note,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if !h.decode(w, r, &body) {
		return
	}

	entry, err := h.svc.Create(r.Context(), service.CreateInput{
		UnitRef:      body.UnitRef,
		VisitorType:  body.VisitorType,
		VisitorPhone: body.VisitorPhone,
		GuardID:      body.GuardID,
		PhotoRef:     body.PhotoRef,
		Note:         body.Note,
	})
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	h.writeJSON(w, http.StatusCreated, toResponse(entry))
}

func (h *Handler) decision(w http.ResponseWriter, r *http.Request) {
	var body decisionRequest
	if !h.decode(w, r, &body) {
		return
	}

	entry, err := h.svc.Decide(r.Context(), chi.URLParam(r, "visitorID"), body.Decision, body.ResidentID, body.Note)
	if err != nil {
		h.writeError(w, r, err, decisionOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toResponse(entry))
}

func (h *Handler) leaveAtGate(w http.ResponseWriter, r *http.Request) {
	var body leaveAtGateRequest
	if !h.decode(w, r, &body) {
		return
	}

	entry, err := h.svc.LeaveAtGate(r.Context(), chi.URLParam(r, "visitorID"), body.GuardID, body.Note)
	if err != nil {
		h.writeError(w, r, err, leaveAtGateOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toResponse(entry))
}

func toResponse(entry repo.Entry) visitorResponse {
	resp := visitorResponse{
		VisitorID:    entry.VisitorID,
		SocietyID:    entry.SocietyID,
		FlatID:       entry.FlatID,
		FlatNo:       entry.FlatNo,
		VisitorType:  entry.VisitorType,
		VisitorPhone: entry.VisitorPhone,
		Status:       entry.Status,
		CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
		ApprovedBy:   entry.ApprovedBy,
		GuardID:      entry.GuardID,
		PhotoRef:     entry.PhotoRef,
		Note:         entry.Note,
	}
	if entry.ApprovedAt != nil {
		approvedAt := entry.ApprovedAt.UTC().Format(time.RFC3339)
		resp.ApprovedAt = &approvedAt
	}
	return resp
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		problem.Write(w, problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: "request body must be valid JSON",
		})
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op operation) {
	details := h.classifyError(err)

	logger := platformlogging.FromRequest(r, h.logger)
	logFields := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", details.Status),
	}

	switch {
	case details.Status >= http.StatusInternalServerError:
		logger.Error("visitors operation failed", append(logFields, zap.Error(err))...)
	case details.Status == http.StatusNotFound:
		logger.Info("visitor entry not found", append(logFields, zap.Error(err))...)
	default:
		logger.Warn("visitors request rejected", append(logFields, zap.Error(err))...)
	}

	problem.Write(w, details)
}

func (h *Handler) classifyError(err error) problem.Details {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "one or more fields are invalid",
			Errors: validationErr.Fields,
		}
	case errors.Is(err, service.ErrNotFound):
		return problem.Details{
			Type:   problem.TypeNotFound,
			Title:  "Resource not found",
			Status: http.StatusNotFound,
			Detail: "visitor entry not found",
		}
	case errors.Is(err, sheetstore.ErrUnavailable):
		return problem.Details{
			Type:   problem.TypeUnavailable,
			Title:  "Store unavailable",
			Status: http.StatusServiceUnavailable,
			Detail: "the backing store is unreachable, retry shortly",
		}
	default:
		return problem.Details{
			Type:   problem.TypeInternal,
			Title:  "Internal server error",
			Status: http.StatusInternalServerError,
			Detail: "an unexpected error occurred",
		}
	}
}
