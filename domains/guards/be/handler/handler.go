package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/domains/guards/be/service"
	visitorssvc "github.com/gateflow-app/gateflow/domains/visitors/be/service"
	platformlogging "github.com/gateflow-app/gateflow/platform/go/logging"
	"github.com/gateflow-app/gateflow/platform/go/problem"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

type operation string

const (
	loginOperation  operation = "guardsLogin"
	flatsOperation  operation = "guardsFlats"
	recentOperation operation = "guardsRecentVisitors"
)

// Handler exposes the gate-side endpoints.
type Handler struct {
	svc      service.Service
	visitors visitorssvc.Service
	logger   *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, visitors visitorssvc.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("guards service is required")
	}
	if visitors == nil {
		panic("visitors service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, visitors: visitors, logger: logger}
}

// Routes mounts the guard endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.login)
	r.Get("/{guardID}/flats", h.flats)
	r.Get("/{guardID}/visitors/recent", h.recent)
	return r
}

type loginRequest struct {
	SocietyID string `json:"societyId"`
	PIN       string `json:"pin"`
}

type profileResponse struct {
	GuardID   string `json:"guardId"`
	GuardName string `json:"guardName"`
	SocietyID string `json:"societyId"`
}

type flatResponse struct {
	FlatID       string `json:"flatId"`
	FlatNo       string `json:"flatNo"`
	ResidentName string `json:"residentName,omitempty"`
}

type entryResponse struct {
	VisitorID    string `json:"visitorId"`
	FlatNo       string `json:"flatNo"`
	VisitorType  string `json:"visitorType"`
	VisitorPhone string `json:"visitorPhone"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: "request body must be valid JSON",
		})
		return
	}

	profile, err := h.svc.Authenticate(r.Context(), body.SocietyID, body.PIN)
	if err != nil {
		h.writeError(w, r, err, loginOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, profileResponse{
		GuardID:   profile.GuardID,
		GuardName: profile.GuardName,
		SocietyID: profile.SocietyID,
	})
}

func (h *Handler) flats(w http.ResponseWriter, r *http.Request) {
	flats, err := h.svc.Flats(r.Context(), chi.URLParam(r, "guardID"))
	if err != nil {
		h.writeError(w, r, err, flatsOperation)
		return
	}

	responses := make([]flatResponse, 0, len(flats))
	for _, flat := range flats {
		responses = append(responses, flatResponse{
			FlatID:       flat.FlatID,
			FlatNo:       flat.FlatNo,
			ResidentName: flat.ResidentName,
		})
	}
	h.writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.visitors.RecentByGuard(r.Context(), chi.URLParam(r, "guardID"))
	if err != nil {
		h.writeError(w, r, err, recentOperation)
		return
	}

	responses := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, entryResponse{
			VisitorID:    entry.VisitorID,
			FlatNo:       entry.FlatNo,
			VisitorType:  entry.VisitorType,
			VisitorPhone: entry.VisitorPhone,
			Status:       entry.Status,
			CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"visitors": responses,
		"count":    len(responses),
	})
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
		logger.Error("guards operation failed", append(logFields, zap.Error(err))...)
	case details.Status == http.StatusNotFound:
		logger.Info("guard not found", append(logFields, zap.Error(err))...)
	default:
		logger.Warn("guards request rejected", append(logFields, zap.Error(err))...)
	}

	problem.Write(w, details)
}

func (h *Handler) classifyError(err error) problem.Details {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Unauthorized",
			Status: http.StatusUnauthorized,
			Detail: "society code or PIN does not match",
		}
	case errors.Is(err, service.ErrNotFound):
		return problem.Details{
			Type:   problem.TypeNotFound,
			Title:  "Resource not found",
			Status: http.StatusNotFound,
			Detail: "guard not found",
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
