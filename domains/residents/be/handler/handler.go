package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/domains/residents/be/service"
	visitorsrepo "github.com/gateflow-app/gateflow/domains/visitors/be/repo"
	platformlogging "github.com/gateflow-app/gateflow/platform/go/logging"
	"github.com/gateflow-app/gateflow/platform/go/problem"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

type operation string

const (
	profileOperation   operation = "residentsProfile"
	loginOperation     operation = "residentsLogin"
	approvalsOperation operation = "residentsApprovals"
	historyOperation   operation = "residentsHistory"
	decisionOperation  operation = "residentsDecision"
	fcmTokenOperation  operation = "residentsFCMToken"
)

// Handler exposes the resident-facing endpoints.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("residents service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the resident endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/profile", h.profile)
	r.Post("/login", h.login)
	r.Get("/approvals", h.approvals)
	r.Get("/history", h.history)
	r.Post("/decision", h.decision)
	r.Post("/fcm-token", h.fcmToken)
	return r
}

type loginRequest struct {
	SocietyID string `json:"societyId"`
	Phone     string `json:"phone"`
	PIN       string `json:"pin"`
}

type decisionRequest struct {
	ResidentID string `json:"residentId"`
	VisitorID  string `json:"visitorId"`
	Decision   string `json:"decision"`
	Note       string `json:"note"`
}

type fcmTokenRequest struct {
	SocietyID  string `json:"societyId"`
	FlatNo     string `json:"flatNo"`
	ResidentID string `json:"residentId"`
	FCMToken   string `json:"fcmToken"`
}

type profileResponse struct {
	ResidentID    string `json:"residentId"`
	ResidentName  string `json:"residentName"`
	SocietyID     string `json:"societyId"`
	FlatID        string `json:"flatId,omitempty"`
	FlatNo        string `json:"flatNo"`
	ResidentPhone string `json:"residentPhone,omitempty"`
	Role          string `json:"role"`
	Active        bool   `json:"active"`
}

type decisionResponse struct {
	VisitorID string `json:"visitorId"`
	Status    string `json:"status"`
	Updated   bool   `json:"updated"`
}

type entryResponse struct {
	VisitorID    string  `json:"visitorId"`
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

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	profile, err := h.svc.Profile(r.Context(), query.Get("societyId"), query.Get("flatNo"), query.Get("phone"))
	if err != nil {
		h.writeError(w, r, err, profileOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !h.decode(w, r, &body) {
		return
	}

	profile, err := h.svc.LoginWithPIN(r.Context(), body.SocietyID, body.Phone, body.PIN)
	if err != nil {
		h.writeError(w, r, err, loginOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) approvals(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	entries, err := h.svc.PendingApprovals(r.Context(), query.Get("societyId"), query.Get("flatNo"))
	if err != nil {
		h.writeError(w, r, err, approvalsOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toEntryResponses(entries))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			problem.Write(w, problem.Details{
				Type:   problem.TypeValidation,
				Title:  "Validation failed",
				Status: http.StatusBadRequest,
				Detail: "limit must be an integer",
			})
			return
		}
		limit = parsed
	}

	entries, err := h.svc.History(r.Context(), query.Get("societyId"), query.Get("flatNo"), limit)
	if err != nil {
		h.writeError(w, r, err, historyOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toEntryResponses(entries))
}

func (h *Handler) decision(w http.ResponseWriter, r *http.Request) {
	var body decisionRequest
	if !h.decode(w, r, &body) {
		return
	}

	entry, err := h.svc.Decide(r.Context(), service.DecideInput{
		ResidentID: body.ResidentID,
		VisitorID:  body.VisitorID,
		Decision:   body.Decision,
		Note:       body.Note,
	})
	if err != nil {
		h.writeError(w, r, err, decisionOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, decisionResponse{
		VisitorID: entry.VisitorID,
		Status:    entry.Status,
		Updated:   true,
	})
}

func (h *Handler) fcmToken(w http.ResponseWriter, r *http.Request) {
	var body fcmTokenRequest
	if !h.decode(w, r, &body) {
		return
	}

	err := h.svc.SaveFCMToken(r.Context(), body.SocietyID, body.FlatNo, body.ResidentID, body.FCMToken)
	if err != nil {
		h.writeError(w, r, err, fcmTokenOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func toProfileResponse(profile service.Profile) profileResponse {
	return profileResponse{
		ResidentID:    profile.ResidentID,
		ResidentName:  profile.ResidentName,
		SocietyID:     profile.SocietyID,
		FlatID:        profile.FlatID,
		FlatNo:        profile.FlatNo,
		ResidentPhone: profile.ResidentPhone,
		Role:          profile.Role,
		Active:        profile.Active,
	}
}

func toEntryResponses(entries []visitorsrepo.Entry) []entryResponse {
	responses := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		resp := entryResponse{
			VisitorID:    entry.VisitorID,
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
		responses = append(responses, resp)
	}
	return responses
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
		logger.Error("residents operation failed", append(logFields, zap.Error(err))...)
	case details.Status == http.StatusNotFound:
		logger.Info("resident resource not found", append(logFields, zap.Error(err))...)
	default:
		logger.Warn("residents request rejected", append(logFields, zap.Error(err))...)
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
	case errors.Is(err, service.ErrInvalidCredentials):
		return problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Unauthorized",
			Status: http.StatusUnauthorized,
			Detail: "credentials do not match",
		}
	case errors.Is(err, service.ErrNotFound):
		return problem.Details{
			Type:   problem.TypeNotFound,
			Title:  "Resource not found",
			Status: http.StatusNotFound,
			Detail: "resident or visitor entry not found",
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
