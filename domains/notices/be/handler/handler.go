package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/domains/notices/be/repo"
	"github.com/gateflow-app/gateflow/domains/notices/be/service"
	platformlogging "github.com/gateflow-app/gateflow/platform/go/logging"
	"github.com/gateflow-app/gateflow/platform/go/problem"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

type operation string

const (
	createOperation operation = "noticesCreate"
	listOperation   operation = "noticesList"
	statusOperation operation = "noticesStatus"
	deleteOperation operation = "noticesDelete"
)

// Handler exposes the notice-board endpoints.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("notices service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the notice endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Put("/{noticeID}/status", h.status)
	r.Delete("/{noticeID}", h.delete)
	return r
}

type createRequest struct {
	SocietyID  string `json:"societyId"`
	AdminID    string `json:"adminId"`
	AdminName  string `json:"adminName"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	NoticeType string `json:"noticeType"`
	Priority   string `json:"priority"`
	ExpiryDate string `json:"expiryDate"`
}

type statusRequest struct {
	Active bool `json:"active"`
}

type noticeResponse struct {
	NoticeID   string `json:"noticeId"`
	SocietyID  string `json:"societyId"`
	AdminID    string `json:"adminId"`
	AdminName  string `json:"adminName,omitempty"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	NoticeType string `json:"noticeType"`
	Priority   string `json:"priority"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"createdAt"`
	ExpiryDate string `json:"expiryDate,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if !h.decode(w, r, &body) {
		return
	}

	notice, err := h.svc.Create(r.Context(), service.CreateInput{
		SocietyID:  body.SocietyID,
		AdminID:    body.AdminID,
		AdminName:  body.AdminName,
		Title:      body.Title,
		Content:    body.Content,
		NoticeType: body.NoticeType,
		Priority:   body.Priority,
		ExpiryDate: body.ExpiryDate,
	})
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	h.writeJSON(w, http.StatusCreated, toNoticeResponse(notice))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	activeOnly := true
	if raw := query.Get("activeOnly"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			problem.Write(w, problem.Details{
				Type:   problem.TypeValidation,
				Title:  "Validation failed",
				Status: http.StatusBadRequest,
				Detail: "activeOnly must be a boolean",
			})
			return
		}
		activeOnly = parsed
	}

	notices, err := h.svc.List(r.Context(), query.Get("societyId"), activeOnly)
	if err != nil {
		h.writeError(w, r, err, listOperation)
		return
	}

	responses := make([]noticeResponse, 0, len(notices))
	for _, notice := range notices {
		responses = append(responses, toNoticeResponse(notice))
	}
	h.writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	if !h.decode(w, r, &body) {
		return
	}

	notice, err := h.svc.SetActive(r.Context(), chi.URLParam(r, "noticeID"), body.Active)
	if err != nil {
		h.writeError(w, r, err, statusOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toNoticeResponse(notice))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "noticeID")); err != nil {
		h.writeError(w, r, err, deleteOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func toNoticeResponse(notice repo.Notice) noticeResponse {
	return noticeResponse{
		NoticeID:   notice.NoticeID,
		SocietyID:  notice.SocietyID,
		AdminID:    notice.AdminID,
		AdminName:  notice.AdminName,
		Title:      notice.Title,
		Content:    notice.Content,
		NoticeType: notice.NoticeType,
		Priority:   notice.Priority,
		Active:     notice.Active,
		CreatedAt:  notice.CreatedAt.UTC().Format(time.RFC3339),
		ExpiryDate: notice.ExpiryDate,
	}
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
		logger.Error("notices operation failed", append(logFields, zap.Error(err))...)
	case details.Status == http.StatusNotFound:
		logger.Info("notice not found", append(logFields, zap.Error(err))...)
	default:
		logger.Warn("notices request rejected", append(logFields, zap.Error(err))...)
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
			Detail: "notice not found",
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
