package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/domains/complaints/be/repo"
	"github.com/gateflow-app/gateflow/domains/complaints/be/service"
	platformlogging "github.com/gateflow-app/gateflow/platform/go/logging"
	"github.com/gateflow-app/gateflow/platform/go/problem"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

type operation string

const (
	createOperation   operation = "complaintsCreate"
	residentOperation operation = "complaintsResident"
	adminOperation    operation = "complaintsAdmin"
	statusOperation   operation = "complaintsStatus"
)

// Handler exposes the complaint-desk endpoints.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("complaints service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the complaint endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/resident", h.resident)
	r.Get("/admin", h.admin)
	r.Put("/{complaintID}/status", h.status)
	return r
}

type createRequest struct {
	SocietyID    string `json:"societyId"`
	FlatNo       string `json:"flatNo"`
	ResidentID   string `json:"residentId"`
	ResidentName string `json:"residentName"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
}

type statusRequest struct {
	Status        string `json:"status"`
	ResolvedBy    string `json:"resolvedBy"`
	AdminResponse string `json:"adminResponse"`
}

type complaintResponse struct {
	ComplaintID   string  `json:"complaintId"`
	SocietyID     string  `json:"societyId"`
	FlatNo        string  `json:"flatNo"`
	ResidentID    string  `json:"residentId"`
	ResidentName  string  `json:"residentName,omitempty"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"createdAt"`
	ResolvedAt    *string `json:"resolvedAt,omitempty"`
	ResolvedBy    string  `json:"resolvedBy,omitempty"`
	AdminResponse string  `json:"adminResponse,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if !h.decode(w, r, &body) {
		return
	}

	complaint, err := h.svc.Create(r.Context(), service.CreateInput{
		SocietyID:    body.SocietyID,
		FlatNo:       body.FlatNo,
		ResidentID:   body.ResidentID,
		ResidentName: body.ResidentName,
		Title:        body.Title,
		Description:  body.Description,
		Category:     body.Category,
	})
	if err != nil {
		h.writeError(w, r, err, createOperation)
		return
	}

	h.writeJSON(w, http.StatusCreated, toComplaintResponse(complaint))
}

func (h *Handler) resident(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	complaints, err := h.svc.ForResident(r.Context(),
		query.Get("societyId"), query.Get("flatNo"), query.Get("residentId"))
	if err != nil {
		h.writeError(w, r, err, residentOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toComplaintResponses(complaints))
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	complaints, err := h.svc.ForSociety(r.Context(), query.Get("societyId"), query.Get("status"))
	if err != nil {
		h.writeError(w, r, err, adminOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toComplaintResponses(complaints))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	if !h.decode(w, r, &body) {
		return
	}

	complaint, err := h.svc.Update(r.Context(), service.UpdateInput{
		ComplaintID:   chi.URLParam(r, "complaintID"),
		Status:        body.Status,
		ResolvedBy:    body.ResolvedBy,
		AdminResponse: body.AdminResponse,
	})
	if err != nil {
		h.writeError(w, r, err, statusOperation)
		return
	}

	h.writeJSON(w, http.StatusOK, toComplaintResponse(complaint))
}

func toComplaintResponse(complaint repo.Complaint) complaintResponse {
	resp := complaintResponse{
		ComplaintID:   complaint.ComplaintID,
		SocietyID:     complaint.SocietyID,
		FlatNo:        complaint.FlatNo,
		ResidentID:    complaint.ResidentID,
		ResidentName:  complaint.ResidentName,
		Title:         complaint.Title,
		Description:   complaint.Description,
		Category:      complaint.Category,
		Status:        complaint.Status,
		CreatedAt:     complaint.CreatedAt.UTC().Format(time.RFC3339),
		ResolvedBy:    complaint.ResolvedBy,
		AdminResponse: complaint.AdminResponse,
	}
	if complaint.ResolvedAt != nil {
		resolvedAt := complaint.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &resolvedAt
	}
	return resp
}

func toComplaintResponses(complaints []repo.Complaint) []complaintResponse {
	responses := make([]complaintResponse, 0, len(complaints))
	for _, complaint := range complaints {
		responses = append(responses, toComplaintResponse(complaint))
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
		logger.Error("complaints operation failed", append(logFields, zap.Error(err))...)
	case details.Status == http.StatusNotFound:
		logger.Info("complaint not found", append(logFields, zap.Error(err))...)
	default:
		logger.Warn("complaints request rejected", append(logFields, zap.Error(err))...)
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
			Detail: "complaint not found",
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
