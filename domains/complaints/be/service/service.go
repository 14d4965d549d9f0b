package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/domains/complaints/be/repo"
)

// Complaint statuses. PENDING is the initial state; RESOLVED stamps
// resolved_at.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusResolved   = "RESOLVED"
	StatusRejected   = "REJECTED"
)

var (
	statuses = map[string]struct{}{
		StatusPending:    {},
		StatusInProgress: {},
		StatusResolved:   {},
		StatusRejected:   {},
	}
	categories = map[string]struct{}{
		"GENERAL":     {},
		"MAINTENANCE": {},
		"SECURITY":    {},
		"CLEANING":    {},
		"OTHER":       {},
	}
)

const (
	defaultCategory = "GENERAL"

	titleMinLen       = 5
	titleMaxLen       = 200
	descriptionMinLen = 10
	descriptionMaxLen = 2000
	responseMaxLen    = 1000
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// ErrNotFound is returned when no complaint matches the given id.
var ErrNotFound = errors.New("complaint not found")

// CreateInput is the payload for filing a complaint.
type CreateInput struct {
	SocietyID    string
	FlatNo       string
	ResidentID   string
	ResidentName string
	Title        string
	Description  string
	Category     string
}

// UpdateInput is the payload for an admin's status update.
type UpdateInput struct {
	ComplaintID   string
	Status        string
	ResolvedBy    string
	AdminResponse string
}

// Service exposes the complaint-desk operations.
type Service interface {
	// Create files a PENDING complaint against the resident's unit.
	Create(ctx context.Context, input CreateInput) (repo.Complaint, error)
	// ForResident lists the unit's complaints, newest first. When residentID
	// is given the list narrows to that resident's own filings.
	ForResident(ctx context.Context, societyID, flatNo, residentID string) ([]repo.Complaint, error)
	// ForSociety lists the tenant's complaints, newest first, optionally
	// narrowed to one status.
	ForSociety(ctx context.Context, societyID, status string) ([]repo.Complaint, error)
	// Update applies an admin's status change. RESOLVED stamps the
	// resolution time.
	Update(ctx context.Context, input UpdateInput) (repo.Complaint, error)
}

type service struct {
	complaints repo.Repository
	logger     *zap.Logger

	now func() time.Time
}

// New constructs the complaint service.
func New(complaints repo.Repository, logger *zap.Logger) Service {
	if complaints == nil {
		panic("complaints repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{complaints: complaints, logger: logger, now: time.Now}
}

func (s *service) Create(ctx context.Context, input CreateInput) (repo.Complaint, error) {
	fieldErrors := FieldErrors{}

	societyID := strings.TrimSpace(input.SocietyID)
	if societyID == "" {
		fieldErrors.add("societyId", "societyId is required")
	}
	flatNo := strings.TrimSpace(input.FlatNo)
	if flatNo == "" {
		fieldErrors.add("flatNo", "flatNo is required")
	}
	residentID := strings.TrimSpace(input.ResidentID)
	if residentID == "" {
		fieldErrors.add("residentId", "residentId is required")
	}

	title := strings.TrimSpace(input.Title)
	if len(title) < titleMinLen || len(title) > titleMaxLen {
		fieldErrors.add("title", "title must be between 5 and 200 characters")
	}
	description := strings.TrimSpace(input.Description)
	if len(description) < descriptionMinLen || len(description) > descriptionMaxLen {
		fieldErrors.add("description", "description must be between 10 and 2000 characters")
	}

	category := strings.ToUpper(strings.TrimSpace(input.Category))
	if category == "" {
		category = defaultCategory
	} else if _, ok := categories[category]; !ok {
		fieldErrors.add("category", "category must be one of GENERAL, MAINTENANCE, SECURITY, CLEANING, OTHER")
	}

	if len(fieldErrors) > 0 {
		return repo.Complaint{}, &ValidationError{Fields: fieldErrors}
	}

	complaint := repo.Complaint{
		ComplaintID:  uuid.NewString(),
		SocietyID:    societyID,
		FlatNo:       flatNo,
		ResidentID:   residentID,
		ResidentName: strings.TrimSpace(input.ResidentName),
		Title:        title,
		Description:  description,
		Category:     category,
		Status:       StatusPending,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.complaints.Append(ctx, complaint); err != nil {
		return repo.Complaint{}, err
	}
	return complaint, nil
}

func (s *service) ForResident(ctx context.Context, societyID, flatNo, residentID string) ([]repo.Complaint, error) {
	fieldErrors := FieldErrors{}
	if strings.TrimSpace(societyID) == "" {
		fieldErrors.add("societyId", "societyId is required")
	}
	if strings.TrimSpace(flatNo) == "" {
		fieldErrors.add("flatNo", "flatNo is required")
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	complaints, err := s.complaints.ListByFlat(ctx, strings.TrimSpace(societyID), flatNo)
	if err != nil {
		return nil, err
	}

	residentID = strings.TrimSpace(residentID)
	if residentID == "" {
		return complaints, nil
	}

	own := make([]repo.Complaint, 0, len(complaints))
	for _, complaint := range complaints {
		if complaint.ResidentID == residentID {
			own = append(own, complaint)
		}
	}
	return own, nil
}

func (s *service) ForSociety(ctx context.Context, societyID, status string) ([]repo.Complaint, error) {
	if strings.TrimSpace(societyID) == "" {
		return nil, newValidationError("societyId", "societyId is required")
	}

	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" {
		if _, ok := statuses[status]; !ok {
			return nil, newValidationError("status", "status must be one of PENDING, IN_PROGRESS, RESOLVED, REJECTED")
		}
	}

	complaints, err := s.complaints.ListBySociety(ctx, strings.TrimSpace(societyID))
	if err != nil {
		return nil, err
	}
	if status == "" {
		return complaints, nil
	}

	matching := make([]repo.Complaint, 0, len(complaints))
	for _, complaint := range complaints {
		if complaint.Status == status {
			matching = append(matching, complaint)
		}
	}
	return matching, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (repo.Complaint, error) {
	fieldErrors := FieldErrors{}

	complaintID := strings.TrimSpace(input.ComplaintID)
	if complaintID == "" {
		fieldErrors.add("complaintId", "complaintId is required")
	}

	status := strings.ToUpper(strings.TrimSpace(input.Status))
	if _, ok := statuses[status]; !ok {
		fieldErrors.add("status", "status must be one of PENDING, IN_PROGRESS, RESOLVED, REJECTED")
	}

	response := strings.TrimSpace(input.AdminResponse)
	if len(response) > responseMaxLen {
		fieldErrors.add("adminResponse", "adminResponse must be at most 1000 characters")
	}

	if len(fieldErrors) > 0 {
		return repo.Complaint{}, &ValidationError{Fields: fieldErrors}
	}

	resolution := repo.Resolution{
		Status:        status,
		ResolvedBy:    strings.TrimSpace(input.ResolvedBy),
		AdminResponse: response,
	}
	if status == StatusResolved {
		resolvedAt := s.now().UTC()
		resolution.ResolvedAt = &resolvedAt
	}

	complaint, ok, err := s.complaints.Resolve(ctx, complaintID, resolution)
	if err != nil {
		return repo.Complaint{}, err
	}
	if !ok {
		return repo.Complaint{}, ErrNotFound
	}
	return complaint, nil
}

func newValidationError(field, message string) error {
	fe := FieldErrors{}
	fe.add(field, message)
	return &ValidationError{Fields: fe}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
