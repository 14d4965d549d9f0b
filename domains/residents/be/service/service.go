package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/domains/residents/be/repo"
	visitorsrepo "github.com/gateflow-app/gateflow/domains/visitors/be/repo"
	visitorssvc "github.com/gateflow-app/gateflow/domains/visitors/be/service"
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

var (
	// ErrNotFound is returned when no resident or visitor entry matches.
	ErrNotFound = errors.New("resident not found")
	// ErrInvalidCredentials is returned on a phone or PIN mismatch.
	ErrInvalidCredentials = errors.New("invalid resident credentials")
)

// Profile is a resident's public view, without credentials.
type Profile struct {
	ResidentID    string
	ResidentName  string
	SocietyID     string
	FlatID        string
	FlatNo        string
	ResidentPhone string
	Role          string
	Active        bool
}

// DecideInput is a resident's decision on a pending visitor entry.
type DecideInput struct {
	ResidentID string
	VisitorID  string
	Decision   string
	Note       string
}

// Service exposes the resident-facing operations.
type Service interface {
	// Profile looks up the active resident of the unit. When phone is given
	// it must match the resident's primary or alternate phone.
	Profile(ctx context.Context, societyID, flatNo, phone string) (Profile, error)
	// LoginWithPIN authenticates a resident by society, phone and PIN.
	LoginWithPIN(ctx context.Context, societyID, phone, pin string) (Profile, error)
	// PendingApprovals lists the unit's PENDING visitor entries, newest first.
	PendingApprovals(ctx context.Context, societyID, flatNo string) ([]visitorsrepo.Entry, error)
	// History lists the unit's decided entries, newest first, capped at limit.
	History(ctx context.Context, societyID, flatNo string, limit int) ([]visitorsrepo.Entry, error)
	// Decide applies the resident's decision to a visitor entry.
	Decide(ctx context.Context, input DecideInput) (visitorsrepo.Entry, error)
	// SaveFCMToken stores the resident's device token for push delivery.
	SaveFCMToken(ctx context.Context, societyID, flatNo, residentID, token string) error
}

const approvalsLimit = 50

type service struct {
	residents repo.Repository
	visitors  visitorssvc.Service
	logger    *zap.Logger
}

// New constructs the resident service.
func New(residents repo.Repository, visitors visitorssvc.Service, logger *zap.Logger) Service {
	if residents == nil {
		panic("residents repository is required")
	}
	if visitors == nil {
		panic("visitors service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{residents: residents, visitors: visitors, logger: logger}
}

func (s *service) Profile(ctx context.Context, societyID, flatNo, phone string) (Profile, error) {
	if err := requireUnit(societyID, flatNo); err != nil {
		return Profile{}, err
	}

	resident, ok, err := s.residents.ByFlatNo(ctx, societyID, flatNo)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, ErrNotFound
	}

	if phone = strings.TrimSpace(phone); phone != "" {
		if phone != resident.ResidentPhone && phone != resident.AltPhone {
			return Profile{}, ErrInvalidCredentials
		}
	}

	return toProfile(resident), nil
}

func (s *service) LoginWithPIN(ctx context.Context, societyID, phone, pin string) (Profile, error) {
	fieldErrors := FieldErrors{}
	if strings.TrimSpace(societyID) == "" {
		fieldErrors.add("societyId", "societyId is required")
	}
	if strings.TrimSpace(phone) == "" {
		fieldErrors.add("phone", "phone is required")
	}
	if strings.TrimSpace(pin) == "" {
		fieldErrors.add("pin", "pin is required")
	}
	if len(fieldErrors) > 0 {
		return Profile{}, &ValidationError{Fields: fieldErrors}
	}

	resident, ok, err := s.residents.ByPhoneAndPIN(ctx, strings.TrimSpace(societyID), strings.TrimSpace(phone), strings.TrimSpace(pin))
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, ErrInvalidCredentials
	}

	return toProfile(resident), nil
}

func (s *service) PendingApprovals(ctx context.Context, societyID, flatNo string) ([]visitorsrepo.Entry, error) {
	if err := requireUnit(societyID, flatNo); err != nil {
		return nil, err
	}
	entries, err := s.visitors.ByUnit(ctx, societyID, flatNo, visitorssvc.FilterPending, approvalsLimit)
	return entries, s.translate(err)
}

func (s *service) History(ctx context.Context, societyID, flatNo string, limit int) ([]visitorsrepo.Entry, error) {
	if err := requireUnit(societyID, flatNo); err != nil {
		return nil, err
	}
	entries, err := s.visitors.ByUnit(ctx, societyID, flatNo, visitorssvc.FilterNonPending, limit)
	return entries, s.translate(err)
}

func (s *service) Decide(ctx context.Context, input DecideInput) (visitorsrepo.Entry, error) {
	fieldErrors := FieldErrors{}
	if strings.TrimSpace(input.ResidentID) == "" {
		fieldErrors.add("residentId", "residentId is required")
	}
	if strings.TrimSpace(input.VisitorID) == "" {
		fieldErrors.add("visitorId", "visitorId is required")
	}
	if len(fieldErrors) > 0 {
		return visitorsrepo.Entry{}, &ValidationError{Fields: fieldErrors}
	}

	entry, err := s.visitors.Decide(ctx, strings.TrimSpace(input.VisitorID), input.Decision, strings.TrimSpace(input.ResidentID), input.Note)
	if err != nil {
		return visitorsrepo.Entry{}, s.translate(err)
	}
	return entry, nil
}

func (s *service) SaveFCMToken(ctx context.Context, societyID, flatNo, residentID, token string) error {
	fieldErrors := FieldErrors{}
	if strings.TrimSpace(societyID) == "" {
		fieldErrors.add("societyId", "societyId is required")
	}
	if strings.TrimSpace(flatNo) == "" && strings.TrimSpace(residentID) == "" {
		fieldErrors.add("flatNo", "flatNo or residentId is required")
	}
	if strings.TrimSpace(token) == "" {
		fieldErrors.add("fcmToken", "fcmToken is required")
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}

	return s.residents.UpsertFCMToken(ctx,
		strings.TrimSpace(societyID),
		strings.TrimSpace(flatNo),
		strings.TrimSpace(residentID),
		strings.TrimSpace(token))
}

// translate maps the visitor service's error types onto this service's so a
// single boundary classification covers both.
func (s *service) translate(err error) error {
	if err == nil {
		return nil
	}

	var validationErr *visitorssvc.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return &ValidationError{Fields: FieldErrors(validationErr.Fields)}
	case errors.Is(err, visitorssvc.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}

func requireUnit(societyID, flatNo string) error {
	fieldErrors := FieldErrors{}
	if strings.TrimSpace(societyID) == "" {
		fieldErrors.add("societyId", "societyId is required")
	}
	if strings.TrimSpace(flatNo) == "" {
		fieldErrors.add("flatNo", "flatNo is required")
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}

func toProfile(resident repo.Resident) Profile {
	role := resident.Role
	if role == "" {
		role = "resident"
	}
	return Profile{
		ResidentID:    resident.ResidentID,
		ResidentName:  resident.ResidentName,
		SocietyID:     resident.SocietyID,
		FlatID:        resident.FlatID,
		FlatNo:        resident.FlatNo,
		ResidentPhone: resident.ResidentPhone,
		Role:          role,
		Active:        resident.Active,
	}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
