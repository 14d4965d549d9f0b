package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	flatsrepo "github.com/gateflow-app/gateflow/domains/flats/be/repo"
	guardsrepo "github.com/gateflow-app/gateflow/domains/guards/be/repo"
	"github.com/gateflow-app/gateflow/domains/visitors/be/repo"
	"github.com/gateflow-app/gateflow/platform/go/notify"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

// Visitor entry statuses. PENDING is the initial state; the other three are
// terminal. Re-deciding a terminal entry overwrites the previous decision;
// the latest write wins.
const (
	StatusPending     = "PENDING"
	StatusApproved    = "APPROVED"
	StatusRejected    = "REJECTED"
	StatusLeaveAtGate = "LEAVE_AT_GATE"
)

var visitorTypes = map[string]struct{}{
	"GUEST":    {},
	"DELIVERY": {},
	"CAB":      {},
}

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// ErrNotFound is returned when no entry matches the given visitor id.
var ErrNotFound = errors.New("visitor entry not found")

// Filter selects which entries ByUnit returns.
type Filter string

const (
	FilterPending    Filter = "PENDING"
	FilterNonPending Filter = "NON_PENDING"
)

// CreateInput is the payload for registering a visitor at the gate.
type CreateInput struct {
	// UnitRef is the target unit, by internal id or display number.
	UnitRef      string
	VisitorType  string
	VisitorPhone string
	GuardID      string
	PhotoRef     string
	Note         string
}

// UnitResolver resolves a unit reference within a tenant. Satisfied by the
// flats cache resolver.
type UnitResolver interface {
	Resolve(ctx context.Context, societyID, ref string) (flatsrepo.Flat, bool, error)
}

// EventSink receives lifecycle events for fan-out. Satisfied by
// notify.Fanout. Delivery results are advisory; the lifecycle never depends
// on them.
type EventSink interface {
	VisitorCreated(ctx context.Context, event notify.VisitorEvent) bool
	VisitorDecided(ctx context.Context, event notify.VisitorEvent) bool
}

// Service is the visitor-entry lifecycle manager.
type Service interface {
	// Create registers a visitor against a unit. The guard's society is the
	// sole source of the entry's tenant; caller-supplied input never decides
	// tenancy. Persistence is at-least-once: a client retry after a timeout
	// can create a duplicate entry, as no idempotency key exists.
	Create(ctx context.Context, input CreateInput) (repo.Entry, error)
	// Decide applies a resident decision (APPROVED or REJECTED).
	Decide(ctx context.Context, visitorID, decision, actorID, note string) (repo.Entry, error)
	// LeaveAtGate marks the entry LEAVE_AT_GATE on behalf of the guard.
	LeaveAtGate(ctx context.Context, visitorID, guardID, note string) (repo.Entry, error)
	// RecentByGuard returns the guard's entries from the rolling 24-hour
	// window ending now, newest first. Degrades to empty when the store is
	// unreachable.
	RecentByGuard(ctx context.Context, guardID string) ([]repo.Entry, error)
	// ByUnit returns the unit's entries filtered by status, newest first,
	// capped at limit.
	ByUnit(ctx context.Context, societyID, unitRef string, filter Filter, limit int) ([]repo.Entry, error)
}

// recentWindow is the rolling lookback for a guard's dashboard. A rolling
// window rather than a calendar day avoids timezone ambiguity at the gate.
const recentWindow = 24 * time.Hour

const defaultListLimit = 50

type service struct {
	entries repo.Repository
	guards  guardsrepo.Repository
	units   UnitResolver
	events  EventSink
	logger  *zap.Logger

	now           func() time.Time
	dispatch      func(func())
	notifyTimeout time.Duration
}

// New constructs the lifecycle manager.
func New(entries repo.Repository, guards guardsrepo.Repository, units UnitResolver, events EventSink, logger *zap.Logger) Service {
	if entries == nil {
		panic("visitors repository is required")
	}
	if guards == nil {
		panic("guards repository is required")
	}
	if units == nil {
		panic("unit resolver is required")
	}
	if events == nil {
		panic("event sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		entries:       entries,
		guards:        guards,
		units:         units,
		events:        events,
		logger:        logger,
		now:           time.Now,
		dispatch:      func(fn func()) { go fn() },
		notifyTimeout: 20 * time.Second,
	}
}

func (s *service) Create(ctx context.Context, input CreateInput) (repo.Entry, error) {
	fieldErrors := FieldErrors{}

	visitorType := strings.ToUpper(strings.TrimSpace(input.VisitorType))
	if visitorType == "" {
		fieldErrors.add("visitorType", "visitorType is required")
	} else if _, ok := visitorTypes[visitorType]; !ok {
		fieldErrors.add("visitorType", "visitorType must be one of GUEST, DELIVERY, CAB")
	}

	phone := strings.TrimSpace(input.VisitorPhone)
	if phone == "" {
		fieldErrors.add("visitorPhone", "visitorPhone is required")
	}

	unitRef := strings.TrimSpace(input.UnitRef)
	if unitRef == "" {
		fieldErrors.add("unitRef", "unitRef is required")
	}

	guardID := strings.TrimSpace(input.GuardID)
	if guardID == "" {
		fieldErrors.add("guardId", "guardId is required")
	}

	if len(fieldErrors) > 0 {
		return repo.Entry{}, &ValidationError{Fields: fieldErrors}
	}

	guard, ok, err := s.guards.ByID(ctx, guardID)
	if err != nil {
		return repo.Entry{}, err
	}
	if !ok {
		return repo.Entry{}, newValidationError("guardId", "guard not found or inactive")
	}

	flat, ok, err := s.units.Resolve(ctx, guard.SocietyID, unitRef)
	if err != nil {
		return repo.Entry{}, err
	}
	if !ok {
		return repo.Entry{}, newValidationError("unitRef", "unit not found in this society")
	}
	if !flat.Active {
		return repo.Entry{}, newValidationError("unitRef", "unit exists but is not active")
	}

	entry := repo.Entry{
		VisitorID:    uuid.NewString(),
		SocietyID:    guard.SocietyID,
		FlatID:       flat.FlatID,
		FlatNo:       flat.FlatNo,
		VisitorType:  visitorType,
		VisitorPhone: phone,
		Status:       StatusPending,
		CreatedAt:    s.now().UTC(),
		GuardID:      guard.GuardID,
		PhotoRef:     strings.TrimSpace(input.PhotoRef),
		Note:         strings.TrimSpace(input.Note),
	}

	if err := s.entries.Append(ctx, entry); err != nil {
		return repo.Entry{}, err
	}

	s.announce(func(ctx context.Context) {
		s.events.VisitorCreated(ctx, toEvent(entry, flat.ResidentName, flat.ResidentPhone))
	})

	return entry, nil
}

func (s *service) Decide(ctx context.Context, visitorID, decision, actorID, note string) (repo.Entry, error) {
	decision = strings.ToUpper(strings.TrimSpace(decision))
	if decision != StatusApproved && decision != StatusRejected {
		return repo.Entry{}, newValidationError("decision", "decision must be APPROVED or REJECTED")
	}
	if strings.TrimSpace(actorID) == "" {
		return repo.Entry{}, newValidationError("actorId", "actorId is required")
	}
	return s.transition(ctx, visitorID, decision, strings.TrimSpace(actorID), note)
}

func (s *service) LeaveAtGate(ctx context.Context, visitorID, guardID, note string) (repo.Entry, error) {
	if strings.TrimSpace(guardID) == "" {
		return repo.Entry{}, newValidationError("guardId", "guardId is required")
	}
	return s.transition(ctx, visitorID, StatusLeaveAtGate, strings.TrimSpace(guardID), note)
}

func (s *service) transition(ctx context.Context, visitorID, status, actorID, note string) (repo.Entry, error) {
	entry, ok, err := s.entries.UpdateStatus(ctx, visitorID, status, s.now().UTC(), actorID, note)
	if err != nil {
		return repo.Entry{}, err
	}
	if !ok {
		return repo.Entry{}, ErrNotFound
	}

	s.announce(func(ctx context.Context) {
		s.events.VisitorDecided(ctx, toEvent(entry, "", ""))
	})

	return entry, nil
}

func (s *service) RecentByGuard(ctx context.Context, guardID string) ([]repo.Entry, error) {
	since := s.now().UTC().Add(-recentWindow)

	entries, err := s.entries.ListByGuard(ctx, guardID, since)
	if err != nil {
		// Dashboard listing tolerates an unreachable store; an empty list is
		// better than a dead gate screen.
		if errors.Is(err, sheetstore.ErrUnavailable) {
			s.logger.Warn("recent visitors degraded to empty",
				zap.String("guard_id", guardID), zap.Error(err))
			return []repo.Entry{}, nil
		}
		return nil, err
	}
	return entries, nil
}

func (s *service) ByUnit(ctx context.Context, societyID, unitRef string, filter Filter, limit int) ([]repo.Entry, error) {
	if filter != FilterPending && filter != FilterNonPending {
		return nil, newValidationError("filter", "filter must be PENDING or NON_PENDING")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	flat, ok, err := s.units.Resolve(ctx, societyID, unitRef)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newValidationError("unitRef", "unit not found in this society")
	}

	entries, err := s.entries.ListByFlat(ctx, societyID, flat.FlatID, flat.FlatNo)
	if err != nil {
		return nil, err
	}

	filtered := make([]repo.Entry, 0, limit)
	for _, entry := range entries {
		pending := entry.Status == StatusPending
		if (filter == FilterPending) != pending {
			continue
		}
		filtered = append(filtered, entry)
		if len(filtered) == limit {
			break
		}
	}
	return filtered, nil
}

// announce runs the fan-out off the request path with its own bounded
// context. The created or updated entry is already durable; nothing that
// happens in here may affect the caller.
func (s *service) announce(fn func(ctx context.Context)) {
	s.dispatch(func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("notification fan-out panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		fn(ctx)
	})
}

func toEvent(entry repo.Entry, residentName, residentPhone string) notify.VisitorEvent {
	return notify.VisitorEvent{
		SocietyID:     entry.SocietyID,
		FlatID:        entry.FlatID,
		FlatNo:        entry.FlatNo,
		VisitorID:     entry.VisitorID,
		VisitorType:   entry.VisitorType,
		VisitorPhone:  entry.VisitorPhone,
		Status:        entry.Status,
		ResidentName:  residentName,
		ResidentPhone: residentPhone,
	}
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
