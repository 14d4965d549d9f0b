package service

import (
	"context"
	"errors"
	"strings"

	flatsrepo "github.com/gateflow-app/gateflow/domains/flats/be/repo"
	"github.com/gateflow-app/gateflow/domains/guards/be/repo"
)

// Domain sentinel errors.
var (
	ErrNotFound           = errors.New("guard not found")
	ErrInvalidCredentials = errors.New("invalid society code or PIN")
)

// Profile is the domain view of a guard exposed to callers. The PIN never
// leaves the repository layer.
type Profile struct {
	GuardID   string
	GuardName string
	SocietyID string
}

// Service defines guard-facing operations.
type Service interface {
	// Authenticate verifies a society code and PIN pair for gate login.
	Authenticate(ctx context.Context, societyID, pin string) (Profile, error)
	// Get returns the profile of an active guard.
	Get(ctx context.Context, guardID string) (Profile, error)
	// Flats lists the active flats of the guard's society, for unit
	// selection at entry time.
	Flats(ctx context.Context, guardID string) ([]flatsrepo.Flat, error)
}

type service struct {
	guards repo.Repository
	flats  flatsrepo.Repository
}

// New constructs a guards Service.
func New(guards repo.Repository, flats flatsrepo.Repository) Service {
	if guards == nil {
		panic("guards repository is required")
	}
	if flats == nil {
		panic("flats repository is required")
	}
	return &service{guards: guards, flats: flats}
}

func (s *service) Authenticate(ctx context.Context, societyID, pin string) (Profile, error) {
	societyID = strings.TrimSpace(societyID)
	pin = strings.TrimSpace(pin)
	if societyID == "" || pin == "" {
		return Profile{}, ErrInvalidCredentials
	}

	guard, ok, err := s.guards.ByPIN(ctx, societyID, pin)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, ErrInvalidCredentials
	}
	return toProfile(guard), nil
}

func (s *service) Get(ctx context.Context, guardID string) (Profile, error) {
	guard, ok, err := s.guards.ByID(ctx, guardID)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, ErrNotFound
	}
	return toProfile(guard), nil
}

func (s *service) Flats(ctx context.Context, guardID string) ([]flatsrepo.Flat, error) {
	guard, ok, err := s.guards.ByID(ctx, guardID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.flats.ListBySociety(ctx, guard.SocietyID)
}

func toProfile(g repo.Guard) Profile {
	return Profile{GuardID: g.GuardID, GuardName: g.GuardName, SocietyID: g.SocietyID}
}
