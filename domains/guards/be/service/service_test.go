package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	flatsrepo "github.com/gateflow-app/gateflow/domains/flats/be/repo"
	"github.com/gateflow-app/gateflow/domains/guards/be/repo"
)

type mockGuards struct {
	byIDFn  func(ctx context.Context, guardID string) (repo.Guard, bool, error)
	byPINFn func(ctx context.Context, societyID, pin string) (repo.Guard, bool, error)
}

func (m *mockGuards) ByID(ctx context.Context, guardID string) (repo.Guard, bool, error) {
	if m.byIDFn == nil {
		panic("byIDFn not configured")
	}
	return m.byIDFn(ctx, guardID)
}

func (m *mockGuards) ByPIN(ctx context.Context, societyID, pin string) (repo.Guard, bool, error) {
	if m.byPINFn == nil {
		panic("byPINFn not configured")
	}
	return m.byPINFn(ctx, societyID, pin)
}

type mockFlats struct {
	listFn func(ctx context.Context, societyID string) ([]flatsrepo.Flat, error)
}

func (m *mockFlats) ListBySociety(ctx context.Context, societyID string) ([]flatsrepo.Flat, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, societyID)
}

func (m *mockFlats) ByID(context.Context, string, string) (flatsrepo.Flat, bool, error) {
	panic("not used")
}

func (m *mockFlats) ByNo(context.Context, string, string) (flatsrepo.Flat, bool, error) {
	panic("not used")
}

func TestAuthenticateSuccess(t *testing.T) {
	t.Parallel()

	guards := &mockGuards{
		byPINFn: func(_ context.Context, societyID, pin string) (repo.Guard, bool, error) {
			require.Equal(t, "S1", societyID)
			require.Equal(t, "4321", pin)
			return repo.Guard{GuardID: "G1", GuardName: "Shankar", SocietyID: "S1", Active: true}, true, nil
		},
	}

	svc := New(guards, &mockFlats{})
	profile, err := svc.Authenticate(context.Background(), " S1 ", " 4321 ")
	require.NoError(t, err)
	require.Equal(t, "G1", profile.GuardID)
	require.Equal(t, "S1", profile.SocietyID)
}

func TestAuthenticateRejectsUnknownPIN(t *testing.T) {
	t.Parallel()

	guards := &mockGuards{
		byPINFn: func(context.Context, string, string) (repo.Guard, bool, error) {
			return repo.Guard{}, false, nil
		},
	}

	svc := New(guards, &mockFlats{})
	_, err := svc.Authenticate(context.Background(), "S1", "0000")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestFlatsUsesGuardSociety(t *testing.T) {
	t.Parallel()

	guards := &mockGuards{
		byIDFn: func(_ context.Context, guardID string) (repo.Guard, bool, error) {
			require.Equal(t, "G1", guardID)
			return repo.Guard{GuardID: "G1", SocietyID: "S1", Active: true}, true, nil
		},
	}
	flats := &mockFlats{
		listFn: func(_ context.Context, societyID string) ([]flatsrepo.Flat, error) {
			require.Equal(t, "S1", societyID)
			return []flatsrepo.Flat{{FlatID: "f-1", FlatNo: "A-101"}}, nil
		},
	}

	svc := New(guards, flats)
	result, err := svc.Flats(context.Background(), "G1")
	require.NoError(t, err)
	require.Len(t, result, 1)
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	guards := &mockGuards{
		byIDFn: func(context.Context, string) (repo.Guard, bool, error) {
			return repo.Guard{}, false, nil
		},
	}

	svc := New(guards, &mockFlats{})
	_, err := svc.Get(context.Background(), "G9")
	require.ErrorIs(t, err, ErrNotFound)
}
