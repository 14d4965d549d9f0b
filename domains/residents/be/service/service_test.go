package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gateflow-app/gateflow/domains/residents/be/repo"
	visitorsrepo "github.com/gateflow-app/gateflow/domains/visitors/be/repo"
	visitorssvc "github.com/gateflow-app/gateflow/domains/visitors/be/service"
)

type mockResidents struct {
	byFlatNoFn      func(ctx context.Context, societyID, flatNo string) (repo.Resident, bool, error)
	byPhoneAndPINFn func(ctx context.Context, societyID, phone, pin string) (repo.Resident, bool, error)
	upsertFn        func(ctx context.Context, societyID, flatNo, residentID, token string) error
}

func (m *mockResidents) ByFlatNo(ctx context.Context, societyID, flatNo string) (repo.Resident, bool, error) {
	if m.byFlatNoFn == nil {
		panic("byFlatNoFn not configured")
	}
	return m.byFlatNoFn(ctx, societyID, flatNo)
}

func (m *mockResidents) ByPhoneAndPIN(ctx context.Context, societyID, phone, pin string) (repo.Resident, bool, error) {
	if m.byPhoneAndPINFn == nil {
		panic("byPhoneAndPINFn not configured")
	}
	return m.byPhoneAndPINFn(ctx, societyID, phone, pin)
}

func (m *mockResidents) UpsertFCMToken(ctx context.Context, societyID, flatNo, residentID, token string) error {
	if m.upsertFn == nil {
		panic("upsertFn not configured")
	}
	return m.upsertFn(ctx, societyID, flatNo, residentID, token)
}

type mockVisitors struct {
	decideFn func(ctx context.Context, visitorID, decision, actorID, note string) (visitorsrepo.Entry, error)
	byUnitFn func(ctx context.Context, societyID, unitRef string, filter visitorssvc.Filter, limit int) ([]visitorsrepo.Entry, error)
}

func (m *mockVisitors) Create(context.Context, visitorssvc.CreateInput) (visitorsrepo.Entry, error) {
	panic("not used")
}

func (m *mockVisitors) Decide(ctx context.Context, visitorID, decision, actorID, note string) (visitorsrepo.Entry, error) {
	if m.decideFn == nil {
		panic("decideFn not configured")
	}
	return m.decideFn(ctx, visitorID, decision, actorID, note)
}

func (m *mockVisitors) LeaveAtGate(context.Context, string, string, string) (visitorsrepo.Entry, error) {
	panic("not used")
}

func (m *mockVisitors) RecentByGuard(context.Context, string) ([]visitorsrepo.Entry, error) {
	panic("not used")
}

func (m *mockVisitors) ByUnit(ctx context.Context, societyID, unitRef string, filter visitorssvc.Filter, limit int) ([]visitorsrepo.Entry, error) {
	if m.byUnitFn == nil {
		panic("byUnitFn not configured")
	}
	return m.byUnitFn(ctx, societyID, unitRef, filter, limit)
}

func resident() repo.Resident {
	return repo.Resident{
		ResidentID:    "R1",
		SocietyID:     "S1",
		FlatID:        "f-1",
		FlatNo:        "A-101",
		ResidentName:  "Asha",
		ResidentPhone: "919876543210",
		AltPhone:      "918000000000",
		Active:        true,
	}
}

func TestProfileSuccess(t *testing.T) {
	t.Parallel()

	residents := &mockResidents{}
	residents.byFlatNoFn = func(_ context.Context, societyID, flatNo string) (repo.Resident, bool, error) {
		require.Equal(t, "S1", societyID)
		require.Equal(t, "A-101", flatNo)
		return resident(), true, nil
	}

	svc := New(residents, &mockVisitors{}, nil)

	profile, err := svc.Profile(context.Background(), "S1", "A-101", "")
	require.NoError(t, err)
	require.Equal(t, "R1", profile.ResidentID)
	require.Equal(t, "resident", profile.Role)
}

func TestProfilePhoneCheck(t *testing.T) {
	t.Parallel()

	residents := &mockResidents{}
	residents.byFlatNoFn = func(context.Context, string, string) (repo.Resident, bool, error) {
		return resident(), true, nil
	}

	svc := New(residents, &mockVisitors{}, nil)

	_, err := svc.Profile(context.Background(), "S1", "A-101", "919876543210")
	require.NoError(t, err)

	// Alternate phone passes too.
	_, err = svc.Profile(context.Background(), "S1", "A-101", "918000000000")
	require.NoError(t, err)

	_, err = svc.Profile(context.Background(), "S1", "A-101", "910000000000")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestProfileNotFound(t *testing.T) {
	t.Parallel()

	residents := &mockResidents{}
	residents.byFlatNoFn = func(context.Context, string, string) (repo.Resident, bool, error) {
		return repo.Resident{}, false, nil
	}

	svc := New(residents, &mockVisitors{}, nil)

	_, err := svc.Profile(context.Background(), "S1", "Z-999", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoginWithPIN(t *testing.T) {
	t.Parallel()

	residents := &mockResidents{}
	residents.byPhoneAndPINFn = func(_ context.Context, societyID, phone, pin string) (repo.Resident, bool, error) {
		if phone == "919876543210" && pin == "1234" {
			return resident(), true, nil
		}
		return repo.Resident{}, false, nil
	}

	svc := New(residents, &mockVisitors{}, nil)

	profile, err := svc.LoginWithPIN(context.Background(), "S1", " 919876543210 ", "1234")
	require.NoError(t, err)
	require.Equal(t, "R1", profile.ResidentID)

	_, err = svc.LoginWithPIN(context.Background(), "S1", "919876543210", "0000")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.LoginWithPIN(context.Background(), "S1", "", "")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "phone")
	require.Contains(t, validationErr.Fields, "pin")
}

func TestPendingApprovalsAndHistoryDelegate(t *testing.T) {
	t.Parallel()

	visitors := &mockVisitors{}
	visitors.byUnitFn = func(_ context.Context, societyID, unitRef string, filter visitorssvc.Filter, limit int) ([]visitorsrepo.Entry, error) {
		require.Equal(t, "S1", societyID)
		require.Equal(t, "A-101", unitRef)
		switch filter {
		case visitorssvc.FilterPending:
			require.Equal(t, 50, limit)
		case visitorssvc.FilterNonPending:
			require.Equal(t, 10, limit)
		}
		return []visitorsrepo.Entry{{VisitorID: "v-1"}}, nil
	}

	svc := New(&mockResidents{}, visitors, nil)

	pending, err := svc.PendingApprovals(context.Background(), "S1", "A-101")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	history, err := svc.History(context.Background(), "S1", "A-101", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestDecideDelegatesAndTranslatesErrors(t *testing.T) {
	t.Parallel()

	visitors := &mockVisitors{}
	visitors.decideFn = func(_ context.Context, visitorID, decision, actorID, note string) (visitorsrepo.Entry, error) {
		require.Equal(t, "v-1", visitorID)
		require.Equal(t, "APPROVED", decision)
		require.Equal(t, "R1", actorID)

		approvedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		return visitorsrepo.Entry{
			VisitorID:  visitorID,
			Status:     visitorssvc.StatusApproved,
			ApprovedBy: actorID,
			ApprovedAt: &approvedAt,
		}, nil
	}

	svc := New(&mockResidents{}, visitors, nil)

	entry, err := svc.Decide(context.Background(), DecideInput{
		ResidentID: "R1",
		VisitorID:  "v-1",
		Decision:   "APPROVED",
	})
	require.NoError(t, err)
	require.Equal(t, visitorssvc.StatusApproved, entry.Status)

	visitors.decideFn = func(context.Context, string, string, string, string) (visitorsrepo.Entry, error) {
		return visitorsrepo.Entry{}, visitorssvc.ErrNotFound
	}
	_, err = svc.Decide(context.Background(), DecideInput{ResidentID: "R1", VisitorID: "gone", Decision: "APPROVED"})
	require.ErrorIs(t, err, ErrNotFound)

	visitors.decideFn = func(context.Context, string, string, string, string) (visitorsrepo.Entry, error) {
		return visitorsrepo.Entry{}, &visitorssvc.ValidationError{
			Fields: visitorssvc.FieldErrors{"decision": {"decision must be APPROVED or REJECTED"}},
		}
	}
	_, err = svc.Decide(context.Background(), DecideInput{ResidentID: "R1", VisitorID: "v-1", Decision: "MAYBE"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "decision")
}

func TestSaveFCMToken(t *testing.T) {
	t.Parallel()

	residents := &mockResidents{}
	var saved []string
	residents.upsertFn = func(_ context.Context, societyID, flatNo, residentID, token string) error {
		saved = []string{societyID, flatNo, residentID, token}
		return nil
	}

	svc := New(residents, &mockVisitors{}, nil)

	require.NoError(t, svc.SaveFCMToken(context.Background(), "S1", "A-101", "R1", "tok"))
	require.Equal(t, []string{"S1", "A-101", "R1", "tok"}, saved)

	err := svc.SaveFCMToken(context.Background(), "S1", "A-101", "R1", "")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "fcmToken")
}
