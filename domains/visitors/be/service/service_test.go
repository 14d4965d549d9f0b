package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gateflow-app/gateflow/domains/flats/be/cache"
	flatsrepo "github.com/gateflow-app/gateflow/domains/flats/be/repo"
	guardsrepo "github.com/gateflow-app/gateflow/domains/guards/be/repo"
	"github.com/gateflow-app/gateflow/domains/visitors/be/repo"
	"github.com/gateflow-app/gateflow/platform/go/notify"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

var visitorHeader = []string{
	"visitor_id", "society_id", "flat_id", "flat_no", "visitor_type",
	"visitor_phone", "status", "created_at", "approved_at", "approved_by",
	"guard_id", "photo_ref", "note",
}

type stubEvents struct {
	mu      sync.Mutex
	created []notify.VisitorEvent
	decided []notify.VisitorEvent
	panics  bool
}

func (s *stubEvents) VisitorCreated(_ context.Context, event notify.VisitorEvent) bool {
	if s.panics {
		panic("channel exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, event)
	return true
}

func (s *stubEvents) VisitorDecided(_ context.Context, event notify.VisitorEvent) bool {
	if s.panics {
		panic("channel exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decided = append(s.decided, event)
	return true
}

type fixture struct {
	store   *sheetstore.Memory
	entries repo.Repository
	events  *stubEvents
	svc     *service
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := sheetstore.NewMemory()
	store.Seed("Flats",
		[]string{"flat_id", "society_id", "flat_no", "resident_name", "resident_phone", "active"},
		[][]string{
			{"f-1", "S1", "A-101", "Asha", "919876543210", "TRUE"},
			{"f-2", "S1", "B-202", "Ravi", "918888888888", "FALSE"},
			{"f-3", "S2", "A-101", "Meena", "917777777777", "TRUE"},
		},
	)
	store.Seed("Guards",
		[]string{"guard_id", "society_id", "guard_name", "pin", "active"},
		[][]string{
			{"G1", "S1", "Shankar", "4321", "TRUE"},
			{"G2", "S1", "Mohan", "1111", "FALSE"},
		},
	)
	store.Seed("Visitors", visitorHeader, nil)

	flats := flatsrepo.NewSheetRepository(store, "Flats", nil)
	guards := guardsrepo.NewSheetRepository(store, "Guards", nil)
	entries := repo.NewSheetRepository(store, "Visitors", nil)
	units := cache.New(flats, cache.DefaultTTL, nil)
	events := &stubEvents{}

	svc := New(entries, guards, units, events, nil).(*service)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	svc.dispatch = func(fn func()) { fn() }

	return &fixture{store: store, entries: entries, events: events, svc: svc, now: now}
}

func validInput() CreateInput {
	return CreateInput{
		UnitRef:      "A-101",
		VisitorType:  "GUEST",
		VisitorPhone: "9999999999",
		GuardID:      "G1",
	}
}

func TestCreateYieldsPendingWithUniqueIDs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	first, err := f.svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	second, err := f.svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	require.Equal(t, StatusPending, first.Status)
	require.NotEmpty(t, first.VisitorID)
	require.NotEqual(t, first.VisitorID, second.VisitorID)
	require.Equal(t, "S1", first.SocietyID)
	require.Equal(t, "A-101", first.FlatNo)
	require.Equal(t, "G1", first.GuardID)
	require.WithinDuration(t, f.now, first.CreatedAt, time.Second)
	require.Equal(t, 2, f.store.RowCount("Visitors"))

	require.Len(t, f.events.created, 2)
	require.Equal(t, "919876543210", f.events.created[0].ResidentPhone)
	require.Equal(t, StatusPending, f.events.created[0].Status)
}

func TestCreateResolvesTolerantUnitRefs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	for _, ref := range []string{"a101", "FLAT A-101", " A 101 ", "f-1"} {
		input := validInput()
		input.UnitRef = ref
		entry, err := f.svc.Create(context.Background(), input)
		require.NoError(t, err, "ref %q", ref)
		require.Equal(t, "f-1", entry.FlatID)
	}
}

func TestCreateTenantComesFromGuard(t *testing.T) {
	t.Parallel()

	// "A-101" exists in both societies; the guard's society must win.
	f := newFixture(t)

	entry, err := f.svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, "S1", entry.SocietyID)
	require.Equal(t, "f-1", entry.FlatID)
}

func TestCreateUnknownUnitAppendsNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	input := validInput()
	input.UnitRef = "Z-999"
	_, err := f.svc.Create(context.Background(), input)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "unitRef")
	require.Zero(t, f.store.RowCount("Visitors"))
}

func TestCreateInactiveUnitRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	input := validInput()
	input.UnitRef = "B-202"
	_, err := f.svc.Create(context.Background(), input)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "unitRef")
}

func TestCreateInactiveGuardRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	input := validInput()
	input.GuardID = "G2"
	_, err := f.svc.Create(context.Background(), input)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "guardId")
}

func TestCreateValidatesInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	input := CreateInput{VisitorType: "DRONE"}
	_, err := f.svc.Create(context.Background(), input)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "visitorType")
	require.Contains(t, validationErr.Fields, "visitorPhone")
	require.Contains(t, validationErr.Fields, "unitRef")
	require.Contains(t, validationErr.Fields, "guardId")
}

func TestCreateSurvivesPanickingFanout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.events.panics = true

	entry, err := f.svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, StatusPending, entry.Status)
	require.Equal(t, 1, f.store.RowCount("Visitors"))
}

func TestDecideApprovesPendingEntry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	created, err := f.svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	decided, err := f.svc.Decide(context.Background(), created.VisitorID, "APPROVED", "R1", "ok")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decided.Status)
	require.Equal(t, "R1", decided.ApprovedBy)
	require.NotNil(t, decided.ApprovedAt)

	stored, ok, err := f.entries.ByID(context.Background(), created.VisitorID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StatusApproved, stored.Status)
	require.Equal(t, "R1", stored.ApprovedBy)
	require.WithinDuration(t, created.CreatedAt, stored.CreatedAt, time.Second)

	require.Len(t, f.events.decided, 1)
	require.Equal(t, StatusApproved, f.events.decided[0].Status)
}

func TestDecideUnknownVisitor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.Decide(context.Background(), "missing", "APPROVED", "R1", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDecideRejectsInvalidDecision(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.Decide(context.Background(), "any", "MAYBE", "R1", "")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "decision")
}

func TestRedecidingTerminalEntryOverwrites(t *testing.T) {
	t.Parallel()

	// The latest decision wins; nothing rejects a second transition.
	f := newFixture(t)

	created, err := f.svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = f.svc.Decide(context.Background(), created.VisitorID, "APPROVED", "R1", "")
	require.NoError(t, err)

	redone, err := f.svc.Decide(context.Background(), created.VisitorID, "REJECTED", "R2", "changed mind")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, redone.Status)
	require.Equal(t, "R2", redone.ApprovedBy)
}

func TestLeaveAtGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	created, err := f.svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	left, err := f.svc.LeaveAtGate(context.Background(), created.VisitorID, "G1", "parcel at desk")
	require.NoError(t, err)
	require.Equal(t, StatusLeaveAtGate, left.Status)
	require.Equal(t, "G1", left.ApprovedBy)
	require.Equal(t, "parcel at desk", left.Note)
}

func TestRecentByGuardRollingWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	stamp := func(d time.Duration) string {
		return f.now.Add(d).Format(time.RFC3339)
	}
	require.NoError(t, f.store.Append(context.Background(), "Visitors", [][]string{
		{"v-old", "S1", "f-1", "A-101", "GUEST", "1", StatusPending, stamp(-25 * time.Hour), "", "", "G1", "", ""},
		{"v-1h", "S1", "f-1", "A-101", "GUEST", "2", StatusPending, stamp(-1 * time.Hour), "", "", "G1", "", ""},
		{"v-2h", "S1", "f-1", "A-101", "CAB", "3", StatusPending, stamp(-2 * time.Hour), "", "", "G1", "", ""},
		{"v-other", "S1", "f-1", "A-101", "GUEST", "4", StatusPending, stamp(-1 * time.Hour), "", "", "G9", "", ""},
	}))

	entries, err := f.svc.RecentByGuard(context.Background(), "G1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "v-1h", entries[0].VisitorID)
	require.Equal(t, "v-2h", entries[1].VisitorID)
}

func TestRecentByGuardDegradesWhenStoreDown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	broken := repo.NewSheetRepository(sheetstore.NewMemory(), "Visitors", nil)
	f.svc.entries = broken

	entries, err := f.svc.RecentByGuard(context.Background(), "G1")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestByUnitFilterAndLimit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	stamp := func(d time.Duration) string {
		return f.now.Add(d).Format(time.RFC3339)
	}
	require.NoError(t, f.store.Append(context.Background(), "Visitors", [][]string{
		{"v-1", "S1", "f-1", "A-101", "GUEST", "1", StatusPending, stamp(-1 * time.Hour), "", "", "G1", "", ""},
		{"v-2", "S1", "f-1", "A-101", "GUEST", "2", StatusApproved, stamp(-2 * time.Hour), "", "R1", "G1", "", ""},
		{"v-3", "S1", "f-1", "A-101", "CAB", "3", StatusPending, stamp(-3 * time.Hour), "", "", "G1", "", ""},
		{"v-4", "S2", "f-3", "A-101", "GUEST", "4", StatusPending, stamp(-1 * time.Hour), "", "", "G9", "", ""},
	}))

	pending, err := f.svc.ByUnit(context.Background(), "S1", "a101", FilterPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "v-1", pending[0].VisitorID)

	history, err := f.svc.ByUnit(context.Background(), "S1", "A-101", FilterNonPending, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "v-2", history[0].VisitorID)

	capped, err := f.svc.ByUnit(context.Background(), "S1", "A-101", FilterPending, 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)

	_, err = f.svc.ByUnit(context.Background(), "S1", "A-101", Filter("ALL"), 10)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}
