package repo

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	flatsrepo "github.com/gateflow-app/gateflow/domains/flats/be/repo"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

// Entry is the stored view of one visitor row. Entries are append-only:
// creation writes the full row once, and only the status-transition fields
// (status, approved_at, approved_by, note) change afterwards.
type Entry struct {
	VisitorID    string
	SocietyID    string
	FlatID       string
	FlatNo       string
	VisitorType  string
	VisitorPhone string
	Status       string
	CreatedAt    time.Time
	ApprovedAt   *time.Time
	ApprovedBy   string
	GuardID      string
	PhotoRef     string
	Note         string
}

// Repository persists visitor entries in the Visitors table.
type Repository interface {
	// Append writes a new entry in the table's current header order, so
	// column additions or reorders in the sheet never corrupt rows.
	Append(ctx context.Context, entry Entry) error
	// ByID scans for an entry. The bool reports whether it was found.
	ByID(ctx context.Context, visitorID string) (Entry, bool, error)
	// UpdateStatus locates the entry by id and overwrites its transition
	// fields at the row position found during this call. The read and the
	// write are not atomic: a concurrent update to the same row is
	// last-write-wins, by contract with the backing store.
	UpdateStatus(ctx context.Context, visitorID, status string, decidedAt time.Time, actorID, note string) (Entry, bool, error)
	// ListByGuard returns the guard's entries created at or after since,
	// newest first.
	ListByGuard(ctx context.Context, guardID string, since time.Time) ([]Entry, error)
	// ListByFlat returns the unit's entries within the tenant, matched by
	// flat id or tolerant flat number, newest first.
	ListByFlat(ctx context.Context, societyID, flatID, flatNo string) ([]Entry, error)
}

type sheetRepository struct {
	store  sheetstore.Store
	table  string
	logger *zap.Logger
}

// NewSheetRepository constructs a Repository over the Visitors table.
func NewSheetRepository(store sheetstore.Store, table string, logger *zap.Logger) Repository {
	if store == nil {
		panic("visitors store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sheetRepository{store: store, table: table, logger: logger}
}

func (r *sheetRepository) Append(ctx context.Context, entry Entry) error {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return err
	}

	row := table.BuildRow(toValues(entry))
	return r.store.Append(ctx, r.table, [][]string{row})
}

func (r *sheetRepository) ByID(ctx context.Context, visitorID string) (Entry, bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return Entry{}, false, err
	}

	for _, rec := range table.Records() {
		if rec.Get("visitor_id") == visitorID {
			return r.fromRecord(rec), true, nil
		}
	}
	return Entry{}, false, nil
}

func (r *sheetRepository) UpdateStatus(ctx context.Context, visitorID, status string, decidedAt time.Time, actorID, note string) (Entry, bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return Entry{}, false, err
	}

	for _, rec := range table.Records() {
		if rec.Get("visitor_id") != visitorID {
			continue
		}

		// Only the transition cells are touched; every other column keeps
		// its stored value verbatim.
		rec.Set("status", status)
		rec.Set("approved_at", decidedAt.UTC().Format(time.RFC3339))
		rec.Set("approved_by", actorID)
		rec.Set("note", note)

		if err := r.store.Update(ctx, r.table, rec.Pos, rec.Row()); err != nil {
			return Entry{}, false, err
		}
		return r.fromRecord(rec), true, nil
	}
	return Entry{}, false, nil
}

func (r *sheetRepository) ListByGuard(ctx context.Context, guardID string, since time.Time) ([]Entry, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return nil, err
	}

	records := table.Records()
	var entries []Entry
	for _, rec := range records {
		if rec.Get("guard_id") != guardID {
			continue
		}
		entry := r.fromRecord(rec)
		if entry.CreatedAt.Before(since) {
			continue
		}
		entries = append(entries, entry)
	}

	r.logMissing(records)
	sortNewestFirst(entries)
	return entries, nil
}

func (r *sheetRepository) ListByFlat(ctx context.Context, societyID, flatID, flatNo string) ([]Entry, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return nil, err
	}

	target := flatsrepo.NormalizeNo(flatNo)
	records := table.Records()
	var entries []Entry
	for _, rec := range records {
		entry := r.fromRecord(rec)
		if entry.SocietyID != societyID {
			continue
		}
		if flatID != "" && entry.FlatID == flatID {
			entries = append(entries, entry)
			continue
		}
		if target != "" && flatsrepo.NormalizeNo(entry.FlatNo) == target {
			entries = append(entries, entry)
		}
	}

	r.logMissing(records)
	sortNewestFirst(entries)
	return entries, nil
}

// logMissing reports header columns that never matched, after at least one
// record has been mapped (field resolution is lazy and shared per read).
func (r *sheetRepository) logMissing(records []sheetstore.Record) {
	if len(records) == 0 {
		return
	}
	if missing := records[0].Fields().Missing(); len(missing) > 0 {
		r.logger.Debug("visitors table missing columns", zap.Strings("fields", missing))
	}
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

func (r *sheetRepository) fromRecord(rec sheetstore.Record) Entry {
	entry := Entry{
		VisitorID:    rec.Get("visitor_id"),
		SocietyID:    rec.Get("society_id"),
		FlatID:       rec.Get("flat_id"),
		FlatNo:       rec.Get("flat_no"),
		VisitorType:  rec.Get("visitor_type"),
		VisitorPhone: rec.Get("visitor_phone"),
		Status:       rec.Get("status"),
		ApprovedBy:   rec.Get("approved_by"),
		GuardID:      rec.Get("guard_id"),
		PhotoRef:     rec.Get("photo_ref"),
		Note:         rec.Get("note"),
	}

	entry.CreatedAt = r.parseTime(rec, "created_at")
	if decidedAt := r.parseTime(rec, "approved_at"); !decidedAt.IsZero() {
		entry.ApprovedAt = &decidedAt
	}
	return entry
}

// parseTime reads an RFC3339 timestamp cell. Human-edited garbage is logged
// and treated as absent rather than failing the whole read.
func (r *sheetRepository) parseTime(rec sheetstore.Record, field string) time.Time {
	raw := rec.Get(field)
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		r.logger.Warn("unparseable timestamp in visitors table",
			zap.String("field", field),
			zap.String("value", raw),
			zap.Int("row", rec.Pos))
		return time.Time{}
	}
	return parsed.UTC()
}

func toValues(entry Entry) map[string]string {
	values := map[string]string{
		"visitor_id":    entry.VisitorID,
		"society_id":    entry.SocietyID,
		"flat_id":       entry.FlatID,
		"flat_no":       entry.FlatNo,
		"visitor_type":  entry.VisitorType,
		"visitor_phone": entry.VisitorPhone,
		"status":        entry.Status,
		"created_at":    entry.CreatedAt.UTC().Format(time.RFC3339),
		"approved_by":   entry.ApprovedBy,
		"guard_id":      entry.GuardID,
		"photo_ref":     entry.PhotoRef,
		"note":          entry.Note,
	}
	if entry.ApprovedAt != nil {
		values["approved_at"] = entry.ApprovedAt.UTC().Format(time.RFC3339)
	}
	return values
}
