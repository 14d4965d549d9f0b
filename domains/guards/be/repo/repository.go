package repo

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

// Guard is the repository view of one guard row. A guard belongs to exactly
// one society, and that society is authoritative for every entry the guard
// creates.
type Guard struct {
	GuardID   string
	SocietyID string
	GuardName string
	PIN       string
	Active    bool
}

// Repository exposes guard lookups over the Guards table.
type Repository interface {
	// ByID resolves an active guard by id. Inactive guards are absent.
	ByID(ctx context.Context, guardID string) (Guard, bool, error)
	// ByPIN resolves an active guard by society and PIN, for gate login.
	ByPIN(ctx context.Context, societyID, pin string) (Guard, bool, error)
}

type sheetRepository struct {
	store  sheetstore.Store
	table  string
	logger *zap.Logger
}

// NewSheetRepository constructs a Repository over the Guards table.
func NewSheetRepository(store sheetstore.Store, table string, logger *zap.Logger) Repository {
	if store == nil {
		panic("guards store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sheetRepository{store: store, table: table, logger: logger}
}

func (r *sheetRepository) ByID(ctx context.Context, guardID string) (Guard, bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return Guard{}, false, err
	}

	records := table.Records()
	target := strings.TrimSpace(guardID)
	for _, rec := range records {
		guard := fromRecord(rec)
		if strings.TrimSpace(guard.GuardID) != target {
			continue
		}
		if !guard.Active {
			return Guard{}, false, nil
		}
		return guard, true, nil
	}
	r.logMissing(records)
	return Guard{}, false, nil
}

func (r *sheetRepository) ByPIN(ctx context.Context, societyID, pin string) (Guard, bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return Guard{}, false, err
	}

	records := table.Records()
	for _, rec := range records {
		guard := fromRecord(rec)
		if guard.SocietyID != societyID || !guard.Active {
			continue
		}
		if guard.PIN == pin {
			return guard, true, nil
		}
	}
	r.logMissing(records)
	return Guard{}, false, nil
}

// logMissing reports header columns that never matched, after at least one
// record has been mapped (field resolution is lazy and shared per read).
func (r *sheetRepository) logMissing(records []sheetstore.Record) {
	if len(records) == 0 {
		return
	}
	if missing := records[0].Fields().Missing(); len(missing) > 0 {
		r.logger.Debug("guards table missing columns", zap.Strings("fields", missing))
	}
}

func fromRecord(rec sheetstore.Record) Guard {
	return Guard{
		GuardID:   rec.Get("guard_id"),
		SocietyID: rec.Get("society_id"),
		GuardName: rec.Get("guard_name"),
		PIN:       rec.Get("pin"),
		Active:    sheetstore.ParseBool(rec.Get("active")),
	}
}
