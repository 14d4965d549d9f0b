package repo

import (
	"context"

	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

// Flat is the repository view of one unit row.
type Flat struct {
	FlatID        string
	SocietyID     string
	FlatNo        string
	ResidentName  string
	ResidentPhone string
	Active        bool
}

// Repository exposes tenant-filtered unit lookups. Every lookup is a linear
// scan over the full table; at the target scale (hundreds of units per
// society) this is the documented O(n) bound, and no index exists to do
// better against the backing store.
type Repository interface {
	// ListBySociety returns every active flat of the tenant.
	ListBySociety(ctx context.Context, societyID string) ([]Flat, error)
	// ByID resolves a flat by its internal id. The flat must belong to the
	// given tenant; a matching id in another society is treated as absent.
	ByID(ctx context.Context, societyID, flatID string) (Flat, bool, error)
	// ByNo resolves a flat by its display number, tolerant of separators,
	// case, and the "FLAT" prefix.
	ByNo(ctx context.Context, societyID, flatNo string) (Flat, bool, error)
}

type sheetRepository struct {
	store  sheetstore.Store
	table  string
	logger *zap.Logger
}

// NewSheetRepository constructs a Repository over the Flats table.
func NewSheetRepository(store sheetstore.Store, table string, logger *zap.Logger) Repository {
	if store == nil {
		panic("flats store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sheetRepository{store: store, table: table, logger: logger}
}

func (r *sheetRepository) ListBySociety(ctx context.Context, societyID string) ([]Flat, error) {
	records, err := r.records(ctx)
	if err != nil {
		return nil, err
	}

	var flats []Flat
	for _, rec := range records {
		flat := fromRecord(rec)
		if flat.SocietyID != societyID || !flat.Active {
			continue
		}
		flats = append(flats, flat)
	}
	r.logMissing(records)
	return flats, nil
}

func (r *sheetRepository) ByID(ctx context.Context, societyID, flatID string) (Flat, bool, error) {
	records, err := r.records(ctx)
	if err != nil {
		return Flat{}, false, err
	}

	for _, rec := range records {
		flat := fromRecord(rec)
		if flat.FlatID != flatID {
			continue
		}
		if flat.SocietyID != societyID {
			// An id hit outside the tenant is reported as absent, never
			// leaked across the boundary.
			r.logger.Warn("flat id resolved outside tenant",
				zap.String("flat_id", flatID),
				zap.String("tenant", societyID))
			return Flat{}, false, nil
		}
		return flat, true, nil
	}
	return Flat{}, false, nil
}

func (r *sheetRepository) ByNo(ctx context.Context, societyID, flatNo string) (Flat, bool, error) {
	records, err := r.records(ctx)
	if err != nil {
		return Flat{}, false, err
	}

	target := NormalizeNo(flatNo)
	for _, rec := range records {
		flat := fromRecord(rec)
		if flat.SocietyID != societyID {
			continue
		}
		if NormalizeNo(flat.FlatNo) == target {
			return flat, true, nil
		}
	}
	return Flat{}, false, nil
}

func (r *sheetRepository) records(ctx context.Context) ([]sheetstore.Record, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return nil, err
	}
	return table.Records(), nil
}

// logMissing reports header columns that never matched, after at least one
// record has been mapped (field resolution is lazy and shared per read).
func (r *sheetRepository) logMissing(records []sheetstore.Record) {
	if len(records) == 0 {
		return
	}
	if missing := records[0].Fields().Missing(); len(missing) > 0 {
		r.logger.Debug("flats table missing columns", zap.Strings("fields", missing))
	}
}

func fromRecord(rec sheetstore.Record) Flat {
	return Flat{
		FlatID:        rec.Get("flat_id"),
		SocietyID:     rec.Get("society_id"),
		FlatNo:        rec.Get("flat_no"),
		ResidentName:  rec.Get("resident_name"),
		ResidentPhone: rec.Get("resident_phone"),
		Active:        sheetstore.ParseBool(rec.Get("active")),
	}
}
