package repo

import (
	"context"
	"strings"

	"go.uber.org/zap"

	flatsrepo "github.com/gateflow-app/gateflow/domains/flats/be/repo"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

// Resident is the stored view of one row in the Residents table.
type Resident struct {
	ResidentID    string
	SocietyID     string
	FlatID        string
	FlatNo        string
	ResidentName  string
	ResidentPhone string
	AltPhone      string
	PIN           string
	Role          string
	FCMToken      string
	Active        bool
}

// Repository persists residents in the Residents table.
type Repository interface {
	// ByFlatNo returns the active resident of the unit, matched by tolerant
	// flat number within the society.
	ByFlatNo(ctx context.Context, societyID, flatNo string) (Resident, bool, error)
	// ByPhoneAndPIN returns the active resident matching the credentials.
	ByPhoneAndPIN(ctx context.Context, societyID, phone, pin string) (Resident, bool, error)
	// UpsertFCMToken overwrites the device token on the resident's row, or
	// appends a minimal row when no resident matches yet.
	UpsertFCMToken(ctx context.Context, societyID, flatNo, residentID, token string) error
}

type sheetRepository struct {
	store  sheetstore.Store
	table  string
	logger *zap.Logger
}

// NewSheetRepository constructs a Repository over the Residents table.
func NewSheetRepository(store sheetstore.Store, table string, logger *zap.Logger) Repository {
	if store == nil {
		panic("residents store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sheetRepository{store: store, table: table, logger: logger}
}

func (r *sheetRepository) ByFlatNo(ctx context.Context, societyID, flatNo string) (Resident, bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return Resident{}, false, err
	}

	target := flatsrepo.NormalizeNo(flatNo)
	if target == "" {
		return Resident{}, false, nil
	}

	records := table.Records()
	for _, rec := range records {
		resident := fromRecord(rec)
		if resident.SocietyID != societyID || !resident.Active {
			continue
		}
		if flatsrepo.NormalizeNo(resident.FlatNo) == target {
			return resident, true, nil
		}
	}
	r.logMissing(records)
	return Resident{}, false, nil
}

func (r *sheetRepository) ByPhoneAndPIN(ctx context.Context, societyID, phone, pin string) (Resident, bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return Resident{}, false, err
	}

	phone = strings.TrimSpace(phone)
	pin = strings.TrimSpace(pin)
	if phone == "" || pin == "" {
		return Resident{}, false, nil
	}

	records := table.Records()
	for _, rec := range records {
		resident := fromRecord(rec)
		if resident.SocietyID != societyID || !resident.Active {
			continue
		}
		if resident.PIN != pin {
			continue
		}
		if resident.ResidentPhone == phone || resident.AltPhone == phone {
			return resident, true, nil
		}
	}
	r.logMissing(records)
	return Resident{}, false, nil
}

// logMissing reports header columns that never matched, after at least one
// record has been mapped (field resolution is lazy and shared per read).
func (r *sheetRepository) logMissing(records []sheetstore.Record) {
	if len(records) == 0 {
		return
	}
	if missing := records[0].Fields().Missing(); len(missing) > 0 {
		r.logger.Debug("residents table missing columns", zap.Strings("fields", missing))
	}
}

func (r *sheetRepository) UpsertFCMToken(ctx context.Context, societyID, flatNo, residentID, token string) error {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return err
	}

	target := flatsrepo.NormalizeNo(flatNo)
	for _, rec := range table.Records() {
		if rec.Get("society_id") != societyID {
			continue
		}
		matched := residentID != "" && rec.Get("resident_id") == residentID
		if !matched && target != "" {
			matched = flatsrepo.NormalizeNo(rec.Get("flat_no")) == target
		}
		if !matched {
			continue
		}

		rec.Set("fcm_token", token)
		return r.store.Update(ctx, r.table, rec.Pos, rec.Row())
	}

	// No matching row: register the device against a minimal resident row so
	// pushes reach it before the full record is filled in.
	row := table.BuildRow(map[string]string{
		"resident_id": residentID,
		"society_id":  societyID,
		"flat_no":     strings.TrimSpace(flatNo),
		"fcm_token":   token,
		"active":      sheetstore.FormatBool(true),
	})
	return r.store.Append(ctx, r.table, [][]string{row})
}

func fromRecord(rec sheetstore.Record) Resident {
	return Resident{
		ResidentID:    strings.TrimSpace(rec.Get("resident_id")),
		SocietyID:     strings.TrimSpace(rec.Get("society_id")),
		FlatID:        strings.TrimSpace(rec.Get("flat_id")),
		FlatNo:        strings.TrimSpace(rec.Get("flat_no")),
		ResidentName:  strings.TrimSpace(rec.Get("resident_name")),
		ResidentPhone: strings.TrimSpace(rec.Get("resident_phone")),
		AltPhone:      strings.TrimSpace(rec.Get("resident_alt_phone")),
		PIN:           strings.TrimSpace(rec.Get("resident_pin")),
		Role:          strings.TrimSpace(rec.Get("role")),
		FCMToken:      strings.TrimSpace(rec.Get("fcm_token")),
		Active:        sheetstore.ParseBool(rec.Get("active")),
	}
}
