package repo

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	flatsrepo "github.com/gateflow-app/gateflow/domains/flats/be/repo"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

// Complaint is the stored view of one row in the Complaints table. Rows are
// append-only except for the resolution fields (status, resolved_at,
// resolved_by, admin_response).
type Complaint struct {
	ComplaintID   string
	SocietyID     string
	FlatNo        string
	ResidentID    string
	ResidentName  string
	Title         string
	Description   string
	Category      string
	Status        string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	ResolvedBy    string
	AdminResponse string
}

// Resolution carries the fields an admin sets when updating a complaint.
type Resolution struct {
	Status        string
	ResolvedAt    *time.Time
	ResolvedBy    string
	AdminResponse string
}

// Repository persists complaints in the Complaints table.
type Repository interface {
	// Append writes a new complaint in the table's current header order.
	Append(ctx context.Context, complaint Complaint) error
	// ByID scans for a complaint. The bool reports whether it was found.
	ByID(ctx context.Context, complaintID string) (Complaint, bool, error)
	// ListBySociety returns every complaint of the tenant, newest first.
	ListBySociety(ctx context.Context, societyID string) ([]Complaint, error)
	// ListByFlat returns the unit's complaints within the tenant, matched by
	// tolerant flat number, newest first.
	ListByFlat(ctx context.Context, societyID, flatNo string) ([]Complaint, error)
	// Resolve overwrites the resolution cells of the matching row, leaving
	// every other column untouched.
	Resolve(ctx context.Context, complaintID string, resolution Resolution) (Complaint, bool, error)
}

type sheetRepository struct {
	store  sheetstore.Store
	table  string
	logger *zap.Logger
}

// NewSheetRepository constructs a Repository over the Complaints table.
func NewSheetRepository(store sheetstore.Store, table string, logger *zap.Logger) Repository {
	if store == nil {
		panic("complaints store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sheetRepository{store: store, table: table, logger: logger}
}

func (r *sheetRepository) Append(ctx context.Context, complaint Complaint) error {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return err
	}

	values := map[string]string{
		"complaint_id":   complaint.ComplaintID,
		"society_id":     complaint.SocietyID,
		"flat_no":        complaint.FlatNo,
		"resident_id":    complaint.ResidentID,
		"resident_name":  complaint.ResidentName,
		"title":          complaint.Title,
		"description":    complaint.Description,
		"category":       complaint.Category,
		"status":         complaint.Status,
		"created_at":     complaint.CreatedAt.UTC().Format(time.RFC3339),
		"resolved_by":    complaint.ResolvedBy,
		"admin_response": complaint.AdminResponse,
	}
	if complaint.ResolvedAt != nil {
		values["resolved_at"] = complaint.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return r.store.Append(ctx, r.table, [][]string{table.BuildRow(values)})
}

func (r *sheetRepository) ByID(ctx context.Context, complaintID string) (Complaint, bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return Complaint{}, false, err
	}

	for _, rec := range table.Records() {
		if rec.Get("complaint_id") == complaintID {
			return r.fromRecord(rec), true, nil
		}
	}
	return Complaint{}, false, nil
}

func (r *sheetRepository) ListBySociety(ctx context.Context, societyID string) ([]Complaint, error) {
	return r.list(ctx, societyID, "")
}

func (r *sheetRepository) ListByFlat(ctx context.Context, societyID, flatNo string) ([]Complaint, error) {
	return r.list(ctx, societyID, flatsrepo.NormalizeNo(flatNo))
}

func (r *sheetRepository) list(ctx context.Context, societyID, normalizedNo string) ([]Complaint, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return nil, err
	}

	records := table.Records()
	var complaints []Complaint
	for _, rec := range records {
		complaint := r.fromRecord(rec)
		if complaint.SocietyID != societyID {
			continue
		}
		if normalizedNo != "" && flatsrepo.NormalizeNo(complaint.FlatNo) != normalizedNo {
			continue
		}
		complaints = append(complaints, complaint)
	}

	r.logMissing(records)
	sortNewestFirst(complaints)
	return complaints, nil
}

func (r *sheetRepository) Resolve(ctx context.Context, complaintID string, resolution Resolution) (Complaint, bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return Complaint{}, false, err
	}

	for _, rec := range table.Records() {
		if rec.Get("complaint_id") != complaintID {
			continue
		}

		rec.Set("status", resolution.Status)
		if resolution.ResolvedAt != nil {
			rec.Set("resolved_at", resolution.ResolvedAt.UTC().Format(time.RFC3339))
		}
		rec.Set("resolved_by", resolution.ResolvedBy)
		rec.Set("admin_response", resolution.AdminResponse)

		if err := r.store.Update(ctx, r.table, rec.Pos, rec.Row()); err != nil {
			return Complaint{}, false, err
		}
		return r.fromRecord(rec), true, nil
	}
	return Complaint{}, false, nil
}

func sortNewestFirst(complaints []Complaint) {
	sort.SliceStable(complaints, func(i, j int) bool {
		return complaints[i].CreatedAt.After(complaints[j].CreatedAt)
	})
}

// logMissing reports header columns that never matched, after at least one
// record has been mapped (field resolution is lazy and shared per read).
func (r *sheetRepository) logMissing(records []sheetstore.Record) {
	if len(records) == 0 {
		return
	}
	if missing := records[0].Fields().Missing(); len(missing) > 0 {
		r.logger.Debug("complaints table missing columns", zap.Strings("fields", missing))
	}
}

func (r *sheetRepository) fromRecord(rec sheetstore.Record) Complaint {
	complaint := Complaint{
		ComplaintID:   rec.Get("complaint_id"),
		SocietyID:     rec.Get("society_id"),
		FlatNo:        rec.Get("flat_no"),
		ResidentID:    rec.Get("resident_id"),
		ResidentName:  rec.Get("resident_name"),
		Title:         rec.Get("title"),
		Description:   rec.Get("description"),
		Category:      rec.Get("category"),
		Status:        rec.Get("status"),
		ResolvedBy:    rec.Get("resolved_by"),
		AdminResponse: rec.Get("admin_response"),
	}

	complaint.CreatedAt = r.parseTime(rec, "created_at")
	if resolvedAt := r.parseTime(rec, "resolved_at"); !resolvedAt.IsZero() {
		complaint.ResolvedAt = &resolvedAt
	}
	return complaint
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
		r.logger.Warn("unparseable timestamp in complaints table",
			zap.String("field", field),
			zap.String("value", raw),
			zap.Int("row", rec.Pos))
		return time.Time{}
	}
	return parsed.UTC()
}
