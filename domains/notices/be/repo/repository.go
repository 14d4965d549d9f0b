package repo

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

// Notice is the stored view of one row in the Notices table. ExpiryDate
// keeps the raw cell value; parsing is the service's concern so that a
// human-edited date never fails a read.
type Notice struct {
	NoticeID   string
	SocietyID  string
	AdminID    string
	AdminName  string
	Title      string
	Content    string
	NoticeType string
	Priority   string
	Active     bool
	CreatedAt  time.Time
	ExpiryDate string
}

// Repository persists notices in the Notices table.
type Repository interface {
	// Append writes a new notice in the table's current header order.
	Append(ctx context.Context, notice Notice) error
	// ByID scans for a notice. The bool reports whether it was found.
	ByID(ctx context.Context, noticeID string) (Notice, bool, error)
	// ListBySociety returns every notice of the tenant, active or not.
	ListBySociety(ctx context.Context, societyID string) ([]Notice, error)
	// SetActive toggles the is_active cell of the matching row, leaving every
	// other column untouched.
	SetActive(ctx context.Context, noticeID string, active bool) (Notice, bool, error)
	// Delete removes the matching row entirely. Rows below it shift up, so
	// any position read earlier is stale after this call.
	Delete(ctx context.Context, noticeID string) (bool, error)
}

type sheetRepository struct {
	store  sheetstore.Store
	table  string
	logger *zap.Logger
}

// NewSheetRepository constructs a Repository over the Notices table.
func NewSheetRepository(store sheetstore.Store, table string, logger *zap.Logger) Repository {
	if store == nil {
		panic("notices store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sheetRepository{store: store, table: table, logger: logger}
}

func (r *sheetRepository) Append(ctx context.Context, notice Notice) error {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return err
	}

	row := table.BuildRow(map[string]string{
		"notice_id":   notice.NoticeID,
		"society_id":  notice.SocietyID,
		"admin_id":    notice.AdminID,
		"admin_name":  notice.AdminName,
		"title":       notice.Title,
		"content":     notice.Content,
		"notice_type": notice.NoticeType,
		"priority":    notice.Priority,
		"is_active":   sheetstore.FormatBool(notice.Active),
		"created_at":  notice.CreatedAt.UTC().Format(time.RFC3339),
		"expiry_date": notice.ExpiryDate,
	})
	return r.store.Append(ctx, r.table, [][]string{row})
}

func (r *sheetRepository) ByID(ctx context.Context, noticeID string) (Notice, bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return Notice{}, false, err
	}

	for _, rec := range table.Records() {
		if rec.Get("notice_id") == noticeID {
			return r.fromRecord(rec), true, nil
		}
	}
	return Notice{}, false, nil
}

func (r *sheetRepository) ListBySociety(ctx context.Context, societyID string) ([]Notice, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return nil, err
	}

	records := table.Records()
	var notices []Notice
	for _, rec := range records {
		notice := r.fromRecord(rec)
		if notice.SocietyID != societyID {
			continue
		}
		notices = append(notices, notice)
	}

	r.logMissing(records)
	return notices, nil
}

func (r *sheetRepository) SetActive(ctx context.Context, noticeID string, active bool) (Notice, bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return Notice{}, false, err
	}

	for _, rec := range table.Records() {
		if rec.Get("notice_id") != noticeID {
			continue
		}

		rec.Set("is_active", sheetstore.FormatBool(active))
		if err := r.store.Update(ctx, r.table, rec.Pos, rec.Row()); err != nil {
			return Notice{}, false, err
		}
		return r.fromRecord(rec), true, nil
	}
	return Notice{}, false, nil
}

func (r *sheetRepository) Delete(ctx context.Context, noticeID string) (bool, error) {
	table, err := r.store.ReadAll(ctx, r.table)
	if err != nil {
		return false, err
	}

	for _, rec := range table.Records() {
		if rec.Get("notice_id") != noticeID {
			continue
		}
		if err := r.store.Delete(ctx, r.table, rec.Pos); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// logMissing reports header columns that never matched, after at least one
// record has been mapped (field resolution is lazy and shared per read).
func (r *sheetRepository) logMissing(records []sheetstore.Record) {
	if len(records) == 0 {
		return
	}
	if missing := records[0].Fields().Missing(); len(missing) > 0 {
		r.logger.Debug("notices table missing columns", zap.Strings("fields", missing))
	}
}

func (r *sheetRepository) fromRecord(rec sheetstore.Record) Notice {
	notice := Notice{
		NoticeID:   rec.Get("notice_id"),
		SocietyID:  rec.Get("society_id"),
		AdminID:    rec.Get("admin_id"),
		AdminName:  rec.Get("admin_name"),
		Title:      rec.Get("title"),
		Content:    rec.Get("content"),
		NoticeType: rec.Get("notice_type"),
		Priority:   rec.Get("priority"),
		Active:     parseActive(rec.Get("is_active")),
		ExpiryDate: rec.Get("expiry_date"),
	}

	if raw := rec.Get("created_at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			r.logger.Warn("unparseable timestamp in notices table",
				zap.String("value", raw), zap.Int("row", rec.Pos))
		} else {
			notice.CreatedAt = parsed.UTC()
		}
	}
	return notice
}

// parseActive accepts the legacy ACTIVE marker alongside TRUE.
func parseActive(raw string) bool {
	return sheetstore.ParseBool(raw) || strings.EqualFold(strings.TrimSpace(raw), "ACTIVE")
}
