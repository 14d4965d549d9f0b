package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gateflow-app/gateflow/domains/notices/be/repo"
)

// Notice types and priorities accepted on creation. Both default when
// omitted.
var (
	noticeTypes = map[string]struct{}{
		"GENERAL":     {},
		"SCHEDULE":    {},
		"POLICY":      {},
		"EMERGENCY":   {},
		"MAINTENANCE": {},
	}
	priorities = map[string]struct{}{
		"LOW":    {},
		"NORMAL": {},
		"HIGH":   {},
		"URGENT": {},
	}
)

const (
	defaultNoticeType = "GENERAL"
	defaultPriority   = "NORMAL"

	titleMinLen   = 5
	titleMaxLen   = 200
	contentMinLen = 10
	contentMaxLen = 5000
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// ErrNotFound is returned when no notice matches the given id.
var ErrNotFound = errors.New("notice not found")

// CreateInput is the payload for publishing a notice.
type CreateInput struct {
	SocietyID  string
	AdminID    string
	AdminName  string
	Title      string
	Content    string
	NoticeType string
	Priority   string
	// ExpiryDate is optional; when set it must be an RFC3339 timestamp or a
	// plain YYYY-MM-DD date.
	ExpiryDate string
}

// Service exposes the notice-board operations.
type Service interface {
	// Create publishes a notice for the tenant's board.
	Create(ctx context.Context, input CreateInput) (repo.Notice, error)
	// List returns the tenant's notices, newest first. With activeOnly set,
	// deactivated and expired notices are dropped; an unparseable expiry
	// keeps the notice visible rather than hiding it on bad data.
	List(ctx context.Context, societyID string, activeOnly bool) ([]repo.Notice, error)
	// SetActive toggles a notice's visibility without deleting it.
	SetActive(ctx context.Context, noticeID string, active bool) (repo.Notice, error)
	// Delete removes the notice row permanently.
	Delete(ctx context.Context, noticeID string) error
}

type service struct {
	notices repo.Repository
	logger  *zap.Logger

	now func() time.Time
}

// New constructs the notice service.
func New(notices repo.Repository, logger *zap.Logger) Service {
	if notices == nil {
		panic("notices repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{notices: notices, logger: logger, now: time.Now}
}

func (s *service) Create(ctx context.Context, input CreateInput) (repo.Notice, error) {
	fieldErrors := FieldErrors{}

	societyID := strings.TrimSpace(input.SocietyID)
	if societyID == "" {
		fieldErrors.add("societyId", "societyId is required")
	}
	adminID := strings.TrimSpace(input.AdminID)
	if adminID == "" {
		fieldErrors.add("adminId", "adminId is required")
	}

	title := strings.TrimSpace(input.Title)
	if len(title) < titleMinLen || len(title) > titleMaxLen {
		fieldErrors.add("title", "title must be between 5 and 200 characters")
	}
	content := strings.TrimSpace(input.Content)
	if len(content) < contentMinLen || len(content) > contentMaxLen {
		fieldErrors.add("content", "content must be between 10 and 5000 characters")
	}

	noticeType := strings.ToUpper(strings.TrimSpace(input.NoticeType))
	if noticeType == "" {
		noticeType = defaultNoticeType
	} else if _, ok := noticeTypes[noticeType]; !ok {
		fieldErrors.add("noticeType", "noticeType must be one of GENERAL, SCHEDULE, POLICY, EMERGENCY, MAINTENANCE")
	}

	priority := strings.ToUpper(strings.TrimSpace(input.Priority))
	if priority == "" {
		priority = defaultPriority
	} else if _, ok := priorities[priority]; !ok {
		fieldErrors.add("priority", "priority must be one of LOW, NORMAL, HIGH, URGENT")
	}

	expiry := strings.TrimSpace(input.ExpiryDate)
	if expiry != "" {
		if _, ok := parseExpiry(expiry); !ok {
			fieldErrors.add("expiryDate", "expiryDate must be an RFC3339 timestamp or YYYY-MM-DD")
		}
	}

	if len(fieldErrors) > 0 {
		return repo.Notice{}, &ValidationError{Fields: fieldErrors}
	}

	notice := repo.Notice{
		NoticeID:   uuid.NewString(),
		SocietyID:  societyID,
		AdminID:    adminID,
		AdminName:  strings.TrimSpace(input.AdminName),
		Title:      title,
		Content:    content,
		NoticeType: noticeType,
		Priority:   priority,
		Active:     true,
		CreatedAt:  s.now().UTC(),
		ExpiryDate: expiry,
	}

	if err := s.notices.Append(ctx, notice); err != nil {
		return repo.Notice{}, err
	}
	return notice, nil
}

func (s *service) List(ctx context.Context, societyID string, activeOnly bool) ([]repo.Notice, error) {
	if strings.TrimSpace(societyID) == "" {
		return nil, newValidationError("societyId", "societyId is required")
	}

	notices, err := s.notices.ListBySociety(ctx, strings.TrimSpace(societyID))
	if err != nil {
		return nil, err
	}

	filtered := make([]repo.Notice, 0, len(notices))
	for _, notice := range notices {
		if activeOnly && !s.visible(notice) {
			continue
		}
		filtered = append(filtered, notice)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	return filtered, nil
}

func (s *service) SetActive(ctx context.Context, noticeID string, active bool) (repo.Notice, error) {
	if strings.TrimSpace(noticeID) == "" {
		return repo.Notice{}, newValidationError("noticeId", "noticeId is required")
	}

	notice, ok, err := s.notices.SetActive(ctx, strings.TrimSpace(noticeID), active)
	if err != nil {
		return repo.Notice{}, err
	}
	if !ok {
		return repo.Notice{}, ErrNotFound
	}
	return notice, nil
}

func (s *service) Delete(ctx context.Context, noticeID string) error {
	if strings.TrimSpace(noticeID) == "" {
		return newValidationError("noticeId", "noticeId is required")
	}

	ok, err := s.notices.Delete(ctx, strings.TrimSpace(noticeID))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// visible reports whether an active-only listing includes the notice. A
// stored expiry that no longer parses keeps the notice visible.
func (s *service) visible(notice repo.Notice) bool {
	if !notice.Active {
		return false
	}
	if notice.ExpiryDate == "" {
		return true
	}

	expiresAt, ok := parseExpiry(notice.ExpiryDate)
	if !ok {
		s.logger.Warn("unparseable notice expiry",
			zap.String("notice_id", notice.NoticeID),
			zap.String("value", notice.ExpiryDate))
		return true
	}
	return s.now().UTC().Before(expiresAt)
}

func parseExpiry(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func newValidationError(field, message string) error {
	fe := FieldErrors{}
	fe.add(field, message)
	return &ValidationError{Fields: fe}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
