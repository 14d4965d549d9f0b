package sheetstore

import (
	"strings"
	"sync"
)

// fieldAliases maps canonical field names to the header spellings observed in
// production sheets. Matching is attempted only after the generic fallbacks
// (exact, case-insensitive, separator-normalized, case-folded) fail.
var fieldAliases = map[string][]string{
	"visitor_id":         {"VisitorId", "Visitor ID"},
	"society_id":         {"SocietyId", "Society ID", "society code"},
	"flat_id":            {"FlatId", "Flat ID", "unit_id", "Unit ID"},
	"flat_no":            {"FlatNo", "Flat No", "unit_no", "Unit No", "Flat Number"},
	"guard_id":           {"GuardId", "Guard ID"},
	"guard_name":         {"GuardName", "Guard Name"},
	"resident_id":        {"ResidentId", "Resident ID"},
	"resident_name":      {"ResidentName", "Resident Name"},
	"resident_phone":     {"ResidentPhone", "Resident Phone", "phone"},
	"resident_alt_phone": {"ResidentAltPhone", "Alt Phone", "alternate_phone"},
	"resident_pin":       {"ResidentPin", "Resident PIN", "pin"},
	"visitor_type":       {"VisitorType", "Visitor Type"},
	"visitor_phone":      {"VisitorPhone", "Visitor Phone"},
	"photo_ref":          {"PhotoRef", "Photo Ref", "photo_path"},
	"approved_at":        {"ApprovedAt", "Approved At"},
	"approved_by":        {"ApprovedBy", "Approved By"},
	"created_at":         {"CreatedAt", "Created At"},
	"fcm_token":          {"FcmToken", "FCM Token"},
	"notice_id":          {"NoticeId", "Notice ID"},
	"notice_type":        {"NoticeType", "Notice Type"},
	"is_active":          {"IsActive", "Is Active"},
	"expiry_date":        {"ExpiryDate", "Expiry Date"},
	"admin_id":           {"AdminId", "Admin ID"},
	"admin_name":         {"AdminName", "Admin Name"},
	"complaint_id":       {"ComplaintId", "Complaint ID"},
	"resolved_at":        {"ResolvedAt", "Resolved At"},
	"resolved_by":        {"ResolvedBy", "Resolved By"},
	"admin_response":     {"AdminResponse", "Admin Response"},
}

// FieldMap resolves logical field names against one header row. Resolution
// happens at most once per field and is cached, so repositories pay the
// fallback chain only on the first access after a read.
type FieldMap struct {
	header []string

	mu       sync.Mutex
	resolved map[string]int // -1 marks a field with no matching column
}

// NewFieldMap builds a resolver for the given header row.
func NewFieldMap(header []string) *FieldMap {
	return &FieldMap{header: header, resolved: make(map[string]int, len(header))}
}

// Column returns the 0-based column index for a logical field.
//
// Precedence: exact match, case-insensitive match, separator-normalized
// match (underscore and space treated as equal), case-folded variants, and
// finally the domain alias table. An unmatched field resolves to (0, false)
// and is remembered; it never raises.
func (m *FieldMap) Column(field string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if col, ok := m.resolved[field]; ok {
		return col, col >= 0
	}

	col := m.locate(field)
	m.resolved[field] = col
	return col, col >= 0
}

// Missing reports every field that was requested but never matched a column.
// Callers log these; the adapter itself stays silent.
func (m *FieldMap) Missing() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var missing []string
	for field, col := range m.resolved {
		if col < 0 {
			missing = append(missing, field)
		}
	}
	return missing
}

func (m *FieldMap) locate(field string) int {
	// Exact.
	for i, h := range m.header {
		if h == field {
			return i
		}
	}

	// Case-insensitive on the trimmed header.
	folded := trimFold(field)
	for i, h := range m.header {
		if trimFold(h) == folded {
			return i
		}
	}

	// Separator-normalized: "_" and " " are interchangeable.
	normalized := foldSeparators(field)
	for i, h := range m.header {
		if foldSeparators(h) == normalized {
			return i
		}
	}

	// Case-folded spelling variants of the field itself.
	for _, variant := range []string{strings.Title(field), strings.ToUpper(field), strings.ToLower(field)} { //nolint:staticcheck
		for i, h := range m.header {
			if strings.TrimSpace(h) == variant {
				return i
			}
		}
	}

	// Domain alias table, matched with the same tolerance.
	for _, alias := range fieldAliases[field] {
		aliasNorm := foldSeparators(alias)
		for i, h := range m.header {
			if foldSeparators(h) == aliasNorm {
				return i
			}
		}
	}

	return -1
}

func trimFold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func foldSeparators(s string) string {
	return strings.ReplaceAll(trimFold(s), "_", " ")
}
