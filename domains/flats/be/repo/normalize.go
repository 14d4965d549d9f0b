package repo

import "strings"

// NormalizeNo reduces a human-entered flat number to its canonical lookup
// key: the literal token "FLAT" is stripped, as are dashes, underscores, and
// spaces, and the remainder is uppercased.
//
//	"A-101"       -> "A101"
//	"a 101"       -> "A101"
//	"flat- A-101" -> "A101"
//	"FLAT_101"    -> "101"
//
// Every cache key, repository lookup, and comparison goes through this one
// function.
func NormalizeNo(flatNo string) string {
	s := strings.ToUpper(strings.TrimSpace(flatNo))
	s = strings.ReplaceAll(s, "FLAT", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
