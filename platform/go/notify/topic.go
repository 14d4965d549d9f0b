package notify

import "strings"

// Topic derives the canonical FCM routing key for a unit within a society:
// uppercase, non-alphanumeric runs collapsed to a single underscore, leading
// and trailing underscores trimmed.
//
//	Topic("soc_ajmer_01", "A-101") -> "SOC_AJMER_01_A_101"
func Topic(societyID, unitNo string) string {
	return sanitize(societyID + "_" + unitNo)
}

// LegacyTopic derives the routing key older app builds subscribed to, based
// on the internal unit id. During migrations both topics are targeted when
// they differ.
func LegacyTopic(societyID, unitID string) string {
	return sanitize(societyID + "_" + unitID)
}

func sanitize(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(upper))
	pendingSep := false
	for _, r := range upper {
		alnum := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
