package handlers

import "strings"

// NormalizeMobile converts common phone formats to E.164. Separators and
// punctuation are stripped; numbers already carrying a + must be 7-14 digits;
// bare 10-digit numbers are assumed US/Canada and prefixed with +1, and
// 11-digit numbers starting with 1 just gain the +.
func NormalizeMobile(raw string) (string, bool) {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	if strings.HasPrefix(cleaned, "+") {
		digits := cleaned[1:]
		if len(digits) >= 7 && len(digits) <= 14 && !strings.HasPrefix(digits, "0") {
			return cleaned, true
		}
		return "", false
	}

	switch {
	case len(cleaned) == 10 && !strings.HasPrefix(cleaned, "0"):
		return "+1" + cleaned, true
	case len(cleaned) == 11 && strings.HasPrefix(cleaned, "1"):
		return "+" + cleaned, true
	}

	return "", false
}
