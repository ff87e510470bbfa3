// Package normalize standardizes free-text administrative names and CSV
// headers so that case, punctuation and hyphenation never cause mismatches.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const fctName = "federal capital territory"

// Normalize lowercases s, folds diacritics, collapses every run of
// characters outside [a-z0-9] into a single space and trims the result.
//
//	"Eti-Osa"   → "eti osa"
//	"  LAGOS  " → "lagos"
//	"Ọ̀yọ́"      → "oyo"
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(foldDiacritics(s))

	var sb strings.Builder
	sb.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pendingSpace = false
			sb.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return sb.String()
}

// StateName normalizes s and strips a trailing "state" token, so that
// "Lagos State" and "lagos" produce the same key.
func StateName(s string) string {
	n := Normalize(s)
	if strings.HasSuffix(n, " state") {
		return strings.TrimSpace(strings.TrimSuffix(n, " state"))
	}
	return n
}

// EnsureStateSuffix appends " State" for display unless s already ends with
// "state" (case-insensitive). Empty input stays empty.
func EnsureStateSuffix(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return trimmed
	}
	if strings.HasSuffix(strings.ToLower(trimmed), "state") {
		return trimmed
	}
	return trimmed + " State"
}

// IsFCTQuery reports whether s refers to the Federal Capital Territory by
// abbreviation, city name or formal name.
func IsFCTQuery(s string) bool {
	n := Normalize(s)
	return n == "fct" ||
		strings.Contains(n, "abuja") ||
		strings.Contains(n, fctName)
}

// Header normalizes a CSV column name into a snake_case lookup key.
// "Provider_Type", "provider type" and "PROVIDER-TYPE" all become
// "provider_type".
func Header(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "_")
}

// foldDiacritics strips combining marks after canonical decomposition.
// A transformer chain is stateful, so one is built per call.
func foldDiacritics(s string) string {
	if isASCII(s) {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
