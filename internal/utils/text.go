package utils

import "strings"

// Truncate cuts text to maxChars and marks the cut.
// Used to bound prompt sizes before completion calls.
func Truncate(text string, maxChars int) string {
	if text == "" || len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "... [truncated]"
}

// PrintableText replaces non-printable bytes with spaces and collapses
// runs of whitespace. Used by the raw PDF stream fallback, which decodes
// binary content streams into best-effort text.
func PrintableText(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 0x20 && c <= 0x7E {
			b.WriteByte(c)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FirstNonEmpty returns the first non-empty string in values
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
