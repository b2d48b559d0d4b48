package entity

import (
	"fmt"
	"regexp"
	"strings"
)

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// SanitizeSegment returns a key-safe version of one path segment.
// Path separators, parent references and anything outside [A-Za-z0-9_-] are dropped.
func SanitizeSegment(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return unsafeSegment.ReplaceAllString(name, "")
}

// ReceiptPath is the storage key of the receipt attached to expense index of a claim
func ReceiptPath(claimID string, index int, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	ext = SanitizeSegment(ext)
	if ext != "" {
		ext = "." + ext
	}
	return fmt.Sprintf("claims/%s/receipt_%d%s", SanitizeSegment(claimID), index, ext)
}
