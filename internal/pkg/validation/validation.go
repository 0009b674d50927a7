package validation

import (
	"regexp"
	"strings"
)

// userIDRe accepts the canonical 8-4-4-4-12 hex UUID text form, either case.
// Version and variant nibbles are not checked: seeded and imported ids use
// patterns like 11111111-1111-1111-1111-111111111111.
var userIDRe = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// unsafeFileChars is everything outside the object-key alphabet.
var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9.\-]`)

// IsValidUserID reports whether id is an auth-provider user id.
func IsValidUserID(id string) bool {
	return userIDRe.MatchString(id)
}

// SanitizeFileName replaces every character outside [A-Za-z0-9.-] with "_".
func SanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}

func IsVideoContentType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(ct), "video/")
}

func IsImageContentType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(ct), "image/")
}
