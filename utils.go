package ephemera

import (
	"mime"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidStoredRef validates that a blob reference is safe to hand to a blob store.
// It checks that the reference:
//   - is not empty, "." or ".."
//   - is a single segment (no "/" or "\")
//   - does not start with "." (temp files and hidden entries are reserved)
//   - is valid UTF-8
//   - does not contain null bytes, control characters (< 0x20), DEL (0x7f), or whitespace
//
// Returns true if the reference is valid, false otherwise.
func IsValidStoredRef(ref string) bool {
	if ref == "" || ref == "." || ref == ".." {
		return false
	}

	if ref[0] == '.' {
		return false
	}

	if strings.ContainsAny(ref, `/\?#~`) {
		return false
	}

	if !utf8.ValidString(ref) {
		return false
	}

	for _, r := range ref {
		if r == 0 || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// IsValidToken reports whether s could be a token produced by NewToken.
// Tokens are unpadded URL-safe base64.
func IsValidToken(s string) bool {
	if len(s) < tokenMinLength || len(s) > tokenMaxLength {
		return false
	}

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}

	return true
}

// FileExtension returns the lower-cased extension of name, including the dot.
func FileExtension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// DetectContentType guesses a MIME type from the file name extension.
func DetectContentType(name string) string {
	contentType := mime.TypeByExtension(FileExtension(name))

	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}
