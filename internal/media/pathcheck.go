package media

import (
	"path/filepath"
	"strings"
)

// maxStemLen bounds the user-supplied part of a stored file name.
const maxStemLen = 40

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Stored paths always use forward slashes
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// sanitizeStem reduces an uploaded file name to a safe stem: extension
// dropped, anything outside [A-Za-z0-9_-] replaced, runs of dashes collapsed.
func sanitizeStem(filename string) string {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	s := b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if len(s) > maxStemLen {
		s = s[:maxStemLen]
	}
	if s == "" {
		return "image"
	}
	return s
}
