package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeChars   = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// Clean turns an arbitrary track title into a filesystem-safe filename.
// The extension is preserved verbatim; only the base name is rewritten.
// Clean is idempotent.
func Clean(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	base = whitespaceRun.ReplaceAllString(base, "_")
	base = unsafeChars.ReplaceAllString(base, "")
	base = underscoreRun.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")

	return base + ext
}
