package sanitizer

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var filenamePolicy = bluemonday.StrictPolicy()

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Filename strips HTML/script content and path traversal from a
// client-supplied upload name, returning a value safe to embed in a
// Content-Disposition header.
func Filename(original string) string {
	base := filepath.Base(original)
	base = filenamePolicy.Sanitize(base)
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "icon"
	}
	return base
}
