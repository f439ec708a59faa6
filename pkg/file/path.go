package file

import (
	"path/filepath"
	"strings"
)

// ExtLower returns the file extension of name without the leading dot,
// lower-cased. Names without an extension yield "".
func ExtLower(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
