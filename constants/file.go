package constants

import "strings"

// AllowedExtensions holds the extensions picked up from an input directory.
var AllowedExtensions = map[string]struct{}{
	"md":       {},
	"markdown": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsDocumentExt reports whether ext (with or without dot) is a Markdown extension.
func IsDocumentExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// DateLayout is the serialized form of every date in the dataset.
const DateLayout = "2006-01-02"
