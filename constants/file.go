package constants

import "strings"

// Formats for the source document.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// AllowedExtensions holds the file extensions accepted for invoice uploads.
// Anything else is rejected before any OCR work starts.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a (normalized or raw) extension to a source format.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png":
		return IMAGE
	default:
		return ""
	}
}

// MapContentTypeToFormat maps a declared content type to a source format.
// Returns "" for unsupported types.
func MapContentTypeToFormat(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	switch ct {
	case "application/pdf":
		return PDF
	case "image/png", "image/jpeg", "image/jpg":
		return IMAGE
	default:
		return ""
	}
}
