package constants

import (
	"net/http"
	"path/filepath"
	"strings"
)

// DetectContentType sniffs the first bytes of an upload and falls back to the
// file extension, then to the kind's default.
func DetectContentType(kind DocumentKind, filename string, data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if len(head) > 0 {
		if ct := http.DetectContentType(head); ct != "application/octet-stream" {
			return ct
		}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	if ct := kind.ContentType(); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
