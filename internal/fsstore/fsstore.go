package fsstore

import (
	"errors"
	"io/fs"
	"os"
	"strings"
)

// ErrNotFound is returned by ReadFile when the resolved path does not
// exist on disk
var ErrNotFound = errors.New("fsstore: file not found")

// ReadFile reads the full contents of path, distinguishing a missing
// file from any other I/O failure — the two outcomes spec.md §4.8
// handles differently (404 vs 500). Grounded on
// original_source/src/impl/router.cpp's readFileContent, minus its
// silent-empty-string-on-failure behaviour: Go callers get a typed error
// instead.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// IsDir reports whether path exists and is a directory
func IsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Exists reports whether path exists on disk (file or directory); used
// by the mount health check to probe a sentinel file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// mimeTypes is the extension-based MIME table grounded on
// original_source/src/impl/router.cpp's getMimeType, extended with a
// handful of additional common static-asset extensions in the same
// idiom (extension-suffix match, plain-text fallback).
var mimeTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".txt":  "text/plain",
}

// MimeOf returns the MIME type for path based on its extension, falling
// back to text/plain for anything unrecognised.
func MimeOf(path string) string {
	for ext, mime := range mimeTypes {
		if strings.HasSuffix(path, ext) {
			return mime
		}
	}
	return "text/plain"
}
