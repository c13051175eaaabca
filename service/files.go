package service

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/h2non/filetype"
	"video-splitter/constant"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SecureFilename reduces a client-supplied name to a safe base name made of
// ASCII letters, digits, dot, dash and underscore.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" || name == "." {
		return ""
	}
	return name
}

// ValidateFilename returns the sanitised name or a validation error.
func ValidateFilename(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrNoFile
	}
	if !constant.IsAllowedExtension(name) {
		return "", fmt.Errorf("%w. %s", ErrUnsupportedFormat, constant.AllowedFormatsMessage)
	}
	secure := SecureFilename(name)
	if !constant.IsAllowedExtension(secure) {
		// sanitising stripped the stem, keep the extension
		secure = "video" + strings.ToLower(filepath.Ext(name))
	}
	return secure, nil
}

// ContentTypeFor maps an accepted video filename to its MIME type.
func ContentTypeFor(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if kind := filetype.GetType(ext); kind != filetype.Unknown && kind.MIME.Value != "" {
		return kind.MIME.Value
	}
	return "application/octet-stream"
}

// sniffContent reports the MIME type detected from the file header, or "" when
// it is not recognised.
func sniffContent(path string) string {
	kind, err := filetype.MatchFile(path)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
