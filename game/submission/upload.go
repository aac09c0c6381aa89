package submission

import (
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
)

const maxLinkLen = 1024

// ErrUploadWriteFailed marks a blob store failure while saving an upload.
var ErrUploadWriteFailed = errors.New("upload write failed")

// File is an uploaded file. Size is the declared size; a body shorter than
// Size is a partial upload.
type File struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Request is the evidence an employee submits: a link or a file.
type Request struct {
	Link string
	File *File
}

func (r Request) kind() (string, error) {
	switch {
	case r.File != nil && strings.TrimSpace(r.Link) != "":
		return "", apperr.Validation(apperr.CodeInvalidSubmission, "submit either a file or a link, not both")
	case r.File != nil:
		return "file", nil
	case strings.TrimSpace(r.Link) != "":
		return "link", nil
	}
	return "", apperr.Validation(apperr.CodeInvalidSubmission, "a file or a link is required")
}

// ValidateLink accepts absolute http(s) URLs with a host.
func ValidateLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxLinkLen {
		return "", apperr.Validation(apperr.CodeInvalidLink, "link must be at most %d characters", maxLinkLen)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.Validation(apperr.CodeInvalidLink, "link must be a valid http or https URL")
	}
	return u.String(), nil
}

// ValidateFile checks the declared upload against the configured
// constraints before anything is written.
func ValidateFile(cfg config.UploadConfig, f *File) error {
	if f.Reader == nil || strings.TrimSpace(f.Name) == "" {
		return apperr.Validation(apperr.CodeInvalidSubmission, "file is empty")
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	allowed := false
	for _, a := range cfg.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperr.Validation(apperr.CodeUploadDisallowedType, "files of type %q are not allowed", ext)
	}
	if cfg.MaxBytes > 0 && f.Size > cfg.MaxBytes {
		return apperr.Validation(apperr.CodeUploadTooLarge, "file exceeds the %d byte limit", cfg.MaxBytes)
	}
	if f.Size <= 0 {
		return apperr.Validation(apperr.CodeUploadPartial, "file was only partially uploaded")
	}
	if cfg.TempDir != "" {
		if st, err := os.Stat(cfg.TempDir); err != nil || !st.IsDir() {
			return apperr.Validation(apperr.CodeUploadNoTempDir, "upload temp directory is missing")
		}
	}
	return nil
}
