package tier

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	ViolationFileSize   = "file_size"
	ViolationFileFormat = "file_format"
)

type ValidationError struct {
	Type             string   `json:"type"`
	Message          string   `json:"message"`
	Limit            int64    `json:"limit,omitempty"`
	Current          int64    `json:"current,omitempty"`
	SupportedFormats []string `json:"supportedFormats,omitempty"`
	CurrentFormat    string   `json:"currentFormat,omitempty"`
}

type Validation struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// ValidateUpload checks an inbound file against the tier's size and
// format constraints. All violations are accumulated so the caller sees
// the complete list in one round trip.
func ValidateUpload(fileName string, sizeBytes int64, d Descriptor) Validation {
	var errs []ValidationError

	if sizeBytes > d.MaxUploadBytes {
		errs = append(errs, ValidationError{
			Type: ViolationFileSize,
			Message: fmt.Sprintf("File too large. Maximum for %s: %s",
				d.DisplayName, FormatFileSize(d.MaxUploadBytes)),
			Limit:   d.MaxUploadBytes,
			Current: sizeBytes,
		})
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if !formatAllowed(ext, d.AllowedFormats) {
		errs = append(errs, ValidationError{
			Type: ViolationFileFormat,
			Message: fmt.Sprintf("Format %q is not supported. Accepted: %s",
				ext, strings.Join(d.AllowedFormats, ", ")),
			SupportedFormats: d.AllowedFormats,
			CurrentFormat:    ext,
		})
	}

	return Validation{Valid: len(errs) == 0, Errors: errs}
}

func formatAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
