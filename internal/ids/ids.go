package ids

import "github.com/segmentio/ksuid"

// New returns a sortable unique identifier for reports, users and uploads.
func New() string {
	return ksuid.New().String()
}
