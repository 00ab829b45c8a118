package domain

import "time"

// Domain contains core models shared by the app packages.

// FileRecord is the local ledger entry for a file uploaded through this tool.
type FileRecord struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Link         string    `json:"link,omitempty"`
	Size         int64     `json:"size"`
	Source       string    `json:"source,omitempty"`
	MaxDownloads int       `json:"max_downloads,omitempty"`
	AutoDelete   bool      `json:"auto_delete"`
	Anonymous    bool      `json:"anonymous,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the remote expiry is known and not after now.
func (r FileRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now)
}
