package domain

import (
	"time"

	"github.com/samvad-hq/fileio-go/pkg/fileio"
)

// RecordFromNode builds a ledger record from a remote file node. source is
// the local path the file was uploaded from, if known.
func RecordFromNode(n fileio.Node, source string, now time.Time) FileRecord {
	rec := FileRecord{
		Key:          n.Key,
		Name:         n.Name,
		Link:         n.Link,
		Size:         n.Size,
		Source:       source,
		MaxDownloads: n.MaxDownloads,
		AutoDelete:   n.AutoDelete,
		UploadedAt:   now.UTC(),
	}
	if created, err := time.Parse(time.RFC3339, n.Created); err == nil {
		rec.UploadedAt = created.UTC()
	}
	if at, ok := n.ExpiresAt(); ok {
		rec.ExpiresAt = at.UTC()
	}
	return rec
}

// Refresh copies remote settings onto an existing record, keeping its
// local source, upload time and ownership.
func (r FileRecord) Refresh(n fileio.Node, now time.Time) FileRecord {
	fresh := RecordFromNode(n, r.Source, now)
	fresh.UploadedAt = r.UploadedAt
	fresh.Anonymous = r.Anonymous
	fresh.UpdatedAt = now.UTC()
	return fresh
}
