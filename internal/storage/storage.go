package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/fileio-go/internal/domain"
)

// Package storage provides the local upload ledger.

// Store tracks files uploaded through this tool.
type Store interface {
	Close() error
	Put(rec domain.FileRecord) error
	Get(key string) (domain.FileRecord, bool, error)
	List() ([]domain.FileRecord, error)
	Delete(key string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	// RecordTTL applies to records whose remote expiry is unknown.
	RecordTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultRecordTTL       = 14 * 24 * time.Hour
	defaultCleanupInterval = time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RecordTTL <= 0 {
		opts.RecordTTL = defaultRecordTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                                { return nil }
func (noopStore) Put(domain.FileRecord) error                 { return nil }
func (noopStore) Get(string) (domain.FileRecord, bool, error) { return domain.FileRecord{}, false, nil }
func (noopStore) List() ([]domain.FileRecord, error)          { return nil, nil }
func (noopStore) Delete(string) error                         { return nil }
