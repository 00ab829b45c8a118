package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/samvad-hq/fileio-go/internal/domain"
)

const uploadBucket = "uploads"

// storedRecord is the bucket value: the record plus the instant it leaves the ledger.
type storedRecord struct {
	Record domain.FileRecord `json:"record"`
	Expiry int64             `json:"expiry"`
}

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	recordTTL       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(uploadBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		recordTTL:       opts.RecordTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Put inserts or replaces the record for rec.Key.
func (b *boltStore) Put(rec domain.FileRecord) error {
	if b == nil || b.db == nil {
		return nil
	}
	if rec.Key == "" {
		return fmt.Errorf("ledger record requires a key")
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	expiry := rec.ExpiresAt
	if expiry.IsZero() {
		expiry = now.Add(b.recordTTL)
	}
	value, err := json.Marshal(storedRecord{Record: rec, Expiry: expiry.Unix()})
	if err != nil {
		return fmt.Errorf("encode ledger record: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(uploadBucket))
		if bucket == nil {
			return fmt.Errorf("upload bucket missing")
		}
		return bucket.Put([]byte(rec.Key), value)
	})
}

// Get returns the record for key. Expired records are removed and reported missing.
func (b *boltStore) Get(key string) (domain.FileRecord, bool, error) {
	if b == nil || b.db == nil {
		return domain.FileRecord{}, false, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return domain.FileRecord{}, false, err
	}

	var (
		rec    domain.FileRecord
		exists bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(uploadBucket))
		if bucket == nil {
			return fmt.Errorf("upload bucket missing")
		}

		k := []byte(key)
		stored, ok := decodeRecord(bucket.Get(k))
		if !ok || !live(stored, now) {
			if bucket.Get(k) == nil {
				return nil
			}
			return bucket.Delete(k)
		}

		rec = stored.Record
		exists = true
		return nil
	})
	return rec, exists, err
}

// List returns every live record ordered by upload time.
func (b *boltStore) List() ([]domain.FileRecord, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return nil, err
	}

	var out []domain.FileRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(uploadBucket))
		if bucket == nil {
			return fmt.Errorf("upload bucket missing")
		}
		return bucket.ForEach(func(_, v []byte) error {
			if stored, ok := decodeRecord(v); ok && live(stored, now) {
				out = append(out, stored.Record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

// Delete removes the record for key; missing keys are not an error.
func (b *boltStore) Delete(key string) error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(uploadBucket))
		if bucket == nil {
			return fmt.Errorf("upload bucket missing")
		}
		return bucket.Delete([]byte(key))
	})
}

// maybeCleanupExpired removes expired records on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(uploadBucket))
		if bucket == nil {
			return fmt.Errorf("upload bucket missing")
		}

		var expired [][]byte
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if stored, ok := decodeRecord(v); !ok || !live(stored, now) {
				expired = append(expired, append([]byte(nil), k...))
			}
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

// decodeRecord decodes a stored bucket value.
func decodeRecord(value []byte) (storedRecord, bool) {
	if len(value) == 0 {
		return storedRecord{}, false
	}
	var stored storedRecord
	if err := json.Unmarshal(value, &stored); err != nil || stored.Expiry <= 0 {
		return storedRecord{}, false
	}
	return stored, true
}

func live(stored storedRecord, now time.Time) bool {
	return time.Unix(stored.Expiry, 0).After(now)
}
