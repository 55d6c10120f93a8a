package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/aluiziolira/oofd-receipts/models"
)

const recordsBucket = "receipts"

// BoltWriter archives records in a bbolt file keyed by lookup URL. Writing the
// same URL again replaces the stored record.
type BoltWriter struct {
	db      *bbolt.DB
	records int
	mu      sync.Mutex
}

// NewBoltWriter opens (or creates) the archive at path.
func NewBoltWriter(path string) (*BoltWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	db, err := openBolt(path, false)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltWriter{db: db}, nil
}

func openBolt(path string, readOnly bool) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %q: %w", path, err)
	}
	return db, nil
}

// Write stores a batch in a single transaction.
func (bw *BoltWriter) Write(records []*models.Record) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	err := bw.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		for _, record := range records {
			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("marshal record: %w", err)
			}
			if err := bucket.Put([]byte(record.URL), data); err != nil {
				return fmt.Errorf("put %s: %w", record.URL, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	bw.records += len(records)
	return nil
}

// Close closes the database file.
func (bw *BoltWriter) Close() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.db.Close()
}

// Validate ensures at least one receipt was stored.
func (bw *BoltWriter) Validate() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.records == 0 {
		return fmt.Errorf("bolt archive received no receipts")
	}
	return nil
}

// ListRecords returns every record in the archive at path, ordered by URL.
func ListRecords(path string) ([]*models.Record, error) {
	// bbolt would create a missing file even in read-only mode.
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	db, err := openBolt(path, true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	records := make([]*models.Record, 0)
	err = db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var record models.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshal record %s: %w", k, err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
