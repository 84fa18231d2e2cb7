package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Nilscreate/websitecrawltool/audit"
)

const (
	reportsBucket = "reports"
	timeBucket    = "reports_by_time"
)

// BoltStore keeps reports in an embedded bbolt file
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the database at path
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(reportsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(timeBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// timeKey sorts by creation time, then id
func timeKey(r *audit.Report) []byte {
	key := make([]byte, 8, 8+len(r.ID))
	binary.BigEndian.PutUint64(key, uint64(r.CreatedAt.UnixNano()))
	return append(key, r.ID...)
}

func (s *BoltStore) Save(ctx context.Context, r *audit.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report %s: %w", r.ID, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(reportsBucket)).Put([]byte(r.ID), data); err != nil {
			return fmt.Errorf("failed to save report %s: %w", r.ID, err)
		}
		if err := tx.Bucket([]byte(timeBucket)).Put(timeKey(r), []byte(r.ID)); err != nil {
			return fmt.Errorf("failed to index report %s: %w", r.ID, err)
		}
		return nil
	})
}

func (s *BoltStore) Get(ctx context.Context, id string) (*audit.Report, error) {
	var r audit.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(reportsBucket)).Get([]byte(id))
		if data == nil {
			return audit.ErrNotFound
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *BoltStore) List(ctx context.Context, limit int) ([]audit.Listing, error) {
	listings := make([]audit.Listing, 0, limit)

	err := s.db.View(func(tx *bolt.Tx) error {
		reports := tx.Bucket([]byte(reportsBucket))
		c := tx.Bucket([]byte(timeBucket)).Cursor()

		for k, id := c.Last(); k != nil && len(listings) < limit; k, id = c.Prev() {
			data := reports.Get(id)
			if data == nil {
				continue
			}
			var r audit.Report
			if err := json.Unmarshal(data, &r); err != nil {
				return fmt.Errorf("failed to decode report %s: %w", id, err)
			}
			listings = append(listings, r.Listing())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
