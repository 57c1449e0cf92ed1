// Package resultdb persists computed batches in a bbolt database.
package resultdb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotblauer/trajd/geo/trajectory"
	"github.com/rotblauer/trajd/params"
	"go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("batch not found")

var (
	batchesBucket   = []byte("batches")
	summariesBucket = []byte("summaries")
)

// Meta describes one stored batch.
type Meta struct {
	BatchID      string                `json:"batch_id"`
	Created      time.Time             `json:"created"`
	Source       string                `json:"source"`
	Trajectories int                   `json:"trajectories"`
	Points       int                   `json:"points"`
	Stats        trajectory.BatchStats `json:"stats"`
}

// NewBatchID returns a fresh random batch ID.
func NewBatchID() string {
	return uuid.NewString()
}

type DB struct {
	db *bbolt.DB
}

// Open opens or creates the results store at path.
// Opening a writable store blocks other writers and readers until it is closed.
func Open(path string, readOnly bool) (*DB, error) {
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

// OpenDatadir opens the results store under the datadir root.
func OpenDatadir(root string, readOnly bool) (*DB, error) {
	return Open(filepath.Join(root, params.ResultsDBName), readOnly)
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Path() string {
	return d.db.Path()
}

// PutBatch stores a batch's metadata and summaries, replacing any batch with the same ID.
// Summaries keep their order.
func (d *DB) PutBatch(meta Meta, summaries []trajectory.Summary) error {
	if meta.BatchID == "" {
		return fmt.Errorf("put batch: empty batch id")
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		batches, err := tx.CreateBucketIfNotExists(batchesBucket)
		if err != nil {
			return err
		}
		if err := batches.Put([]byte(meta.BatchID), metaJSON); err != nil {
			return err
		}

		all, err := tx.CreateBucketIfNotExists(summariesBucket)
		if err != nil {
			return err
		}
		if all.Bucket([]byte(meta.BatchID)) != nil {
			if err := all.DeleteBucket([]byte(meta.BatchID)); err != nil {
				return err
			}
		}
		bucket, err := all.CreateBucket([]byte(meta.BatchID))
		if err != nil {
			return err
		}
		for i, s := range summaries {
			v, err := json.Marshal(s)
			if err != nil {
				return err
			}
			if err := bucket.Put(indexKey(i), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func indexKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

// Batch returns the metadata of one batch.
func (d *DB) Batch(id string) (Meta, error) {
	var meta Meta
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(batchesBucket)
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(v, &meta)
	})
	return meta, err
}

// Summaries returns a batch's summaries in stored order.
func (d *DB) Summaries(id string) ([]trajectory.Summary, error) {
	var out []trajectory.Summary
	err := d.db.View(func(tx *bbolt.Tx) error {
		all := tx.Bucket(summariesBucket)
		if all == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		b := all.Bucket([]byte(id))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		out = make([]trajectory.Summary, 0, b.Stats().KeyN)
		return b.ForEach(func(_, v []byte) error {
			var s trajectory.Summary
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			out = append(out, s)
			return nil
		})
	})
	return out, err
}

// Batches lists stored batch metadata, oldest first.
func (d *DB) Batches() ([]Meta, error) {
	var out []Meta
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(batchesBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var meta Meta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			out = append(out, meta)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}
