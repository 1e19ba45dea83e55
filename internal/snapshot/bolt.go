package snapshot

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/boltdb/bolt"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/otlpproto"
)

// batchesBucket holds one OTLP Protobuf TracesData message per key. Keys are
// big endian sequence numbers, so iteration follows insertion order.
var batchesBucket = []byte("batches")

// BoltStore keeps span batches in a bolt database file.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// OpenBoltStore opens or creates the database at path. A read-only store
// requires the file to exist and may be shared with other readers.
func OpenBoltStore(path string, readOnly bool) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}
	return &BoltStore{db: db, path: path}, nil
}

// Append stores c as a new batch.
func (s *BoltStore) Append(c otlp.SpanCollection) error {
	b, err := otlp.MarshalProto(c)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(batchesBucket)
		if err != nil {
			return err
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, b)
	})
	if err != nil {
		return fmt.Errorf("failed to append batch to %s: %w", s.path, err)
	}
	return nil
}

// Load merges every stored batch into one collection, in insertion order.
func (s *BoltStore) Load() (*otlp.TracesData, error) {
	out := &otlp.TracesData{}
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(batchesBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			// v is only valid inside the transaction; the proto view copies
			// what it keeps while unmarshalling.
			view, err := otlpproto.Unmarshal(v)
			if err != nil {
				return fmt.Errorf("batch %x: %w", k, err)
			}
			td, err := otlp.Materialize(view)
			if err != nil {
				return fmt.Errorf("batch %x: %w", k, err)
			}
			out.ResourceSpans = append(out.ResourceSpans, td.ResourceSpans...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of stored batches.
func (s *BoltStore) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		if bucket := tx.Bucket(batchesBucket); bucket != nil {
			n = bucket.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Close releases the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
