// Package kv wraps an embedded LevelDB database with JSON document helpers.
// Documents live under prefixed keys ("user:<email>", "rec:<seq>") and
// secondary indexes are plain keys pointing at a primary key.
package kv

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.New("kv: not found")

type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) a LevelDB database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a LevelDB database backed by memory storage. Nothing
// is written to disk.
func OpenInMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw value stored at key.
func (s *Store) Get(key string) ([]byte, error) {
	v, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// GetJSON decodes the document stored at key into dest.
func (s *Store) GetJSON(key string, dest interface{}) error {
	v, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) Has(key string) (bool, error) {
	ok, err := s.db.Has([]byte(key), nil)
	if err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return ok, nil
}

// Write applies every operation of b atomically.
func (s *Store) Write(b *Batch) error {
	if err := s.db.Write(&b.b, nil); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

// Scan calls fn for every key with the given prefix in key order. The
// slices passed to fn are only valid for the duration of the call.
func (s *Store) Scan(prefix string, fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}
	return nil
}

// Uint64 reads an unsigned counter stored at key; a missing key reads as 0.
func (s *Store) Uint64(key string) (uint64, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("counter %s: expected 8 bytes, got %d", key, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// Batch collects writes applied together by Store.Write.
type Batch struct {
	b leveldb.Batch
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) Put(key string, value []byte) {
	b.b.Put([]byte(key), value)
}

// PutJSON encodes v and stages it under key.
func (b *Batch) PutJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	b.b.Put([]byte(key), data)
	return nil
}

func (b *Batch) PutUint64(key string, n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	b.b.Put([]byte(key), buf[:])
}

func (b *Batch) Len() int {
	return b.b.Len()
}
