// Package history keeps a log of the calls of the intercom in a badger database.
package history

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/womat/debug"
)

// Direction tells which side started a call.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	// Resumed is a call which was already in progress when the intercom started.
	// A call where both sides pressed the switch at once is recorded as Incoming.
	Resumed Direction = "resumed"
)

// Outcome tells how a call ended.
type Outcome string

const (
	Answered  Outcome = "answered"
	Missed    Outcome = "missed"
	Cancelled Outcome = "cancelled"
	// Reset is a call ended by an invalid transition of the call state machine.
	Reset Outcome = "reset"
)

// Record is one call.
type Record struct {
	ID        uint64    `msgpack:"id" json:"id"`
	Direction Direction `msgpack:"direction" json:"direction"`
	Started   time.Time `msgpack:"started" json:"started"`
	Answered  time.Time `msgpack:"answered" json:"answered"`
	Ended     time.Time `msgpack:"ended" json:"ended"`
	Outcome   Outcome   `msgpack:"outcome" json:"outcome"`
}

var ErrNotFound = errors.New("call record not found")

var (
	prefix = []byte("call/")
	seqKey = []byte("seq/call")
)

const seqBandwidth = 16

// Store is the badger database of call records.
type Store struct {
	db    *badger.DB
	seq   *badger.Sequence
	limit int
}

// Open opens the database in the directory path, an empty path keeps the records in memory.
// limit is the number of records kept, 0 keeps all records.
func Open(path string, limit int) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(logger{})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open call history %q: %w", path, err)
	}

	seq, err := db.GetSequence(seqKey, seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("call history sequence: %w", err)
	}

	return &Store{db: db, seq: seq, limit: limit}, nil
}

// Close releases the sequence and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		debug.ErrorLog.Printf("release call history sequence: %v", err)
	}
	return s.db.Close()
}

// NextID returns a new record id, ids start at 1.
func (s *Store) NextID() (uint64, error) {
	id, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	return id + 1, nil
}

// Put stores r and removes the oldest records above the limit.
func (s *Store) Put(r Record) error {
	v, err := msgpack.Marshal(&r)
	if err != nil {
		return fmt.Errorf("encode call record %d: %w", r.ID, err)
	}

	if err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(r.ID), v)
	}); err != nil {
		return fmt.Errorf("store call record %d: %w", r.ID, err)
	}

	return s.prune()
}

// Get returns the record id.
func (s *Store) Get(id uint64) (r Record, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return msgpack.Unmarshal(v, &r)
		})
	})
	return
}

// List returns up to n records, newest first. n <= 0 returns all records.
func (s *Store) List(n int) ([]Record, error) {
	records := []Record{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(append([]byte{}, prefix...), 0xff)); it.ValidForPrefix(prefix); it.Next() {
			if n > 0 && len(records) >= n {
				break
			}

			var r Record
			if err := it.Item().Value(func(v []byte) error {
				return msgpack.Unmarshal(v, &r)
			}); err != nil {
				return fmt.Errorf("decode call record %x: %w", it.Item().Key(), err)
			}
			records = append(records, r)
		}
		return nil
	})

	return records, err
}

// prune deletes the oldest records which exceed the limit.
func (s *Store) prune() error {
	if s.limit <= 0 {
		return nil
	}

	var keys [][]byte
	if err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	}); err != nil {
		return err
	}

	if len(keys) <= s.limit {
		return nil
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys[:len(keys)-s.limit] {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// key is the prefix followed by the big endian id, so keys sort by id.
func key(id uint64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], id)
	return k
}

// logger routes the badger log to the debug loggers.
type logger struct{}

func (logger) Errorf(f string, v ...interface{})   { debug.ErrorLog.Printf("badger: "+f, v...) }
func (logger) Warningf(f string, v ...interface{}) { debug.InfoLog.Printf("badger: "+f, v...) }
func (logger) Infof(f string, v ...interface{})    { debug.DebugLog.Printf("badger: "+f, v...) }
func (logger) Debugf(f string, v ...interface{})   { debug.TraceLog.Printf("badger: "+f, v...) }
