// Package ledger persists crash-recovery runner progress in a bbolt file so
// an interrupted runner resumes from the phase and start index it reached,
// keeping the failures it already recorded.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketMeta     = "meta"
	bucketFailures = "failures"

	keyState = "state"
)

// ErrTargetMismatch is returned by Resume when the ledger belongs to a
// different target.
var ErrTargetMismatch = errors.New("ledger was written for a different target")

// State is the resumable position of a runner.
type State struct {
	Target string `msgpack:"target"`
	// Phase is the number of the next phase to launch, starting at 1.
	Phase int `msgpack:"phase"`
	// Start is the CompileTheWorldStartAt value of the next phase.
	Start int64 `msgpack:"start"`
	Done  bool  `msgpack:"done"`
}

// Failure is one crashed phase.
type Failure struct {
	// Class is the last class the phase started, with '/' separators.
	// Empty when no progress line was found.
	Class    string `msgpack:"class,omitempty"`
	Index    int64  `msgpack:"index"`
	Phase    int    `msgpack:"phase"`
	ExitCode int    `msgpack:"exit_code"`
	Signal   string `msgpack:"signal,omitempty"`
}

// Ledger is a bbolt-backed store of one runner's state.
type Ledger struct {
	db *bolt.DB
}

var initDB = map[string]func(*bolt.Tx) error{
	bucketMeta: func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		return err
	},
	bucketFailures: func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketFailures))
		return err
	},
}

// Open opens or creates the ledger file at path.
func Open(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for name, fn := range initDB {
			if err := fn(tx); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// Close releases the ledger file.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Save stores s as the current state.
func (l *Ledger) Save(s State) error {
	data, err := msgpack.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to encode ledger state: %w", err)
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketMeta)).Put([]byte(keyState), data)
	})
}

// Load returns the stored state. ok is false on a fresh ledger.
func (l *Ledger) Load() (s State, ok bool, err error) {
	err = l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketMeta)).Get([]byte(keyState))
		if data == nil {
			return nil
		}
		ok = true
		return msgpack.Unmarshal(data, &s)
	})
	if err != nil {
		return State{}, false, fmt.Errorf("failed to read ledger state: %w", err)
	}
	return s, ok, nil
}

// Resume returns the stored state for target. A fresh ledger yields a
// state at phase 1 starting from start.
func (l *Ledger) Resume(target string, start int64) (State, error) {
	s, ok, err := l.Load()
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{Target: target, Phase: 1, Start: start}, nil
	}
	if s.Target != target {
		return State{}, fmt.Errorf("%w: have %q, want %q", ErrTargetMismatch, s.Target, target)
	}
	return s, nil
}

// AddFailure appends f to the failure list.
func (l *Ledger) AddFailure(f Failure) error {
	data, err := msgpack.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to encode failure: %w", err)
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketFailures))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), data)
	})
}

// Failures returns the recorded failures in insertion order.
func (l *Ledger) Failures() ([]Failure, error) {
	var failures []Failure
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketFailures)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var f Failure
			if err := msgpack.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("failure #%d: %w", unmarshalSeq(k), err)
			}
			failures = append(failures, f)
		}
		return nil
	})
	return failures, err
}

// Reset drops the state and all failures.
func (l *Ledger) Reset() error {
	return l.db.Update(func(tx *bolt.Tx) error {
		for name, fn := range initDB {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
