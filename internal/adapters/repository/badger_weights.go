package repository

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/crewscore/internal/domain/model"
	"github.com/okian/crewscore/pkg/metrics"
)

// Key layout for the badger-backed weight store.
const (
	weightKeyPrefix  = "weight:"
	activePointerKey = "weights:active"
	versionSeqKey    = "weights:next_version"
)

// BadgerWeightStore implements WeightStore on BadgerDB, giving weight
// versions durability across restarts. Every state change runs inside a
// single badger transaction, so the candidate-to-active swap is atomic:
// a crash can never leave zero or two active versions on disk.
type BadgerWeightStore struct {
	db *badger.DB
}

// NewBadgerWeightStore creates a weight store on an open badger handle.
func NewBadgerWeightStore(db *badger.DB) *BadgerWeightStore {
	return &BadgerWeightStore{db: db}
}

// OpenBadgerWeightStore opens (or creates) a badger database at path and
// wraps it in a weight store. The caller owns closing via Close.
func OpenBadgerWeightStore(path string) (*BadgerWeightStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open weight store: %w", err)
	}
	return &BadgerWeightStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerWeightStore) Close() error {
	return s.db.Close()
}

// Create inserts a new draft version with the next sequence number.
func (s *BadgerWeightStore) Create(_ context.Context, ws model.WeightSet, notes string) (model.ModelWeight, error) {
	if err := ws.Validate(); err != nil {
		return model.ModelWeight{}, err
	}

	var created model.ModelWeight
	err := s.db.Update(func(txn *badger.Txn) error {
		version, err := nextVersion(txn)
		if err != nil {
			return err
		}
		created = model.ModelWeight{
			Version:   version,
			Weights:   ws.Clone(),
			State:     model.WeightDraft,
			CreatedAt: time.Now().UTC(),
			Notes:     notes,
		}
		return putWeight(txn, created)
	})
	if err != nil {
		return model.ModelWeight{}, fmt.Errorf("create weight version: %w", err)
	}
	return created, nil
}

// Get returns one version.
func (s *BadgerWeightStore) Get(_ context.Context, version int64) (model.ModelWeight, error) {
	var mw model.ModelWeight
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		mw, err = getWeight(txn, version)
		return err
	})
	if err != nil {
		return model.ModelWeight{}, err
	}
	return mw, nil
}

// Active resolves the active pointer. A pointer to a row not marked active,
// or a missing pointer while a row claims activity, indicates a transaction
// bug and is surfaced as ErrMultipleActive rather than repaired.
func (s *BadgerWeightStore) Active(_ context.Context) (model.ModelWeight, error) {
	var mw model.ModelWeight
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(activePointerKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoActiveVersion
		}
		if err != nil {
			return fmt.Errorf("read active pointer: %w", err)
		}
		var version int64
		if err := item.Value(func(val []byte) error {
			version = int64(binary.BigEndian.Uint64(val))
			return nil
		}); err != nil {
			return err
		}
		mw, err = getWeight(txn, version)
		if err != nil {
			return err
		}
		if !mw.IsActive {
			return ErrMultipleActive
		}
		return nil
	})
	if err != nil {
		return model.ModelWeight{}, err
	}
	return mw, nil
}

// Promote moves a draft to candidate.
func (s *BadgerWeightStore) Promote(_ context.Context, version int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		mw, err := getWeight(txn, version)
		if err != nil {
			return err
		}
		if mw.IsFrozen {
			return ErrVersionFrozen
		}
		if mw.State != model.WeightDraft {
			return ErrNotPromotable
		}
		mw.State = model.WeightCandidate
		return putWeight(txn, mw)
	})
}

// Activate swaps the active pointer in one transaction: supersede the old
// row, mark the new row active, repoint. Frozen versions always fail.
func (s *BadgerWeightStore) Activate(_ context.Context, version int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		next, err := getWeight(txn, version)
		if err != nil {
			return err
		}
		if next.IsFrozen {
			return ErrVersionFrozen
		}
		if next.IsActive {
			return nil
		}

		if item, err := txn.Get([]byte(activePointerKey)); err == nil {
			var prevVersion int64
			if err := item.Value(func(val []byte) error {
				prevVersion = int64(binary.BigEndian.Uint64(val))
				return nil
			}); err != nil {
				return err
			}
			prev, err := getWeight(txn, prevVersion)
			if err != nil {
				return err
			}
			prev.IsActive = false
			prev.State = model.WeightSuperseded
			if err := putWeight(txn, prev); err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("read active pointer: %w", err)
		}

		next.IsActive = true
		next.State = model.WeightActive
		if err := putWeight(txn, next); err != nil {
			return err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(version))
		return txn.Set([]byte(activePointerKey), buf)
	})
	if err == nil {
		metrics.RecordWeightActivation()
	}
	return err
}

// Freeze permanently excludes a version from activation.
func (s *BadgerWeightStore) Freeze(_ context.Context, version int64, notes string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		mw, err := getWeight(txn, version)
		if err != nil {
			return err
		}
		if mw.IsFrozen {
			return nil
		}
		now := time.Now().UTC()
		mw.IsFrozen = true
		mw.FrozenAt = &now
		mw.FrozenNotes = notes
		return putWeight(txn, mw)
	})
}

// List returns every version, oldest first.
func (s *BadgerWeightStore) List(_ context.Context) ([]model.ModelWeight, error) {
	var out []model.ModelWeight
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(weightKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var mw model.ModelWeight
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &mw)
			}); err != nil {
				return err
			}
			out = append(out, mw)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list weight versions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func weightKey(version int64) []byte {
	buf := make([]byte, len(weightKeyPrefix)+8)
	copy(buf, weightKeyPrefix)
	binary.BigEndian.PutUint64(buf[len(weightKeyPrefix):], uint64(version))
	return buf
}

func getWeight(txn *badger.Txn, version int64) (model.ModelWeight, error) {
	item, err := txn.Get(weightKey(version))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.ModelWeight{}, ErrVersionNotFound
	}
	if err != nil {
		return model.ModelWeight{}, fmt.Errorf("get weight version %d: %w", version, err)
	}
	var mw model.ModelWeight
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &mw)
	}); err != nil {
		return model.ModelWeight{}, fmt.Errorf("decode weight version %d: %w", version, err)
	}
	return mw, nil
}

func putWeight(txn *badger.Txn, mw model.ModelWeight) error {
	data, err := json.Marshal(mw)
	if err != nil {
		return fmt.Errorf("encode weight version %d: %w", mw.Version, err)
	}
	return txn.Set(weightKey(mw.Version), data)
}

func nextVersion(txn *badger.Txn) (int64, error) {
	var version int64 = 1
	item, err := txn.Get([]byte(versionSeqKey))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		// First version.
	case err != nil:
		return 0, fmt.Errorf("read version sequence: %w", err)
	default:
		if err := item.Value(func(val []byte) error {
			version = int64(binary.BigEndian.Uint64(val))
			return nil
		}); err != nil {
			return 0, err
		}
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version+1))
	if err := txn.Set([]byte(versionSeqKey), buf); err != nil {
		return 0, fmt.Errorf("advance version sequence: %w", err)
	}
	return version, nil
}
