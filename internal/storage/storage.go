package storage

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"github.com/Gideonrgb101/underflaw-engine/internal/board"
)

// Storage keys
const (
	keyConfig     = "engine_config"
	keyBookPrefix = "book/"
	keyWarmCache  = "warm_cache"
)

// EngineConfig holds the last-used values for the UCI options a client
// commonly sets, so a fresh process starts where the previous session
// left off instead of always booting to hardcoded defaults.
type EngineConfig struct {
	HashMB           int    `json:"hash_mb"`
	Threads          int    `json:"threads"`
	Contempt         int    `json:"contempt"`
	SyzygyPath       string `json:"syzygy_path"`
	SyzygyProbeDepth int    `json:"syzygy_probe_depth"`
}

// DefaultEngineConfig returns the engine's out-of-the-box configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		HashMB:           64,
		Threads:          0, // 0 = runtime.GOMAXPROCS(0)
		Contempt:         0,
		SyzygyProbeDepth: 1,
	}
}

// BookLearning accumulates game outcomes for a move played from a given
// book position, so repeated play can steer future book selection away
// from lines that keep losing.
type BookLearning struct {
	Move   board.Move `json:"move"`
	Wins   int        `json:"wins"`
	Losses int        `json:"losses"`
	Draws  int        `json:"draws"`
}

// Score returns a Polyglot-weight-like score derived from the W/L/D record,
// biased to agree with a plain weighted-random pick when there's no history.
func (bl *BookLearning) Score() int {
	total := bl.Wins + bl.Losses + bl.Draws
	if total == 0 {
		return 100
	}
	return 100 + (bl.Wins-bl.Losses)*100/total
}

// WarmEntry is one transposition-table entry persisted across runs so a
// fresh process can seed its TT with the previous session's root analysis
// instead of starting completely cold.
type WarmEntry struct {
	Key   uint64     `json:"key"`
	Score int        `json:"score"`
	Move  board.Move `json:"move"`
	Depth int        `json:"depth"`
	Flag  int        `json:"flag"`
}

// Storage wraps BadgerDB for persisting engine configuration, opening-book
// learning, and a warm transposition-table cache between processes.
type Storage struct {
	db *badger.DB
}

// NewStorage creates a new storage instance rooted at the platform's
// standard application data directory.
func NewStorage() (*Storage, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig persists the engine configuration.
func (s *Storage) SaveConfig(cfg *EngineConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyConfig), data)
	})
}

// LoadConfig loads the engine configuration, returning defaults if none
// has been saved yet.
func (s *Storage) LoadConfig() (*EngineConfig, error) {
	cfg := DefaultEngineConfig()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyConfig))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, cfg)
		})
	})

	return cfg, err
}

// RecordBookOutcome updates the learned W/L/D record for a move played from
// a book position at the end of a game.
func (s *Storage) RecordBookOutcome(posHash uint64, move board.Move, won, drew bool) error {
	key := []byte(bookKey(posHash, move))

	entry := &BookLearning{Move: move}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, entry)
		})
	})
	if err != nil {
		return err
	}

	switch {
	case drew:
		entry.Draws++
	case won:
		entry.Wins++
	default:
		entry.Losses++
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// LoadBookOutcome loads the learned record for a move played from a book
// position, or a zero-valued record if none has been saved yet.
func (s *Storage) LoadBookOutcome(posHash uint64, move board.Move) (*BookLearning, error) {
	entry := &BookLearning{Move: move}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(bookKey(posHash, move)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, entry)
		})
	})

	return entry, err
}

func bookKey(posHash uint64, move board.Move) string {
	return keyBookPrefix + move.String() + "/" + itoaHex(posHash)
}

func itoaHex(v uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}

// SaveWarmCache persists a snapshot of transposition-table entries worth
// reloading on the next run. Callers typically pass the deepest handful of
// root positions analyzed this session.
func (s *Storage) SaveWarmCache(entries []WarmEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyWarmCache), data)
	})
}

// LoadWarmCache loads the previously saved transposition-table snapshot,
// or an empty slice if none exists.
func (s *Storage) LoadWarmCache() ([]WarmEntry, error) {
	var entries []WarmEntry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyWarmCache))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entries)
		})
	})

	return entries, err
}
