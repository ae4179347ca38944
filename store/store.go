// Package store is a persistent, content-addressed cache of code objects.
// Entries are keyed by the SHA-256 of their canonical wire encoding, so a
// code object is stored once however often it is put.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chazu/slotvm/vm"
	"github.com/chazu/slotvm/vm/codec"
	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates that no code object has the requested hash.
var ErrNotFound = errors.New("store: code object not found")

var log = commonlog.GetLogger("slotvm.store")

// Hash identifies a stored code object.
type Hash [32]byte

// String returns the hash in hexadecimal.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// ParseHash parses the hexadecimal form of a hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("store: parse hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("store: parse hash: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashOf returns the key a code object is stored under.
func HashOf(c *vm.Code) (Hash, []byte, error) {
	data, err := codec.Marshal(c)
	if err != nil {
		return Hash{}, nil, err
	}
	return sha256.Sum256(data), data, nil
}

// Store is a SQLite-backed code cache. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache at path. The directory is created when
// missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS code (
		hash BLOB PRIMARY KEY,
		name TEXT NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened code cache %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file the store was opened from.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores c and returns its hash.
func (s *Store) Put(c *vm.Code) (Hash, error) {
	h, data, err := HashOf(c)
	if err != nil {
		return h, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO code (hash, name, data) VALUES (?, ?, ?)",
		h[:], c.Name, data,
	)
	if err != nil {
		return h, fmt.Errorf("saving code object: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Debugf("stored %s as %s (%d bytes)", c.Name, h, len(data))
	}
	return h, nil
}

// Get loads the code object stored under h.
func (s *Store) Get(h Hash) (*vm.Code, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM code WHERE hash = ?", h[:]).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying code object: %w", err)
	}
	if sha256.Sum256(data) != h {
		return nil, fmt.Errorf("%w: %s: content does not match its hash", codec.ErrMalformed, h)
	}
	return codec.Unmarshal(data)
}

// Has reports whether a code object is stored under h.
func (s *Store) Has(h Hash) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM code WHERE hash = ?", h[:]).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying code object: %w", err)
	}
	return n > 0, nil
}

// Len returns the number of stored code objects.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM code").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting code objects: %w", err)
	}
	return n, nil
}

// Entry describes a stored code object.
type Entry struct {
	Hash Hash
	Name string
	Size int
}

// List returns the stored entries ordered by name, then hash.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT hash, name, length(data) FROM code ORDER BY name, hash")
	if err != nil {
		return nil, fmt.Errorf("listing code objects: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var raw []byte
		var e Entry
		if err := rows.Scan(&raw, &e.Name, &e.Size); err != nil {
			return nil, fmt.Errorf("listing code objects: %w", err)
		}
		copy(e.Hash[:], raw)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Load returns the code object in path, consulting the cache for its
// hash first. A CBOR file whose hash is cached is not decoded again;
// listings are assembled and then stored.
func (s *Store) Load(path string) (*vm.Code, Hash, error) {
	if codec.FormatOf(path) == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, Hash{}, err
		}
		h := Hash(sha256.Sum256(data))
		if c, err := s.Get(h); err == nil {
			log.Debugf("cache hit for %s", path)
			return c, h, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, h, err
		}
	}

	c, err := codec.LoadFile(path)
	if err != nil {
		return nil, Hash{}, err
	}
	h, err := s.Put(c)
	return c, h, err
}
