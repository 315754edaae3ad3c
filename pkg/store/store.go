// Package store persists `.aif32` model files in a flat namespace
// (spec.md §6: "flat namespace of model files... no directories
// required") and maintains a CBOR-encoded sidecar index so listing
// doesn't require re-reading every file's header.
package store

import (
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// MaxFilenameLen is the limit named in spec.md §6.
const MaxFilenameLen = 31

const indexFileName = ".sprite-index.cbor"

// ErrFilenameTooLong rejects filenames the wire protocol cannot carry.
var ErrFilenameTooLong = errors.New("store: filename exceeds 31 bytes")

// ErrNotFound is returned when a requested model file does not exist.
var ErrNotFound = errors.New("store: file not found")

// IndexEntry is one sidecar record. It is advisory: if stale or
// missing, callers fall back to reading the file's header directly.
type IndexEntry struct {
	Filename string `cbor:"filename"`
	Size     int64  `cbor:"size"`
	CRC32    uint32 `cbor:"crc32"`
	ModUnix  int64  `cbor:"mod_unix"`
}

// Store is the persisted model namespace rooted at a directory.
type Store struct {
	root string

	mu    sync.Mutex
	index map[string]IndexEntry
}

// New opens (creating if necessary) the model store at root and loads
// its index sidecar, if any. A missing or corrupt index is not fatal —
// List falls back to the directory listing either way.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}
	s := &Store{root: root, index: make(map[string]IndexEntry)}
	s.loadIndex()
	return s, nil
}

func (s *Store) loadIndex() {
	raw, err := os.ReadFile(filepath.Join(s.root, indexFileName))
	if err != nil {
		return
	}
	var entries []IndexEntry
	if err := cbor.Unmarshal(raw, &entries); err != nil {
		return
	}
	for _, e := range entries {
		s.index[e.Filename] = e
	}
}

func (s *Store) persistIndex() error {
	entries := make([]IndexEntry, 0, len(s.index))
	for _, e := range s.index {
		entries = append(entries, e)
	}
	raw, err := cbor.Marshal(entries)
	if err != nil {
		return fmt.Errorf("store: encode index: %w", err)
	}
	return os.WriteFile(filepath.Join(s.root, indexFileName), raw, 0o644)
}

func validateFilename(name string) error {
	if len(name) == 0 || len(name) > MaxFilenameLen {
		return ErrFilenameTooLong
	}
	return nil
}

// List returns model filenames present on disk, sorted, excluding the
// index sidecar itself. The directory listing is authoritative; the
// index is never trusted for existence, only for metadata.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name() == indexFileName {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read loads a model file's full contents.
func (s *Store) Read(filename string) ([]byte, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: read %s: %w", filename, err)
	}
	return data, nil
}

// Save writes data as filename in one shot and refreshes its index
// entry. Used by non-chunked saves (the AI_SAVE background task writes
// in steps instead; see SaveTask).
func (s *Store) Save(filename string, data []byte) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.root, filename), data, 0o644); err != nil {
		return fmt.Errorf("store: save %s: %w", filename, err)
	}
	s.mu.Lock()
	s.index[filename] = IndexEntry{
		Filename: filename,
		Size:     int64(len(data)),
		CRC32:    crc32.ChecksumIEEE(data),
		ModUnix:  time.Now().Unix(),
	}
	err := s.persistIndex()
	s.mu.Unlock()
	return err
}

// Delete removes a model file and its index entry.
func (s *Store) Delete(filename string) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("store: delete %s: %w", filename, err)
	}
	s.mu.Lock()
	delete(s.index, filename)
	persistErr := s.persistIndex()
	s.mu.Unlock()
	return persistErr
}

// Lookup returns the cached index entry for filename, if any.
func (s *Store) Lookup(filename string) (IndexEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[filename]
	return e, ok
}
