package store

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"
)

// UploadSession is the per-file state between MODEL_UPLOAD and
// UPLOAD_END (spec.md §3/§4.5): an open file handle, a running CRC32
// accumulator, and the target filename. The dispatcher owns at most
// one of these at a time.
type UploadSession struct {
	store    *Store
	filename string
	path     string
	f        *os.File
	crc      uint32
}

// BeginUpload opens filename for writing and starts its CRC
// accumulator. Any existing file of the same name is truncated.
func (s *Store) BeginUpload(filename string) (*UploadSession, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	path := filepath.Join(s.root, filename)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("store: begin upload %s: %w", filename, err)
	}
	return &UploadSession{store: s, filename: filename, path: path, f: f, crc: 0}, nil
}

// WriteChunk appends bytes to the file and folds them into the
// running CRC, acknowledged per chunk by the caller.
func (u *UploadSession) WriteChunk(data []byte) error {
	if _, err := u.f.Write(data); err != nil {
		return fmt.Errorf("store: write chunk to %s: %w", u.filename, err)
	}
	u.crc = crc32.Update(u.crc, crc32.IEEETable, data)
	return nil
}

// Finish closes the file, compares the accumulated CRC to expected,
// and on mismatch deletes the partial file (spec.md §4.5/§7).
func (u *UploadSession) Finish(expected uint32) error {
	size, statErr := fileSize(u.f)
	closeErr := u.f.Close()
	if closeErr != nil {
		return fmt.Errorf("store: close upload %s: %w", u.filename, closeErr)
	}

	if u.crc != expected {
		_ = os.Remove(u.path)
		return fmt.Errorf("store: upload crc mismatch for %s: got %#x want %#x", u.filename, u.crc, expected)
	}

	if statErr == nil {
		u.store.mu.Lock()
		u.store.index[u.filename] = IndexEntry{
			Filename: u.filename,
			Size:     size,
			CRC32:    u.crc,
			ModUnix:  time.Now().Unix(),
		}
		_ = u.store.persistIndex()
		u.store.mu.Unlock()
	}
	return nil
}

// Abort closes and deletes the partial upload without checking a CRC.
// The dispatcher does not call it: a MODEL_UPLOAD that arrives while a
// session is open is rejected and the open session is kept.
func (u *UploadSession) Abort() {
	_ = u.f.Close()
	_ = os.Remove(u.path)
}

func fileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
