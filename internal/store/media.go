// Package store owns the local attachment byte store and the SQLite
// ledger that records every relay through it.
package store

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Media is a filesystem-backed attachment store. Writes to the same
// filename are serialized with a per-name lock and go through a temp
// file plus rename, so readers never observe a partial file even when
// two relays target the same name concurrently.
type Media struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// MediaConfig configures the attachment store.
type MediaConfig struct {
	Dir          string
	MaxSizeBytes int64 // default: 50MB
	Logger       *slog.Logger
}

func NewMedia(cfg MediaConfig) (*Media, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}

	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = 50 * 1024 * 1024
	}

	return &Media{
		dir:      cfg.Dir,
		maxBytes: maxSize,
		logger:   cfg.Logger,
		locks:    map[string]*sync.Mutex{},
	}, nil
}

// Save streams the reader into the store under filename and returns the
// number of bytes written. A failed write leaves no file behind.
func (m *Media) Save(filename string, r io.Reader) (int64, error) {
	name, err := cleanName(filename)
	if err != nil {
		return 0, err
	}

	lock := m.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	tmp, err := os.CreateTemp(m.dir, "."+name+".*")
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(tmp, io.LimitReader(r, m.maxBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("write stream: %w", err)
	}
	if written > m.maxBytes {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("attachment too large: more than %d bytes", m.maxBytes)
	}

	target := filepath.Join(m.dir, name)
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("publish file: %w", err)
	}

	m.logger.Info("attachment stored", "filename", name, "size", written)
	return written, nil
}

// Open returns a reader over a stored attachment. The caller closes it.
func (m *Media) Open(filename string) (*os.File, error) {
	name, err := cleanName(filename)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(m.dir, name))
}

// Path returns the on-disk location a filename maps to.
func (m *Media) Path(filename string) (string, error) {
	name, err := cleanName(filename)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.dir, name), nil
}

func (m *Media) nameLock(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// cleanName rejects names that would escape the store directory.
func cleanName(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("empty filename")
	}
	if strings.ContainsAny(filename, `/\`) || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filename, nil
}
