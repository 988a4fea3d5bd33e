// Package filestore persists key-value pairs in a single JSON document on disk.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Fallenproud/create.xyzdashboard/internal/storage"
)

// Store is a JSON-file backed storage.Store. Compact JSON values are embedded
// verbatim so the document stays readable; anything else is stored as a JSON string.
type Store struct {
	path string
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// Open loads the document at path, creating it when missing.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: make(map[string]json.RawMessage)}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("open file store %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.persistLocked()
		}
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc != nil {
		s.data = doc
	}
	return nil
}

// persistLocked writes to a sibling temp file and renames it over the document.
// The document is compact and unescaped so raw values read back byte for byte.
func (s *Store) persistLocked() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.data); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return decodeValue(raw), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = encodeValue(value)
	return s.persistLocked()
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.persistLocked()
}

func (s *Store) Ping(context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *Store) Close() error { return nil }

func encodeValue(value []byte) json.RawMessage {
	if len(value) > 0 && value[0] != '"' && json.Valid(value) {
		var compact bytes.Buffer
		if err := json.Compact(&compact, value); err == nil && bytes.Equal(compact.Bytes(), value) {
			return append(json.RawMessage(nil), value...)
		}
	}
	quoted, _ := json.Marshal(string(value))
	return quoted
}

func decodeValue(raw json.RawMessage) []byte {
	if len(raw) > 0 && raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			return []byte(str)
		}
	}
	return append([]byte(nil), raw...)
}
