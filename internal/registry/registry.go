// Package registry maintains the project database: an append-only JSON list
// of every project that received an initiative index.
//
// File layout (2-space indented, one object per indexed project):
//
//	[
//	  {
//	    "initiative": "ENG",
//	    "index": "002",
//	    "name": "ENG-002 New Feature",
//	    "createdAt": "2024-02-01T09:00:00.000Z",
//	    "createdBy": "Ada",
//	    "createdByEmail": "ada@example.com"
//	  }
//	]
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projindex/internal/logging"
)

// ErrRegistryCorrupted marks database content that is not a JSON list.
var ErrRegistryCorrupted = errors.New("registry file corrupted")

// Record is one entry of the project database.
type Record struct {
	Initiative     string `json:"initiative"`
	Index          string `json:"index"`
	Name           string `json:"name"`
	CreatedAt      string `json:"createdAt"`
	CreatedBy      string `json:"createdBy"`
	CreatedByEmail string `json:"createdByEmail"`
}

// Store reads and appends to the database file at a fixed path.
type Store struct {
	filePath string
	logger   *logging.Logger
}

// NewStore creates a store for the database file at path.
func NewStore(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{filePath: path, logger: logger.Named("registry")}
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.filePath
}

// Append adds records after the existing entries and rewrites the file.
// Existing entries are carried over verbatim, including fields this
// version does not know about. Appending nothing leaves the file untouched.
func (s *Store) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	existing := len(entries)

	for _, rec := range records {
		raw, err := marshalRecord(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.Name, err)
		}
		entries = append(entries, raw)
	}

	if err := s.save(entries); err != nil {
		return err
	}

	s.logger.Info(ctx, "project database updated",
		zap.String("path", s.filePath),
		zap.Int("existing", existing),
		zap.Int("appended", len(records)),
	)
	return nil
}

// Records returns the decoded database entries. Missing or corrupt files
// yield an empty list.
func (s *Store) Records(ctx context.Context) ([]Record, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(entries))
	for i, raw := range entries {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrRegistryCorrupted, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// load reads the raw entries from disk. A missing file, blank content, or
// content that is not a JSON list all count as an empty database.
func (s *Store) load(ctx context.Context) ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project database: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn(ctx, "ignoring unreadable project database",
			zap.String("path", s.filePath),
			zap.Error(fmt.Errorf("%w: %v", ErrRegistryCorrupted, err)),
		)
		return nil, nil
	}
	return entries, nil
}

func marshalRecord(rec Record) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// save writes the entries to disk atomically.
func (s *Store) save(entries []json.RawMessage) error {
	if entries == nil {
		entries = []json.RawMessage{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to marshal project database: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write project database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write project database: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set database permissions: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename project database: %w", err)
	}

	return nil
}
