package switches

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	fileFormatVersion = 1
	fileDirPerm       = 0750
	filePerm          = 0600
)

// fileDocument is the on-disk layout of the file backend.
type fileDocument struct {
	Version  int                        `json:"version"`
	Switches map[string]json.RawMessage `json:"switches"`
}

// FileRepository keeps every switch in one JSON document.
//
// Each Save rewrites the whole document through a temp file, fsync and
// rename, so the file on disk is always a complete snapshot. Saves are
// serialized because they share the file.
type FileRepository struct {
	path string

	mu      sync.Mutex
	current map[string]Record
}

// NewFileRepository creates the parent directory if needed.
func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), fileDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &FileRepository{path: path, current: make(map[string]Record)}, nil
}

// LoadAll reads the document. A missing file is an empty store; an
// unparseable file or record is reported under ErrCorruptState.
func (r *FileRepository) LoadAll(_ context.Context) (map[string]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string]Record{}, fmt.Errorf("%w: %s: %w", ErrCorruptState, r.path, err)
	}

	records := make(map[string]Record, len(doc.Switches))
	var corrupt []error
	for id, raw := range doc.Switches {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			corrupt = append(corrupt, fmt.Errorf("switch %s: %w", id, err))
			continue
		}
		if rec.ID != id {
			corrupt = append(corrupt, fmt.Errorf("switch %s: record carries id %q", id, rec.ID))
			continue
		}
		if rec.Attributes == nil {
			rec.Attributes = Attributes{}
		}
		if err := rec.Validate(); err != nil {
			corrupt = append(corrupt, err)
			continue
		}
		records[id] = rec
	}

	for id, rec := range records {
		r.current[id] = rec
	}
	return records, corruptError(corrupt)
}

// Save replaces the document with one that includes rec.
func (r *FileRepository) Save(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := fileDocument{
		Version:  fileFormatVersion,
		Switches: make(map[string]json.RawMessage, len(r.current)+1),
	}
	for id, existing := range r.current {
		if id == rec.ID {
			continue
		}
		raw, err := json.Marshal(existing)
		if err != nil {
			return fmt.Errorf("marshalling switch %s: %w", id, err)
		}
		doc.Switches[id] = raw
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling switch %s: %w", rec.ID, err)
	}
	doc.Switches[rec.ID] = raw

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling state file: %w", err)
	}
	if err := writeFileAtomic(r.path, data); err != nil {
		return err
	}

	r.current[rec.ID] = rec
	return nil
}

// Close is a no-op; every Save is already durable.
func (r *FileRepository) Close() error {
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory, syncs
// it, renames it over path and syncs the directory.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name()) //nolint:errcheck // Best effort cleanup on error path
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Write error takes precedence
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Sync error takes precedence
		return fmt.Errorf("syncing temp state file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), filePerm); err != nil {
		return fmt.Errorf("setting state file permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}

	if d, dirErr := os.Open(dir); dirErr == nil {
		_ = d.Sync()  //nolint:errcheck // Not supported on every filesystem
		_ = d.Close() //nolint:errcheck // Read-only handle
	}
	return nil
}
