package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File persists every ledger in a single JSON document, rewritten whole on
// each save. Writes go through a temp file and rename so a crash never leaves
// a half-written document.
type File struct {
	mu   sync.Mutex
	path string
}

type fileDoc struct {
	Events map[int64]Snapshot `json:"events"`
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(ctx context.Context, eventID int64) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return Snapshot{}, err
	}

	snap, ok := doc.Events[eventID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	return snap, nil
}

func (f *File) LoadAll(ctx context.Context) ([]Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}

	out := make([]Snapshot, 0, len(doc.Events))
	for _, snap := range doc.Events {
		out = append(out, snap)
	}

	return out, nil
}

func (f *File) Save(ctx context.Context, snap Snapshot) error {
	const op = "persist.File.Save"

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	doc.Events[snap.EventID] = snap

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (f *File) read() (*fileDoc, error) {
	doc := &fileDoc{Events: make(map[int64]Snapshot)}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Events == nil {
		doc.Events = make(map[int64]Snapshot)
	}

	return doc, nil
}
