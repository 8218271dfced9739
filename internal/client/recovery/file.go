// Package recovery remembers the id of the customer's active order across restarts.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

type record struct {
	OrderID string `json:"orderId"`
}

// File stores the active order id as a small JSON document.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Load returns the stored order id, or "" when nothing is stored.
func (f *File) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read recovery file: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", fmt.Errorf("decode recovery file: %w", err)
	}
	return rec.OrderID, nil
}

// Save replaces the stored id. Saving "" clears it.
func (f *File) Save(orderID string) error {
	if orderID == "" {
		return f.Clear()
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.Marshal(record{OrderID: orderID})
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create recovery dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".order-*.json")
	if err != nil {
		return fmt.Errorf("create recovery file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write recovery file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write recovery file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace recovery file: %w", err)
	}
	return nil
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove recovery file: %w", err)
	}
	return nil
}
