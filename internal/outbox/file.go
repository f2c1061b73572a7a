package outbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

// FileSlot keeps the pending write as a JSON file. Operations are
// serialized within the process.
type FileSlot struct {
	Path string

	mu sync.Mutex
}

func NewFileSlot(path string) *FileSlot {
	return &FileSlot{Path: path}
}

func (s *FileSlot) Put(ctx context.Context, w model.PendingWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encode(w)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create outbox dir: %w", err)
	}

	// write then rename, so a crash never leaves half a record behind
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write pending write: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to store pending write: %w", err)
	}
	return nil
}

func (s *FileSlot) Get(ctx context.Context) (*model.PendingWrite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileSlot) read() (*model.PendingWrite, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pending write: %w", err)
	}
	return decode(data)
}

func (s *FileSlot) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove()
}

func (s *FileSlot) ClearIf(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.read()
	if err != nil {
		return false, err
	}
	if w == nil || w.ID != id {
		return false, nil
	}
	if err := s.remove(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileSlot) remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear pending write: %w", err)
	}
	return nil
}
