package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Persister reads and writes one named side file of type T.
type Persister[T any] struct {
	name  string
	codec Codec
}

// NewPersister creates a persister for the file name (without extension).
func NewPersister[T any](name string, codec Codec) *Persister[T] {
	return &Persister[T]{name: name, codec: codec}
}

// Name returns the file name without extension.
func (p *Persister[T]) Name() string { return p.name }

// Path returns the file's path inside dir.
func (p *Persister[T]) Path(dir string) string {
	return filepath.Join(dir, p.name+p.codec.Extension())
}

// Save writes state into dir.
func (p *Persister[T]) Save(dir string, state *T) error {
	return SaveState(dir, p.name, p.codec, state)
}

// Load reads the state from dir. A missing file yields ErrNotFound.
func (p *Persister[T]) Load(dir string) (*T, error) {
	var state T

	err := LoadState(dir, p.name, p.codec, &state)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// MoveTo renames the file in dir to the name of other, possibly in another
// directory. A missing source is not an error.
func (p *Persister[T]) MoveTo(dir string, other *Persister[T], otherDir string) error {
	err := os.Rename(p.Path(dir), other.Path(otherDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("move %s: %w", p.name, err)
	}

	return nil
}

// Remove deletes the file from dir. A missing file is not an error.
func (p *Persister[T]) Remove(dir string) error {
	err := os.Remove(p.Path(dir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p.name, err)
	}

	return nil
}
