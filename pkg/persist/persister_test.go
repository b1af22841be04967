package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sideFile struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

func TestPersister_SaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := NewPersister[sideFile]("side.1000.1000.42", NewJSONCodec())

	require.NoError(t, p.Save(dir, &sideFile{Label: "hello", Value: 42}))
	assert.FileExists(t, filepath.Join(dir, "side.1000.1000.42.json"))

	got, err := p.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, sideFile{Label: "hello", Value: 42}, *got)
}

func TestPersister_SaveLeavesNoTemporaries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := NewPersister[sideFile]("side", NewJSONCodec())

	require.NoError(t, p.Save(dir, &sideFile{Value: 1}))
	require.NoError(t, p.Save(dir, &sideFile{Value: 2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "side.json", entries[0].Name())

	got, err := p.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Value)
}

func TestPersister_LoadMissing(t *testing.T) {
	t.Parallel()

	_, err := NewPersister[sideFile]("absent", NewJSONCodec()).Load(t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPersister_MoveTo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	quarantine := filepath.Join(dir, "q")
	require.NoError(t, os.Mkdir(quarantine, 0o750))

	from := NewPersister[sideFile]("side.1", NewJSONCodec())
	to := NewPersister[sideFile]("side.2", NewJSONCodec())

	require.NoError(t, from.Save(dir, &sideFile{Label: "moved"}))
	require.NoError(t, from.MoveTo(dir, to, quarantine))

	assert.NoFileExists(t, from.Path(dir))

	got, err := to.Load(quarantine)
	require.NoError(t, err)
	assert.Equal(t, "moved", got.Label)

	// Moving a file that is already gone is fine.
	require.NoError(t, from.MoveTo(dir, to, quarantine))
}

func TestPersister_Remove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := NewPersister[sideFile]("side", NewJSONCodec())

	require.NoError(t, p.Save(dir, &sideFile{}))
	require.NoError(t, p.Remove(dir))
	assert.NoFileExists(t, p.Path(dir))
	require.NoError(t, p.Remove(dir))
}
