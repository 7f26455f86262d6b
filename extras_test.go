package recwriter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtrasDrainOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	toRemove := filepath.Join(dir, "victim")
	require.NoError(t, os.WriteFile(toRemove, []byte("x"), 0o644))
	ack := filepath.Join(dir, "out.ack")

	in := newSliceInput("a", "b")

	var e extras
	e.addInputHandle(in)
	e.addFileToRemove(toRemove)
	e.addAckFile(ack)

	require.NoError(t, e.drain())

	assert.True(t, in.closed, "input handle must be closed before files are removed")
	_, err := os.Stat(toRemove)
	assert.True(t, os.IsNotExist(err), "file-to-remove must be gone")
	_, err = os.Stat(ack)
	assert.NoError(t, err, "ack file must be touched")

	assert.Empty(t, e.items)
}

func TestExtrasDrainMissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	var e extras
	e.addFileToRemove(filepath.Join(t.TempDir(), "never-existed"))
	assert.NoError(t, e.drain())
}

func TestTouchFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ack")
	require.NoError(t, touchFile(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}
