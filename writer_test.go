package recwriter

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaveTheRbtz/recwriter/options"
)

func readAllRecords(t *testing.T, path string) []string {
	t.Helper()
	in, err := OpenRawPrefixInput(path)
	require.NoError(t, err)
	defer in.Close()

	var got []string
	for {
		data, _, err := in.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, string(data))
	}
	return got
}

func TestNormalWriterPrefixRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(path)
	require.NoError(t, err)

	for _, rec := range []string{"one", "two", "three"} {
		require.NoError(t, w.WriteRecord([]byte(rec), 0))
	}
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"one", "two", "three"}, readAllRecords(t, path))
}

func TestNormalWriterSafeModePublishesOnClose(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out")
	w, err := NewWriter(path, WithSafeMode())
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord([]byte("x"), 0))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "final path must not exist before Close")

	require.NoError(t, w.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err, "final path must exist after Close")

	_, err = os.Stat(safeName(path))
	assert.True(t, os.IsNotExist(err), "staging path must be gone after rename")
}

func TestNormalWriterAckFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(path, WithAckFile())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = os.Stat(ackName(path))
	assert.NoError(t, err)
}

func TestNormalWriterCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestNormalWriterIntoInputRejectsNonPrefixFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	w, err := NewNormalWriter(path, mustWriterOptions(t, WithFormat(Delimited('\n'))))
	require.NoError(t, err)
	defer w.Close()

	_, err = w.IntoInput()
	assert.Error(t, err)
}

func TestNormalWriterIntoInputIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	w, err := NewNormalWriter(path, mustWriterOptions(t))
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord([]byte("a"), 0))

	in, err := w.IntoInput()
	require.NoError(t, err)
	require.NotNil(t, in)
	defer in.Close()

	in2, err := w.IntoInput()
	require.NoError(t, err)
	assert.Nil(t, in2)
}

func TestValidateWriterOptionsRejectsConflicts(t *testing.T) {
	t.Parallel()

	o := mustWriterOptions(t, WithSafeMode(), WithAppend())
	err := validateWriterOptions("/tmp/out", &o)
	assert.Error(t, err)

	o = mustWriterOptions(t)
	err = validateWriterOptions("", &o)
	assert.Error(t, err, "no path and no external fd must be rejected")
}

// mustWriterOptions resolves a set of WOptions and fails the test on error.
func mustWriterOptions(t *testing.T, opts ...WOption) options.WriterOptions {
	t.Helper()
	o, err := buildWriterOptions(opts)
	require.NoError(t, err)
	return o
}
