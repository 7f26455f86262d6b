package recwriter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaveTheRbtz/recwriter/options"
)

func newTestSortOptions(opts ...SOption) options.SortOptions {
	var so options.SortOptions
	so.SetDefault()
	for _, opt := range opts {
		if err := opt(&so); err != nil {
			panic(err)
		}
	}
	return so
}

func TestSortedWriterSortsInMemoryRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	w, err := NewSorted(path, []SOption{WithCompare(byteCompare)})
	require.NoError(t, err)

	for _, rec := range []string{"banana", "apple", "cherry"} {
		require.NoError(t, w.WriteRecord([]byte(rec), 0))
	}
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"apple", "banana", "cherry"}, readAllRecords(t, path))
}

func TestSortedWriterRecordsAccepted(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	sw, err := NewSortedWriter(path, mustWriterOptions(t), newTestSortOptions(WithCompare(byteCompare)))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, sw.WriteRecord([]byte(fmt.Sprintf("r%d", i)), 0))
	}
	assert.EqualValues(t, 5, sw.RecordsAccepted())
	require.NoError(t, sw.Close())
}

func TestSortedWriterSpillsWhenBufferFills(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	wopts := mustWriterOptions(t, WithBufferSize(64))
	sw, err := NewSortedWriter(path, wopts, newTestSortOptions(WithCompare(byteCompare), WithLZ4Tmp(false)))
	require.NoError(t, err)

	recs := []string{"f", "e", "d", "c", "b", "a"}
	for _, rec := range recs {
		require.NoError(t, sw.WriteRecord([]byte(rec), 0))
	}
	require.NoError(t, sw.Close())

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, readAllRecords(t, path))
}

func TestSortedWriterSpillsWithBackgroundSpillThread(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		useExtraThread bool
		numPerGroup    int
	}{
		{name: "flat spills, no extra thread", useExtraThread: false, numPerGroup: 0},
		{name: "flat spills, extra thread", useExtraThread: true, numPerGroup: 0},
		{name: "group merge, extra thread", useExtraThread: true, numPerGroup: 2},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "out")
			wopts := mustWriterOptions(t, WithBufferSize(64))
			sopts := []SOption{WithCompare(byteCompare), WithLZ4Tmp(false)}
			if tc.useExtraThread {
				sopts = append(sopts, WithExtraThread())
			}
			if tc.numPerGroup > 0 {
				sopts = append(sopts, WithNumPerGroup(tc.numPerGroup))
			}
			sw, err := NewSortedWriter(path, wopts, newTestSortOptions(sopts...))
			require.NoError(t, err)

			recs := []string{"h", "g", "f", "e", "d", "c", "b", "a"}
			for _, rec := range recs {
				require.NoError(t, sw.WriteRecord([]byte(rec), 0))
			}
			require.EqualValues(t, len(recs), sw.RecordsAccepted())
			require.NoError(t, sw.Close())

			assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h"}, readAllRecords(t, path))
		})
	}
}

func TestSortedWriterGroupMerge(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	wopts := mustWriterOptions(t, WithBufferSize(48))
	sw, err := NewSortedWriter(path, wopts, newTestSortOptions(
		WithCompare(byteCompare), WithLZ4Tmp(false), WithNumPerGroup(2)))
	require.NoError(t, err)

	recs := []string{"h", "g", "f", "e", "d", "c", "b", "a"}
	for _, rec := range recs {
		require.NoError(t, sw.WriteRecord([]byte(rec), 0))
	}
	require.NoError(t, sw.Close())

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h"}, readAllRecords(t, path))
}

func TestSortedWriterOversizedRecordBypassesBuffer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	wopts := mustWriterOptions(t, WithBufferSize(32))
	sw, err := NewSortedWriter(path, wopts, newTestSortOptions(WithCompare(byteCompare), WithLZ4Tmp(false)))
	require.NoError(t, err)

	require.NoError(t, sw.WriteRecord([]byte("small"), 0))
	huge := bytes.Repeat([]byte("z"), 256)
	require.NoError(t, sw.WriteRecord(huge, 0))
	require.NoError(t, sw.Close())

	got := readAllRecords(t, path)
	require.Len(t, got, 2)
	assert.Contains(t, got, "small")
	assert.Contains(t, got, string(huge))
}

func TestSortedWriterCleansUpResidualRunFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	wopts := mustWriterOptions(t, WithBufferSize(24))
	sw, err := NewSortedWriter(path, wopts, newTestSortOptions(WithCompare(byteCompare), WithLZ4Tmp(false)))
	require.NoError(t, err)

	for _, rec := range []string{"e", "d", "c", "b", "a"} {
		require.NoError(t, sw.WriteRecord([]byte(rec), 0))
	}
	require.NoError(t, sw.Close())

	matches, err := filepath.Glob(path + "_*_tmp*")
	require.NoError(t, err)
	assert.Empty(t, matches, "no run files should remain after Close")
}

func TestSortedWriterReducerCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	reducer := func(tag uint32, group [][]byte) [][]byte {
		return [][]byte{[]byte(fmt.Sprintf("%s x%d", group[0], len(group)))}
	}

	w, err := NewSorted(path, []SOption{WithCompare(byteCompare), WithReducer(reducer)})
	require.NoError(t, err)

	for _, rec := range []string{"a", "b", "a", "a", "b"} {
		require.NoError(t, w.WriteRecord([]byte(rec), 0))
	}
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"a x3", "b x2"}, readAllRecords(t, path))
}

func TestSortedWriterIntoInputIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	sw, err := NewSortedWriter(path, mustWriterOptions(t), newTestSortOptions(WithCompare(byteCompare)))
	require.NoError(t, err)
	require.NoError(t, sw.WriteRecord([]byte("a"), 0))

	in, err := sw.IntoInput()
	require.NoError(t, err)
	require.NotNil(t, in)
	defer in.Close()

	in2, err := sw.IntoInput()
	require.NoError(t, err)
	assert.Nil(t, in2)
}

func TestNewSortedWriterRequiresCompare(t *testing.T) {
	t.Parallel()

	_, err := NewSortedWriter(filepath.Join(t.TempDir(), "out"), mustWriterOptions(t), options.SortOptions{})
	require.Error(t, err)
	assert.True(t, options.IsConfigError(err))
}

func TestSortedWriterAckFileWrittenOnClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out")
	sw, err := NewSortedWriter(path, mustWriterOptions(t, WithAckFile()), newTestSortOptions(WithCompare(byteCompare)))
	require.NoError(t, err)
	require.NoError(t, sw.WriteRecord([]byte("a"), 0))
	require.NoError(t, sw.Close())

	_, err = os.Stat(ackName(path))
	assert.NoError(t, err)
}
