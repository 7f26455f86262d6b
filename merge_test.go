package recwriter

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceInput is an in-memory RecordInput used to drive merge tests
// without touching the filesystem.
type sliceInput struct {
	recs [][]byte
	tags []uint32
	idx  int
	closed bool
}

func newSliceInput(recs ...string) *sliceInput {
	s := &sliceInput{}
	for _, r := range recs {
		s.recs = append(s.recs, []byte(r))
		s.tags = append(s.tags, 0)
	}
	return s
}

func (s *sliceInput) Next() ([]byte, uint32, error) {
	if s.idx >= len(s.recs) {
		return nil, 0, io.EOF
	}
	rec, tag := s.recs[s.idx], s.tags[s.idx]
	s.idx++
	return rec, tag, nil
}

func (s *sliceInput) Close() error {
	s.closed = true
	return nil
}

func byteCompare(a, b []byte) int { return bytes.Compare(a, b) }

func TestMergeInputRawOrdering(t *testing.T) {
	t.Parallel()

	a := newSliceInput("b", "d", "f")
	b := newSliceInput("a", "c", "e")

	m, err := newMergeInput([]RecordInput{a, b}, byteCompare, nil)
	require.NoError(t, err)

	var got []string
	for {
		data, _, err := m.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, string(data))
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, got)

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestMergeInputBreaksTiesByTagThenSource(t *testing.T) {
	t.Parallel()

	a := newSliceInput("x")
	a.tags[0] = 5
	b := newSliceInput("x")
	b.tags[0] = 2

	m, err := newMergeInput([]RecordInput{a, b}, byteCompare, nil)
	require.NoError(t, err)

	_, tag, err := m.Next()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tag, "lower tag must win a tie on equal bytes")
}

func TestMergeInputWithReducer(t *testing.T) {
	t.Parallel()

	a := newSliceInput("k1", "k2")
	b := newSliceInput("k1", "k3")

	countReducer := func(tag uint32, group [][]byte) [][]byte {
		if len(group) < 2 {
			return group
		}
		return [][]byte{[]byte("merged:" + string(group[0]))}
	}

	m, err := newMergeInput([]RecordInput{a, b}, byteCompare, countReducer)
	require.NoError(t, err)

	var got []string
	for {
		data, _, err := m.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, string(data))
	}
	assert.Equal(t, []string{"merged:k1", "k2", "k3"}, got)
}

func TestMergeHeapOrdering(t *testing.T) {
	t.Parallel()

	h := mergeHeap{cmp: byteCompare}
	h.push(mergeItem{data: []byte("c"), source: 0})
	h.push(mergeItem{data: []byte("a"), source: 1})
	h.push(mergeItem{data: []byte("b"), source: 2})

	var order []string
	for h.Len() > 0 {
		order = append(order, string(h.pop().data))
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}
