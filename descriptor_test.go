package recwriter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortBufferAddAndFits(t *testing.T) {
	t.Parallel()

	b := newSortBuffer(64)
	assert.True(t, b.isEmpty())
	assert.True(t, b.fits(10))

	b.add([]byte("hello"), 7)
	require.Equal(t, 1, b.numRecords())
	assert.False(t, b.isEmpty())
	assert.Equal(t, []byte("hello"), b.bytes(b.descriptors[0]))
	assert.Equal(t, uint32(7), b.descriptors[0].tag)
}

func TestSortBufferFitsBecomesFalseWhenFull(t *testing.T) {
	t.Parallel()

	b := newSortBuffer(32)
	for b.fits(4) {
		b.add([]byte("abcd"), 0)
	}
	assert.False(t, b.fits(4))
	assert.Greater(t, b.numRecords(), 0)
}

func TestSortBufferSortDescriptors(t *testing.T) {
	t.Parallel()

	b := newSortBuffer(256)
	for _, rec := range []string{"cherry", "apple", "banana"} {
		b.add([]byte(rec), 0)
	}
	b.sortDescriptors(func(a, c []byte) int { return bytes.Compare(a, c) })

	var got []string
	for _, d := range b.descriptors {
		got = append(got, string(b.bytes(d)))
	}
	assert.Equal(t, []string{"apple", "banana", "cherry"}, got)
}

func TestSortBufferReset(t *testing.T) {
	t.Parallel()

	b := newSortBuffer(64)
	b.add([]byte("x"), 0)
	require.False(t, b.isEmpty())

	b.reset()
	assert.True(t, b.isEmpty())
	assert.Equal(t, len(b.slab), b.remaining())
}
