package recwriter

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixCodecRoundTrip(t *testing.T) {
	t.Parallel()

	for _, rec := range [][]byte{nil, []byte(""), []byte("a"), bytes.Repeat([]byte("x"), 4096)} {
		var buf bytes.Buffer
		require.NoError(t, prefixCodec{}.writeFramed(&buf, rec))

		n := binary.LittleEndian.Uint32(buf.Bytes()[:4])
		assert.Equal(t, uint32(len(rec)), n)
		assert.Equal(t, string(rec), string(buf.Bytes()[4:]))
	}
}

func TestDelimitedCodec(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, delimitedCodec{delim: '\n'}.writeFramed(&buf, []byte("hello")))
	assert.Equal(t, []byte("hello\n"), buf.Bytes())
}

func TestFixedCodec(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, fixedCodec{width: 3}.writeFramed(&buf, []byte("abc")))
	assert.Equal(t, []byte("abc"), buf.Bytes())

	assert.Panics(t, func() {
		_ = fixedCodec{width: 3}.writeFramed(&buf, []byte("ab"))
	})
}

func TestFormatString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "prefix", Prefix().String())
	assert.Equal(t, "delimited(0x0a)", Delimited('\n').String())
	assert.Equal(t, "fixed(8)", Fixed(8).String())
}

func TestFormatSpecRoundTrip(t *testing.T) {
	t.Parallel()

	for _, f := range []Format{Prefix(), Delimited(','), Fixed(16)} {
		got := formatFromSpec(f.spec())
		assert.Equal(t, f, got)
	}
}

func TestFixedZeroWidthPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { Fixed(0) })
}
