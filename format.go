package recwriter

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/SaveTheRbtz/recwriter/options"
)

// Format selects how WriteRecord frames a record on disk.
//
// The zero value is Prefix, which is also the format forced onto the
// unsorted partition files a PartitionedWriter stages for its post-sort
// pass, regardless of what the caller asked for (see newChild), so they
// can be read back by rawPrefixFileInput. Sorted-writer run and group
// files do not use Format at all: they use the tagged framing of
// writeTagged (input.go).
type Format struct {
	kind formatKind
	// delim is only meaningful when kind == formatDelimited; it stores the
	// delimiter byte. width is only meaningful when kind == formatFixed.
	delim byte
	width uint32
}

type formatKind int

const (
	formatPrefix formatKind = iota
	formatDelimited
	formatFixed
)

// Prefix frames each record as a 4-byte little-endian length prefix
// followed by the payload.
func Prefix() Format { return Format{kind: formatPrefix} }

// Delimited frames each record as the payload followed by a single
// delimiter byte d. Per spec.md §3 the on-disk format code for this is
// -(d+1); that encoding is only computed by frameCode() below, never used
// for in-memory dispatch.
func Delimited(d byte) Format { return Format{kind: formatDelimited, delim: d} }

// Fixed frames each record as exactly w bytes with no additional framing.
// WriteRecord with any other length is a contract violation and panics,
// matching spec.md §4.1 ("a fatal programming error").
func Fixed(w uint32) Format {
	if w == 0 {
		panic("recwriter: Fixed width must be > 0")
	}
	return Format{kind: formatFixed, width: w}
}

// frameCode returns the small integer encoding from spec.md §3. Nothing in
// the package calls it or parses the code back.
func (f Format) frameCode() int {
	switch f.kind {
	case formatPrefix:
		return 0
	case formatDelimited:
		return -(int(f.delim) + 1)
	case formatFixed:
		return int(f.width)
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f.kind {
	case formatPrefix:
		return "prefix"
	case formatDelimited:
		return fmt.Sprintf("delimited(0x%02x)", f.delim)
	case formatFixed:
		return fmt.Sprintf("fixed(%d)", f.width)
	default:
		return "unknown"
	}
}

// frameCodec implements the record-write contract from spec.md §4.1:
// (writer, bytes) -> ok. Selection happens once at sink construction.
type frameCodec interface {
	// writeFramed writes one record's framed bytes to w.
	writeFramed(w io.Writer, rec []byte) error
}

func newFrameCodec(f Format) frameCodec {
	switch f.kind {
	case formatDelimited:
		return delimitedCodec{delim: f.delim}
	case formatFixed:
		return fixedCodec{width: f.width}
	default:
		return prefixCodec{}
	}
}

// prefixCodec writes a 4-byte little-endian length prefix then the payload.
// It is also forced onto unsorted partition staging files; sorted-writer
// run files use writeTagged instead.
type prefixCodec struct{}

func (prefixCodec) writeFramed(w io.Writer, rec []byte) error {
	if uint64(len(rec)) > maxRecordLen {
		return fmt.Errorf("recwriter: record of %d bytes exceeds %d byte limit", len(rec), maxRecordLen)
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(rec)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("recwriter: write length prefix: %w", err)
	}
	if len(rec) == 0 {
		return nil
	}
	if _, err := w.Write(rec); err != nil {
		return fmt.Errorf("recwriter: write record payload: %w", err)
	}
	return nil
}

// delimitedCodec writes the payload followed by a single delimiter byte.
type delimitedCodec struct{ delim byte }

func (c delimitedCodec) writeFramed(w io.Writer, rec []byte) error {
	if len(rec) > 0 {
		if _, err := w.Write(rec); err != nil {
			return fmt.Errorf("recwriter: write record payload: %w", err)
		}
	}
	if _, err := w.Write([]byte{c.delim}); err != nil {
		return fmt.Errorf("recwriter: write delimiter: %w", err)
	}
	return nil
}

// fixedCodec writes exactly width bytes. Any other length is a contract
// violation: the caller constructed the writer with a fixed width and is
// now breaking its own promise, which spec.md §4.1 calls a fatal
// programming error rather than a recoverable I/O failure.
type fixedCodec struct{ width uint32 }

func (c fixedCodec) writeFramed(w io.Writer, rec []byte) error {
	if uint32(len(rec)) != c.width {
		panic(fmt.Sprintf("recwriter: fixed(%d) writer given a %d byte record", c.width, len(rec)))
	}
	if _, err := w.Write(rec); err != nil {
		return fmt.Errorf("recwriter: write fixed record: %w", err)
	}
	return nil
}

// maxRecordLen is the largest record length representable by the 4-byte
// little-endian length prefix, per spec.md §3 (L <= 2^32 - 1).
const maxRecordLen = (1 << 32) - 1

// spec converts a Format to its options.FormatSpec wire representation.
func (f Format) spec() options.FormatSpec {
	switch f.kind {
	case formatDelimited:
		return options.FormatSpec{Kind: options.FormatKindDelimited, Delim: f.delim}
	case formatFixed:
		return options.FormatSpec{Kind: options.FormatKindFixed, Width: f.width}
	default:
		return options.FormatSpec{Kind: options.FormatKindPrefix}
	}
}

// formatFromSpec reconstructs a Format from its wire representation.
func formatFromSpec(s options.FormatSpec) Format {
	switch s.Kind {
	case options.FormatKindDelimited:
		return Delimited(s.Delim)
	case options.FormatKindFixed:
		return Format{kind: formatFixed, width: s.Width}
	default:
		return Prefix()
	}
}

// WithFormat selects the on-disk record format (spec.md §3, default Prefix).
func WithFormat(f Format) WOption {
	return func(o *options.WriterOptions) error {
		o.Format = f.spec()
		return nil
	}
}
