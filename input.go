package recwriter

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// RecordInput is the minimal forward-only record source this package
// needs from the out-of-scope record-input reader (spec.md §1: "the
// input-side record reader ... used for k-way merge and for turning
// outputs back into inputs" is an external collaborator). A full
// general-purpose reader would also support write_prefix/write_delimited
// style framing on the read side, seeking, and arbitrary codecs; this
// package only needs what its own merge and IntoInput operations consume.
type RecordInput interface {
	// Next returns the next record and the tag it was written with, or
	// io.EOF when exhausted.
	Next() (data []byte, tag uint32, err error)
	// Close releases any file handles and unlinks temp files it owns.
	Close() error
}

// tagFramed is the internal framing used for every temp/run file: a
// 4-byte tag, a 4-byte little-endian length, then the payload. This is
// distinct from the public Format enum (prefix/delimited/fixed), which
// has no provision for a tag — intermediate files are never read by
// anything but this package's own merge machinery, so they carry
// whatever the sort needs to reconstruct tie-break order downstream
// (spec.md §9 design note (d): "k-way merge breaks ties by tag and run
// index").
func writeTagged(w io.Writer, tag uint32, rec []byte) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], tag)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(rec)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("recwriter: write run record header: %w", err)
	}
	if len(rec) > 0 {
		if _, err := w.Write(rec); err != nil {
			return fmt.Errorf("recwriter: write run record payload: %w", err)
		}
	}
	return nil
}

// fileInput reads back tagFramed records from a sorted writer's run or
// group file, transparently decompressing LZ4 if the file carries that
// extension.
type fileInput struct {
	f   *os.File
	dec io.Reader
	br  *bufio.Reader

	path    string
	removeOnClose bool
}

func openFileInput(path string, removeOnClose bool) (*fileInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var r io.Reader = f
	if knownExt(path) == ".lz4" {
		r = lz4.NewReader(f)
	} else if knownExt(path) == ".gz" {
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		r = gr
	}
	return &fileInput{
		f:             f,
		dec:           r,
		br:            bufio.NewReaderSize(r, 256*1024),
		path:          path,
		removeOnClose: removeOnClose,
	}, nil
}

func (in *fileInput) Next() ([]byte, uint32, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(in.br, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, 0, err
	}
	tag := binary.LittleEndian.Uint32(hdr[0:])
	n := binary.LittleEndian.Uint32(hdr[4:])
	if n == 0 {
		return nil, tag, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(in.br, buf); err != nil {
		return nil, 0, fmt.Errorf("recwriter: truncated run record: %w", err)
	}
	return buf, tag, nil
}

func (in *fileInput) Close() error {
	err := in.f.Close()
	if in.removeOnClose {
		if rerr := os.Remove(in.path); rerr != nil && !os.IsNotExist(rerr) {
			if err == nil {
				err = rerr
			}
		}
	}
	return err
}

// rawPrefixFileInput reads records written with the public prefix codec
// (length + payload, no tag) back out of a writer's own output file, for
// Normal.IntoInput (spec.md §4.11: "closes the writer and opens the
// produced file as an input").
type rawPrefixFileInput struct {
	f  *os.File
	br *bufio.Reader
}

// OpenRawPrefixInput opens path and reads it back as prefix-formatted
// records. It is the public entry point callers use to turn a plain
// (non-sorted, non-partitioned) writer's output back into a RecordInput
// without going through that writer's own IntoInput.
func OpenRawPrefixInput(path string) (RecordInput, error) {
	return openRawPrefixFileInput(path)
}

func openRawPrefixFileInput(path string) (*rawPrefixFileInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var r io.Reader = f
	switch knownExt(path) {
	case ".lz4":
		r = lz4.NewReader(f)
	case ".gz":
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		r = gr
	}
	return &rawPrefixFileInput{f: f, br: bufio.NewReaderSize(r, 256*1024)}, nil
}

func (in *rawPrefixFileInput) Next() ([]byte, uint32, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(in.br, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, 0, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n == 0 {
		return nil, 0, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(in.br, buf); err != nil {
		return nil, 0, fmt.Errorf("recwriter: truncated record: %w", err)
	}
	return buf, 0, nil
}

func (in *rawPrefixFileInput) Close() error { return in.f.Close() }

// memInput is the zero-copy input over an already-sorted in-memory
// buffer, used when a sorted writer never spilled a single run
// (spec.md §4.10: "return an input directly over the sorted in-memory
// descriptor array").
type memInput struct {
	buf *sortBuffer
	idx int
}

func newMemInput(buf *sortBuffer) *memInput { return &memInput{buf: buf} }

func (m *memInput) Next() ([]byte, uint32, error) {
	if m.idx >= len(m.buf.descriptors) {
		return nil, 0, io.EOF
	}
	d := m.buf.descriptors[m.idx]
	m.idx++
	return m.buf.bytes(d), d.tag, nil
}

func (m *memInput) Close() error { return nil }
