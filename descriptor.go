package recwriter

import "sort"

// descriptorOverhead approximates sizeof(descriptor) + the 4-byte slack
// spec.md §4.7 reserves for the length prefix a later spill will need:
// offset (int32) + length (uint32) + tag (uint32) + slack.
const descriptorOverhead = 12 + 4

// descriptor mirrors spec.md §9's "(offset, length, tag)" translation of
// the original pointer-based record descriptor. offset indexes into the
// sortBuffer's slab that carries it alongside.
type descriptor struct {
	offset int32
	length uint32
	tag    uint32
}

// sortBuffer is the back-to-front arena from spec.md §3/§4.7: descriptors
// accumulate in one direction, record bytes (NUL-terminated) in the
// other, and the buffer is full when the two cursors would cross.
//
// A literal single-byte-array packing of both descriptors and data (as
// the teacher's C ancestor does via raw pointer arithmetic) doesn't
// translate cleanly to a language without pointer aliasing into a typed
// slice; descriptors live in their own growable slice here, and ep
// (tracked against the same capacity budget bp would have consumed) is
// what keeps the original "two cursors meet" capacity accounting intact.
type sortBuffer struct {
	slab []byte
	ep   int // data cursor: slab[ep:] holds written record bytes, descending

	descriptors []descriptor
	bpBytes     int // bytes a packed descriptor array would have consumed
}

func newSortBuffer(size int) *sortBuffer {
	return &sortBuffer{slab: make([]byte, size), ep: size}
}

// remaining is the gap between the two (simulated) cursors.
func (b *sortBuffer) remaining() int {
	return b.ep - b.bpBytes
}

// fits reports whether a record of recLen bytes, its NUL terminator and
// its descriptor all fit between the two cursors.
func (b *sortBuffer) fits(recLen int) bool {
	return recLen+1+descriptorOverhead <= b.remaining()
}

func (b *sortBuffer) isEmpty() bool {
	return len(b.descriptors) == 0
}

func (b *sortBuffer) numRecords() int {
	return len(b.descriptors)
}

// add places rec at the tail of the data region (NUL-terminated) and
// appends its descriptor, per spec.md §4.7 step 4.
func (b *sortBuffer) add(rec []byte, tag uint32) {
	n := len(rec)
	b.ep--
	b.slab[b.ep] = 0
	b.ep -= n
	copy(b.slab[b.ep:], rec)

	b.descriptors = append(b.descriptors, descriptor{
		offset: int32(b.ep),
		length: uint32(n),
		tag:    tag,
	})
	b.bpBytes += descriptorOverhead
}

// bytes returns the record bytes for d, excluding the NUL terminator.
func (b *sortBuffer) bytes(d descriptor) []byte {
	return b.slab[d.offset : int(d.offset)+int(d.length)]
}

// sortDescriptors orders the descriptor array by cmp over the referenced
// record bytes. Per spec.md §9 design note (d), stability is not
// required of this pass; downstream merge ties are broken by tag and run
// index, not by preserving producer order here.
func (b *sortBuffer) sortDescriptors(cmp Compare) {
	sort.Slice(b.descriptors, func(i, j int) bool {
		return cmp(b.bytes(b.descriptors[i]), b.bytes(b.descriptors[j])) < 0
	})
}

func (b *sortBuffer) reset() {
	b.ep = len(b.slab)
	b.bpBytes = 0
	b.descriptors = b.descriptors[:0]
}
