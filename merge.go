package recwriter

import "io"

// mergeItem is one candidate record sitting at the head of some source
// input, tagged with which source it came from so ties can be broken
// deterministically.
type mergeItem struct {
	data   []byte
	tag    uint32
	source int // index into mergeInput.inputs; doubles as "run index"
}

// mergeHeap is a hand-rolled binary min-heap over mergeItem, the same
// shape as the retrieval pack's csvquery external sorter's manualHeap:
// avoiding container/heap's interface{} boxing matters here because
// Less is called on the order of record-count times during a k-way
// merge, and each call would otherwise allocate boxing the two operands.
type mergeHeap struct {
	items []mergeItem
	cmp   Compare
}

func (h *mergeHeap) Len() int { return len(h.items) }

// less orders by cmp over the record bytes, then — per spec.md §9 design
// note (d) — breaks ties by tag, then by source (run index), both
// ascending.
func (h *mergeHeap) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if c := h.cmp(a.data, b.data); c != 0 {
		return c < 0
	}
	if a.tag != b.tag {
		return a.tag < b.tag
	}
	return a.source < b.source
}

func (h *mergeHeap) swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *mergeHeap) push(it mergeItem) {
	h.items = append(h.items, it)
	h.up(len(h.items) - 1)
}

func (h *mergeHeap) pop() mergeItem {
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	if len(h.items) > 0 {
		h.down(0)
	}
	return top
}

func (h *mergeHeap) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *mergeHeap) down(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		smallest := left
		if right := left + 1; right < n && h.less(right, left) {
			smallest = right
		}
		if !h.less(smallest, i) {
			break
		}
		h.swap(i, smallest)
		i = smallest
	}
}

// mergeInput is a k-way merging RecordInput over several sorted sources,
// grounded on the csvquery external sorter's kWayMerge but kept as a pull
// iterator rather than a drive-to-completion loop, since spec.md's
// IntoInput/destroy need to stream the merged sequence through another
// writer rather than materialize it.
//
// When reducer is non-nil, consecutive equal-key items (per cmp) are
// buffered across all sources and passed through reducer before being
// handed back to the caller, per spec.md §8 "Sort correctness": "with a
// reducer, equal-key runs collapse per the reducer's contract".
type mergeInput struct {
	inputs []RecordInput
	cmp    Compare
	reduce Reducer

	heap mergeHeap

	pending    [][]byte
	pendingTag uint32
	pendingPos int
}

// newMergeInput wires up inputs behind a k-way merge. cmp must be
// non-nil; reduce may be nil.
func newMergeInput(inputs []RecordInput, cmp Compare, reduce Reducer) (*mergeInput, error) {
	m := &mergeInput{inputs: inputs, cmp: cmp, reduce: reduce, heap: mergeHeap{cmp: cmp}}
	for i, in := range inputs {
		if err := m.fill(i); err != nil && err != io.EOF {
			return nil, err
		}
	}
	return m, nil
}

// fill pulls the next record from inputs[i] onto the heap, if any remain.
func (m *mergeInput) fill(i int) error {
	data, tag, err := m.inputs[i].Next()
	if err != nil {
		return err
	}
	m.heap.push(mergeItem{data: data, tag: tag, source: i})
	return nil
}

func (m *mergeInput) Next() ([]byte, uint32, error) {
	if m.pendingPos < len(m.pending) {
		rec := m.pending[m.pendingPos]
		m.pendingPos++
		return rec, m.pendingTag, nil
	}
	m.pending = nil
	m.pendingPos = 0

	if m.reduce == nil {
		return m.nextRaw()
	}
	return m.nextReduced()
}

// nextRaw returns the single smallest remaining record with no reducer
// applied.
func (m *mergeInput) nextRaw() ([]byte, uint32, error) {
	if m.heap.Len() == 0 {
		return nil, 0, io.EOF
	}
	top := m.heap.pop()
	if err := m.fill(top.source); err != nil && err != io.EOF {
		return nil, 0, err
	}
	return top.data, top.tag, nil
}

// nextReduced collects every item comparing equal to the smallest
// remaining key across all sources, calls reduce once over the group,
// and queues its output for Next to drain one record at a time.
func (m *mergeInput) nextReduced() ([]byte, uint32, error) {
	if m.heap.Len() == 0 {
		return nil, 0, io.EOF
	}
	first := m.heap.pop()
	if err := m.fill(first.source); err != nil && err != io.EOF {
		return nil, 0, err
	}

	group := [][]byte{first.data}
	groupTag := first.tag

	for m.heap.Len() > 0 && m.cmp(m.heap.items[0].data, first.data) == 0 {
		next := m.heap.pop()
		group = append(group, next.data)
		if err := m.fill(next.source); err != nil && err != io.EOF {
			return nil, 0, err
		}
	}

	out := m.reduce(groupTag, group)
	for len(out) == 0 {
		// A reducer is allowed to drop a group entirely; move on to the
		// next distinct key.
		if m.heap.Len() == 0 {
			return nil, 0, io.EOF
		}
		return m.nextReduced()
	}

	m.pending = out[1:]
	m.pendingTag = groupTag
	m.pendingPos = 0
	return out[0], groupTag, nil
}

func (m *mergeInput) Close() error {
	var errs []error
	for _, in := range m.inputs {
		if err := in.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}
