package recwriter

import (
	"bufio"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/SaveTheRbtz/recwriter/options"
)

// runFileSink writes tagFramed records to a temp/run file, optionally
// through an LZ4 frame, behind a 10 MiB buffer per spec.md §4.8 ("open a
// fresh temporary ... in prefix format with a 10 MiB buffer").
type runFileSink struct {
	f  *os.File
	zw *lz4.Writer
	bw *bufio.Writer
}

func createRunFile(path string, lz4Enabled bool) (*runFileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	var under io.Writer = f
	var zw *lz4.Writer
	if lz4Enabled {
		zw = lz4.NewWriter(f)
		under = zw
	}
	return &runFileSink{f: f, zw: zw, bw: bufio.NewWriterSize(under, 10*1024*1024)}, nil
}

func (s *runFileSink) writeTagged(tag uint32, rec []byte) error {
	return writeTagged(s.bw, tag, rec)
}

func (s *runFileSink) Close() error {
	err := s.bw.Flush()
	if s.zw != nil {
		if cerr := s.zw.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if cerr := s.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// SortedWriter implements the external-sort subsystem of spec.md §4.7-4.10:
// an in-memory back-to-front sort buffer pair, spilled compressed run
// files, optional hierarchical group-merge, and a final k-way merge that
// either streams straight into the output file (Close) or is handed back
// to the caller (IntoInput).
type SortedWriter struct {
	wopts options.WriterOptions
	sopts options.SortOptions

	outputPath string // the true final path, e.g. "/t/out" or "/t/out.lz4"
	base       string // P-stripped, used for run/group filenames
	lz4Tmp     bool

	b, b2       *sortBuffer
	spillResult chan error

	runs *runIndex
	ex   extras

	intoInputCalled bool
	destroyed       bool

	// numAccepted counts every record this writer has ever accepted,
	// whether it currently lives in the sort buffer, a flat run, or a
	// group run — spec.md §3's invariant that this sum equals the number
	// of successful WriteRecord calls. atomic so RecordsAccepted can be
	// called from another goroutine while the producer is writing.
	numAccepted atomic.Int64

	logger *zap.Logger
}

// RecordsAccepted reports how many records this writer has accepted so
// far, across the sort buffer and every spilled run.
func (w *SortedWriter) RecordsAccepted() int64 {
	return w.numAccepted.Load()
}

// NewSortedWriter constructs a sorted writer over outputPath, per
// spec.md §4.7's buffer-allocation rule.
func NewSortedWriter(outputPath string, wopts options.WriterOptions, sopts options.SortOptions) (*SortedWriter, error) {
	sopts.Resolve()
	if sopts.Compare == nil {
		return nil, options.NewConfigError("sorted writer requires WithCompare")
	}

	base, _ := stripKnownExt(outputPath)

	w := &SortedWriter{
		wopts:      wopts,
		sopts:      sopts,
		outputPath: outputPath,
		base:       base,
		lz4Tmp:     sopts.LZ4Tmp,
		runs:       newRunIndex(base, sopts.LZ4Tmp, sopts.NumPerGroup),
		logger:     wopts.Logger,
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}

	if sopts.UseExtraThread {
		w.b = newSortBuffer(wopts.BufferSize / 2)
		w.b2 = newSortBuffer(wopts.BufferSize / 2)
	} else {
		buf := newSortBuffer(wopts.BufferSize)
		w.b = buf
		w.b2 = buf
	}

	if wopts.WriteAckFile {
		w.ex.addAckFile(ackName(outputPath))
	}

	return w, nil
}

// WriteRecord implements spec.md §4.7's per-record algorithm.
func (w *SortedWriter) WriteRecord(rec []byte, tag uint32) error {
	if uint64(len(rec)) > maxRecordLen {
		return ErrRecordTooLarge
	}

	if !w.b.fits(len(rec)) {
		if err := w.spillCurrent(); err != nil {
			maybeAbort(w.logger, w.wopts.AbortOnError, err)
			return err
		}
		if !w.b.fits(len(rec)) {
			err := w.writeOneRecordBypass(rec, tag)
			if err == nil {
				w.numAccepted.Inc()
			}
			maybeAbort(w.logger, w.wopts.AbortOnError, err)
			return err
		}
	}

	w.b.add(rec, tag)
	w.numAccepted.Inc()
	return nil
}

// spillCurrent implements spec.md §4.8: join any running spill, then
// either swap buffers and spill the full one in the background, or spill
// the only buffer inline.
func (w *SortedWriter) spillCurrent() error {
	if err := w.joinSpill(); err != nil {
		return err
	}

	if w.sopts.UseExtraThread {
		old := w.b
		w.b = w.b2
		w.b2 = old

		toSpill := w.b2
		result := make(chan error, 1)
		w.spillResult = result
		go func() { result <- w.runSpillWorker(toSpill) }()
		return nil
	}

	return w.runSpillWorker(w.b)
}

func (w *SortedWriter) joinSpill() error {
	if w.spillResult == nil {
		return nil
	}
	err := <-w.spillResult
	w.spillResult = nil
	return err
}

// runSpillWorker sorts buf by the intermediate comparator, streams it to
// a fresh run file, resets buf for reuse, and triggers a group-merge if
// grouping just completed (spec.md §4.8/§4.9).
func (w *SortedWriter) runSpillWorker(buf *sortBuffer) error {
	if buf.isEmpty() {
		return nil
	}

	cmp := w.sopts.IntCompare
	buf.sortDescriptors(cmp)

	path, isGroupMember := w.runs.nextSpillPath()
	rf, err := createRunFile(path, w.lz4Tmp)
	if err != nil {
		return err
	}
	for _, d := range buf.descriptors {
		if err := rf.writeTagged(d.tag, buf.bytes(d)); err != nil {
			rf.Close()
			return err
		}
	}
	if err := rf.Close(); err != nil {
		return err
	}
	buf.reset()

	if isGroupMember {
		if w.runs.recordGroupMember(path) {
			return w.mergeGroup()
		}
		return nil
	}
	w.runs.recordFlatSpill()
	return nil
}

// mergeGroup implements spec.md §4.9: merge the completed group's files
// into one flat run using the final compare/reducer, then reset the
// group counters.
func (w *SortedWriter) mergeGroup() error {
	paths := append([]string(nil), w.runs.pendingGroupPaths()...)
	dst := w.runs.nextGroupMergePath()
	if err := w.mergeRunFilesInto(dst, paths, w.sopts.Compare, w.sopts.Reducer); err != nil {
		return err
	}
	w.runs.finishGroupMerge()
	return nil
}

// mergeRunFilesInto k-way merges srcPaths (each removed once consumed)
// into a single fresh run file at dst.
func (w *SortedWriter) mergeRunFilesInto(dst string, srcPaths []string, cmp Compare, reducer Reducer) error {
	inputs := make([]RecordInput, 0, len(srcPaths))
	for _, p := range srcPaths {
		in, err := openFileInput(p, true)
		if err != nil {
			for _, already := range inputs {
				already.Close()
			}
			return err
		}
		inputs = append(inputs, in)
	}
	merged, err := newMergeInput(inputs, cmp, reducer)
	if err != nil {
		return err
	}
	defer merged.Close()

	rf, err := createRunFile(dst, w.lz4Tmp)
	if err != nil {
		return err
	}
	for {
		data, tag, err := merged.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			rf.Close()
			return err
		}
		if err := rf.writeTagged(tag, data); err != nil {
			rf.Close()
			return err
		}
	}
	return rf.Close()
}

// writeOneRecordBypass implements spec.md §4.7 step 3's oversized-record
// path: wait for any pending spill, write the record to its own fresh
// run file, and move on without ever touching the sort buffer.
func (w *SortedWriter) writeOneRecordBypass(rec []byte, tag uint32) error {
	if err := w.joinSpill(); err != nil {
		return err
	}

	path, isGroupMember := w.runs.nextSpillPath()
	rf, err := createRunFile(path, w.lz4Tmp)
	if err != nil {
		return err
	}
	if err := rf.writeTagged(tag, rec); err != nil {
		rf.Close()
		return err
	}
	if err := rf.Close(); err != nil {
		return err
	}

	if isGroupMember {
		if w.runs.recordGroupMember(path) {
			return w.mergeGroup()
		}
		return nil
	}
	w.runs.recordFlatSpill()
	return nil
}
