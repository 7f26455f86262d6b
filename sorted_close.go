package recwriter

import (
	"io"
	"os"
)

// IntoInput implements spec.md §4.10: idempotent, at-most-once. The
// first call either hands back a zero-copy view of the sorted in-memory
// buffer (if nothing ever spilled) or assembles a k-way merge over every
// run file plus the current tail; every later call returns nil, matching
// the "idempotent finalization" testable property (spec.md §8).
func (w *SortedWriter) IntoInput() (RecordInput, error) {
	if w.intoInputCalled {
		return nil, nil
	}
	w.intoInputCalled = true

	if err := w.joinSpill(); err != nil {
		return nil, err
	}

	noRunsYet := w.runs.numWritten == 0 && len(w.runs.pendingGroupPaths()) == 0
	if noRunsYet {
		cmp := w.sopts.Compare
		w.b.sortDescriptors(cmp)
		in := newMemInput(w.b)
		if w.sopts.Reducer != nil {
			return newMergeInput([]RecordInput{in}, cmp, w.sopts.Reducer)
		}
		return in, nil
	}

	// Spill any tail records directly, without the background thread.
	if !w.b.isEmpty() {
		if err := w.runSpillWorker(w.b); err != nil {
			return nil, err
		}
	}

	var paths []string
	paths = append(paths, w.runs.allFlatRunPaths()...)
	paths = append(paths, w.runs.pendingGroupPaths()...)

	inputs := make([]RecordInput, 0, len(paths))
	for _, p := range paths {
		in, err := openFileInput(p, true)
		if err != nil {
			for _, already := range inputs {
				already.Close()
			}
			return nil, err
		}
		inputs = append(inputs, in)
	}

	merged, err := newMergeInput(inputs, w.sopts.Compare, w.sopts.Reducer)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// Close implements spec.md §4.10/§4.11's sorted-writer destroy: obtain
// the input (a no-op if the caller already took it via IntoInput),
// publish the true final output from it, then run the unconditional
// cleanup steps regardless of what preceded.
func (w *SortedWriter) Close() error {
	if w.destroyed {
		return nil
	}
	w.destroyed = true

	in, err := w.IntoInput()
	var publishErr error
	if err != nil {
		publishErr = err
	} else if in != nil {
		publishErr = w.publishFinal(in)
	}

	cleanupErr := w.cleanup()
	return joinErrors([]error{publishErr, cleanupErr})
}

// publishFinal streams the merged record sequence into the true output
// file, framed per the caller-visible format, then finalizes safe-mode
// publication (spec.md §4.10: "open the true final output ..., stream
// the merged records through (applying the user-visible format)").
func (w *SortedWriter) publishFinal(in RecordInput) error {
	defer in.Close()

	physicalPath := w.outputPath
	if w.wopts.SafeMode {
		physicalPath = safeName(w.outputPath)
	}

	sk, err := newSink(physicalPath, &w.wopts, w.logger)
	if err != nil {
		return err
	}
	codec := newFrameCodec(formatFromSpec(w.wopts.Format))

	for {
		data, _, err := in.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			sk.Close()
			return err
		}
		if err := codec.writeFramed(sk, data); err != nil {
			sk.Close()
			return err
		}
	}
	if err := sk.Close(); err != nil {
		return err
	}

	if w.wopts.SafeMode {
		if err := os.Rename(physicalPath, w.outputPath); err != nil {
			return err
		}
	}
	return nil
}

// cleanup implements spec.md §4.10's unconditional tail: free the sort
// buffers, probe and remove residual _tmp/_gtmp files, then drain extras
// (destroy input handles, remove files, touch ack files).
func (w *SortedWriter) cleanup() error {
	w.b = nil
	w.b2 = nil

	removeResidualRunFiles(w.base, w.lz4Tmp)

	return w.ex.drain()
}

// removeResidualRunFiles probes run ids 0,1,2,... for both the flat-run
// and group-run namespaces, removing whatever is found, and stops each
// namespace after four consecutive misses — ported from the original
// io_out_ext_remove_tmp_files probing loop referenced in spec.md §4.10.
func removeResidualRunFiles(base string, lz4 bool) {
	probe := func(name func(string, int, bool) string) {
		skipped := 0
		for i := 0; skipped < 4; i++ {
			path := name(base, i, lz4)
			if _, err := os.Stat(path); err == nil {
				os.Remove(path)
				skipped = 0
			} else {
				skipped++
			}
		}
	}
	probe(runName)
	probe(groupRunName)
}
