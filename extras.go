package recwriter

import "os"

// extraKind tags the three resource variants a sorted writer can own,
// per spec.md §3/§9 ("Extras list ... ordered collection of tagged
// variants (InputHandle | FileToRemove | AckFile)").
type extraKind int

const (
	extraInputHandle extraKind = iota
	extraFileToRemove
	extraAckFile
)

// extra is one node of the extras list a sorted writer drains on close.
type extra struct {
	kind extraKind
	// handle is set for extraInputHandle.
	handle RecordInput
	// path is set for extraFileToRemove and extraAckFile.
	path string
}

// extras is the ordered collection described in spec.md §9; appended to
// in acquisition order and drained in destroy in three passes by kind
// (see drain), so that input handles close before the files underneath
// them are removed and before ack files are created.
type extras struct {
	items []extra
}

func (e *extras) addInputHandle(h RecordInput) {
	e.items = append(e.items, extra{kind: extraInputHandle, handle: h})
}

func (e *extras) addFileToRemove(path string) {
	e.items = append(e.items, extra{kind: extraFileToRemove, path: path})
}

func (e *extras) addAckFile(path string) {
	e.items = append(e.items, extra{kind: extraAckFile, path: path})
}

// drain runs destroy order from spec.md §4.10: "destroy extras tagged as
// input handles, remove files tagged as file-to-remove, then touch files
// tagged as ack-file, then free extras." It collects but does not abort
// on individual failures, since cleanup must run to completion.
func (e *extras) drain() error {
	var errs []error

	for _, it := range e.items {
		if it.kind == extraInputHandle && it.handle != nil {
			if err := it.handle.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, it := range e.items {
		if it.kind == extraFileToRemove {
			if err := os.Remove(it.path); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
		}
	}
	for _, it := range e.items {
		if it.kind == extraAckFile {
			if err := touchFile(it.path); err != nil {
				errs = append(errs, err)
			}
		}
	}

	e.items = nil
	return joinErrors(errs)
}

func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
