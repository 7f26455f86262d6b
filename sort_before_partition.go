package recwriter

import (
	"io"

	"github.com/SaveTheRbtz/recwriter/options"
)

// sortBeforePartitionWriter implements spec.md §4.6's sort_before_partitioning
// mode. Grounded on original_source/src/io_out.c: io_out_sorted_init copies
// the caller's options into h->partition_options with compare forced to
// NULL (~1148), so io_out_sorted_destroy's re-entrant call to
// io_out_ext_init(h->tmp_filename, &h->options, &h->partition_options)
// (~1471-1482) falls past the compare branch and into
// io_out_partitioned_init with the partition callback still attached.
// The practical effect: every record is accepted into one global external
// sort, ignoring the partition function entirely, and only once the merge
// is fully ordered does it get fanned out across the final partition
// files — so each partition file ends up sorted too, without ever being
// sorted individually.
type sortBeforePartitionWriter struct {
	sw    *SortedWriter
	wopts options.WriterOptions
	popts options.PartitionOptions
	base  string
}

func newSortBeforePartitionWriter(path string, wopts options.WriterOptions, popts options.PartitionOptions, sopts options.SortOptions) (*sortBeforePartitionWriter, error) {
	sw, err := NewSortedWriter(path, wopts, sopts)
	if err != nil {
		return nil, err
	}
	base, _ := stripKnownExt(path)
	return &sortBeforePartitionWriter{sw: sw, wopts: wopts, popts: popts, base: base}, nil
}

// WriteRecord delegates straight into the global sort buffer; the
// partition function is not consulted until Close.
func (w *sortBeforePartitionWriter) WriteRecord(rec []byte, tag uint32) error {
	return w.sw.WriteRecord(rec, tag)
}

// Close obtains the fully merged, globally sorted record stream and fans
// it out across the final partition files, applying the same N == 0/1
// degrade as the eager-partitioning path (spec.md §4.6).
func (w *sortBeforePartitionWriter) Close() error {
	in, err := w.sw.IntoInput()
	if err != nil {
		cerr := w.sw.cleanup()
		return joinErrors([]error{err, cerr})
	}

	streamErr := w.publish(in)
	cleanupErr := w.sw.cleanup()
	return joinErrors([]error{streamErr, cleanupErr})
}

func (w *sortBeforePartitionWriter) publish(in RecordInput) error {
	n := w.popts.NumPartitions
	if n <= 1 {
		target := w.base
		if n == 1 {
			target = partitionName(w.base, 0)
		}
		nw, err := NewNormalWriter(target, w.wopts)
		if err != nil {
			if in != nil {
				in.Close()
			}
			return err
		}
		var streamErr error
		if in != nil {
			streamErr = streamRecordsInto(nw, in)
		}
		closeErr := nw.Close()
		return joinErrors([]error{streamErr, closeErr})
	}

	children := make([]*NormalWriter, n)
	for i := 0; i < n; i++ {
		nw, err := NewNormalWriter(partitionName(w.base, i), w.wopts)
		if err != nil {
			for _, c := range children {
				if c != nil {
					c.Close()
				}
			}
			if in != nil {
				in.Close()
			}
			return err
		}
		children[i] = nw
	}

	var errs []error
	if in != nil {
		errs = append(errs, w.fanOut(in, children))
	}
	for _, c := range children {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

// fanOut routes every already-ordered record from in to the partition
// selected by the partition callback. An out-of-range index is a
// record-level failure that does not affect the other partitions,
// matching PartitionedWriter.WriteRecord (spec.md §7): the record is
// skipped, routing continues, and the first such overflow is returned
// once the stream is exhausted.
func (w *sortBeforePartitionWriter) fanOut(in RecordInput, children []*NormalWriter) error {
	defer in.Close()
	var overflow error
	for {
		data, tag, err := in.Next()
		if err == io.EOF {
			return overflow
		}
		if err != nil {
			return err
		}
		idx := w.popts.Partition(data, tag, w.popts.Arg)
		if idx < 0 || idx >= len(children) {
			if overflow == nil {
				overflow = partitionOverflowError{index: idx, n: len(children)}
			}
			continue
		}
		if err := children[idx].WriteRecord(data, tag); err != nil {
			return err
		}
	}
}

func streamRecordsInto(nw *NormalWriter, in RecordInput) error {
	defer in.Close()
	for {
		data, _, err := in.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := nw.WriteRecord(data, 0); err != nil {
			return err
		}
	}
}

// IntoInput is the reserved stub shared with PartitionedWriter (spec.md
// §4.11).
func (w *sortBeforePartitionWriter) IntoInput() (RecordInput, error) {
	return nil, nil
}
