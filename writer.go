package recwriter

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/SaveTheRbtz/recwriter/options"
)

// Writer is the polymorphic handle from spec.md §3's "Writer variant"
// (tagged Normal | Partitioned | Sorted). A tag-first struct with
// function-pointer dispatch is how the teacher's ancestor did this in a
// language without interfaces; here the three concrete types simply
// implement this interface, per spec.md §9 design note ("the tag-first
// layout is not required once dispatch is language-native").
type Writer interface {
	// WriteRecord frames rec per the writer's configured format (or, for
	// Sorted/Partitioned, enqueues/routes it) and returns any failure.
	WriteRecord(rec []byte, tag uint32) error
	// Close destroys the writer: flushes, publishes (safe-mode rename,
	// ack file), and releases all owned resources. Mandatory on every
	// path, per spec.md §5 "Resource lifetime".
	Close() error
	// IntoInput converts this writer into a record input, tying its
	// lifetime to the returned input. Idempotent: the second call on any
	// variant returns (nil, nil).
	IntoInput() (RecordInput, error)
}

// validateWriterOptions enforces spec.md §4.5/§7's construction-time
// invariants, each a programmer error (configuration error) rather than
// a recoverable I/O failure.
func validateWriterOptions(path string, o *options.WriterOptions) error {
	if o.SafeMode && o.AppendMode {
		return options.NewConfigError("safe_mode and append_mode are mutually exclusive")
	}
	if o.HasExternalFD && o.AppendMode {
		return options.NewConfigError("external fd with append_mode is fatal")
	}
	if o.HasExternalFD && (o.SafeMode || o.WriteAckFile) {
		return options.NewConfigError("external fd with safe_mode or write_ack_file is fatal")
	}
	if path == "" && !o.HasExternalFD {
		return options.NewConfigError("writer requires a filename or an external fd")
	}
	if o.LZ4.Enabled && o.AppendMode {
		return options.NewConfigError("lz4 append mode is not supported")
	}
	return nil
}

// NormalWriter dispatches straight to one sink: the "Normal" variant of
// spec.md §3, exposing the full record-write contract surface
// (write/write_record/write_prefix/write_delimited) from spec.md §6.
type NormalWriter struct {
	wopts options.WriterOptions

	path         string
	physicalPath string

	sk    sink
	codec frameCodec

	closed          bool
	intoInputCalled bool

	logger *zap.Logger
}

// NewNormalWriter constructs a Normal writer over path.
func NewNormalWriter(path string, wopts options.WriterOptions) (*NormalWriter, error) {
	if err := validateWriterOptions(path, &wopts); err != nil {
		return nil, err
	}

	logger := wopts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	physicalPath := path
	if wopts.SafeMode {
		physicalPath = safeName(path)
	}

	sk, err := newSink(physicalPath, &wopts, logger)
	if err != nil {
		return nil, err
	}

	return &NormalWriter{
		wopts:        wopts,
		path:         path,
		physicalPath: physicalPath,
		sk:           sk,
		codec:        newFrameCodec(formatFromSpec(wopts.Format)),
		logger:       logger,
	}, nil
}

// WriteRecord frames rec per the configured format (spec.md §4.1). tag
// is accepted for interface uniformity with Sorted/Partitioned writers
// but is not part of any on-disk format this variant produces.
func (w *NormalWriter) WriteRecord(rec []byte, _ uint32) error {
	err := w.codec.writeFramed(w.sk, rec)
	maybeAbort(w.logger, w.wopts.AbortOnError, err)
	return err
}

// Write passes rec straight through with no framing at all (spec.md §6:
// "raw bytes, not interpreted; valid only on the normal variant").
func (w *NormalWriter) Write(rec []byte) (int, error) {
	n, err := w.sk.Write(rec)
	maybeAbort(w.logger, w.wopts.AbortOnError, err)
	return n, err
}

// WritePrefix forces prefix framing regardless of the writer's
// configured format (spec.md §6).
func (w *NormalWriter) WritePrefix(rec []byte) error {
	err := prefixCodec{}.writeFramed(w.sk, rec)
	maybeAbort(w.logger, w.wopts.AbortOnError, err)
	return err
}

// WriteDelimited forces delimited framing with delim regardless of the
// writer's configured format (spec.md §6).
func (w *NormalWriter) WriteDelimited(rec []byte, delim byte) error {
	err := delimitedCodec{delim: delim}.writeFramed(w.sk, rec)
	maybeAbort(w.logger, w.wopts.AbortOnError, err)
	return err
}

// Close implements spec.md §4.11's normal-variant destroy: sink flush,
// fd close, safe-mode rename, ack emission.
func (w *NormalWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.sk.Close(); err != nil {
		return err
	}

	if w.wopts.SafeMode {
		if err := os.Rename(w.physicalPath, w.path); err != nil {
			return err
		}
	}
	if w.wopts.WriteAckFile {
		if err := touchFile(ackName(w.path)); err != nil {
			return err
		}
	}
	return nil
}

// IntoInput implements spec.md §4.11's normal-variant conversion: close
// the writer and reopen the produced file as an input, tying its
// lifetime to the input. This package's RecordInput can only read back
// the public prefix framing of an output file (rawPrefixFileInput), so
// IntoInput is only supported when the writer itself was prefix-
// formatted; delimited/fixed-format inputs are the out-of-scope general
// record-input reader's job (spec.md §1).
func (w *NormalWriter) IntoInput() (RecordInput, error) {
	if w.intoInputCalled {
		return nil, nil
	}
	w.intoInputCalled = true

	if w.wopts.Format.Kind != options.FormatKindPrefix {
		return nil, fmt.Errorf("recwriter: IntoInput requires prefix format, got %s", formatFromSpec(w.wopts.Format))
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return openRawPrefixFileInput(w.path)
}

// buildWriterOptions resolves a WriterOptions from functional options.
func buildWriterOptions(opts []WOption) (options.WriterOptions, error) {
	var o options.WriterOptions
	o.SetDefault()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return options.WriterOptions{}, err
		}
	}
	return o, nil
}

// NewWriter constructs a Normal writer over path (spec.md §2 "Normal
// writer").
func NewWriter(path string, opts ...WOption) (Writer, error) {
	o, err := buildWriterOptions(opts)
	if err != nil {
		return nil, err
	}
	return NewNormalWriter(path, o)
}

// NewSorted constructs a Sorted writer (spec.md §2 "Sorted writer").
func NewSorted(path string, sopts []SOption, opts ...WOption) (Writer, error) {
	o, err := buildWriterOptions(opts)
	if err != nil {
		return nil, err
	}
	var so options.SortOptions
	so.SetDefault()
	for _, opt := range sopts {
		if err := opt(&so); err != nil {
			return nil, err
		}
	}
	return NewSortedWriter(path, o, so)
}

// NewPartitioned constructs a Partitioned writer, degrading to a plain
// Sorted or Normal writer when num_partitions == 0 or 1 per spec.md §4.6
// ("N = 0: degrade to a plain sorted or normal writer (partition
// function dropped)... N = 1 behaves like N = 0 except the output
// filename is suffixed _0"), and routing sort_before_partitioning
// requests to a dedicated writer that sorts the whole stream before any
// partition routing happens at all.
func NewPartitioned(path string, popts []POption, sopts []SOption, opts ...WOption) (Writer, error) {
	o, err := buildWriterOptions(opts)
	if err != nil {
		return nil, err
	}
	var po options.PartitionOptions
	po.SetDefault()
	for _, opt := range popts {
		if err := opt(&po); err != nil {
			return nil, err
		}
	}
	var so options.SortOptions
	so.SetDefault()
	for _, opt := range sopts {
		if err := opt(&so); err != nil {
			return nil, err
		}
	}

	if po.NumPartitions == 0 {
		if so.Compare != nil {
			return NewSortedWriter(path, o, so)
		}
		return NewNormalWriter(path, o)
	}

	// sort_before_partitioning (original_source/src/io_out.c's
	// io_out_ext_init: "partition && !sort_before_partitioning" routes to
	// the partitioned path, so sort_before_partitioning routes the other
	// way, into io_out_sorted_init instead) defers partition routing
	// until the entire stream has been sorted once.
	if po.SortBeforePartitioning && po.Partition != nil && so.Compare != nil {
		return newSortBeforePartitionWriter(path, o, po, so)
	}

	if po.NumPartitions == 1 {
		target := partitionName(path, 0)
		if so.Compare != nil {
			return NewSortedWriter(target, o, so)
		}
		return NewNormalWriter(target, o)
	}
	return NewPartitionedWriter(path, o, po, so)
}
