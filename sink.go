package recwriter

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/SaveTheRbtz/recwriter/env"
	"github.com/SaveTheRbtz/recwriter/options"
)

// sink is the common surface every concrete byte-destination driver
// implements (spec.md §2: "Sink — the concrete byte-destination driver
// (raw/gz/lz4)").
type sink interface {
	io.Writer
	// Flush pushes any buffered bytes out without closing the sink. Each
	// sink calls it itself from Write with an empty slice (the
	// "write(_, 0) means flush" rule in spec.md §4.2/§4.4) and from Close.
	Flush() error
	Close() error
	Fd() int
}

// Write satisfies io.Writer for bufferedSink by delegating to append.
func (s *bufferedSink) Write(p []byte) (int, error) {
	if err := s.append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *bufferedSink) Flush() error { return s.flush() }
func (s *bufferedSink) Close() error {
	err := s.flush()
	s.fail() // closes the underlying target unconditionally
	return err
}

// openFileTarget opens (or creates) the file at path honoring append/
// external-fd semantics validated earlier by validateWriterOptions.
func openFileTarget(path string, o *options.WriterOptions) (env.WriteTarget, error) {
	if o.HasExternalFD {
		f := os.NewFile(uintptr(o.ExternalFD), path)
		if f == nil {
			return nil, options.NewConfigError("invalid external fd")
		}
		return &osFileTarget{f: f}, nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if o.AppendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	return &osFileTarget{f: f}, nil
}

// newSink constructs the sink selected by sink selection rules in spec.md
// §4.5: file extension determines raw/gz/lz4, unless there is no
// filename (external fd only), in which case the gz/lz4 writer options
// select.
func newSink(path string, o *options.WriterOptions, logger *zap.Logger) (sink, error) {
	if err := validateWriterOptions(path, o); err != nil {
		return nil, err
	}

	target, err := openFileTarget(path, o)
	if err != nil {
		return nil, err
	}

	ext := ""
	if path != "" {
		ext = knownExt(path)
	}

	useGZ := ext == ".gz" || (ext == "" && o.GZ.Enabled)
	useLZ4 := ext == ".lz4" || (ext == "" && o.LZ4.Enabled)

	switch {
	case useLZ4:
		return newLZ4Sink(target, o, logger)
	case useGZ:
		return newGZSink(target, o, logger)
	default:
		return newBufferedSink(target, o.BufferSize, logger), nil
	}
}
