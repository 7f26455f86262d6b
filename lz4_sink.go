package recwriter

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"

	"github.com/SaveTheRbtz/recwriter/env"
	"github.com/SaveTheRbtz/recwriter/options"
)

// lz4Sink streams through the LZ4 frame format (spec.md §4.4). Grounded
// on github.com/pierrec/lz4/v4's streaming Writer, the same library and
// API shape used for compressed run files in the retrieval pack's
// csvquery external sorter (internal/indexer/sorter.go: lz4.NewWriter
// wraps a plain *os.File, lz4.NewReader wraps it back on the merge side).
//
// Unlike bufferedSink's hand-rolled two-buffer discipline, lz4.Writer
// already owns the uncompressed block buffer and the compressed staging
// internally; this sink's own buf is the uncompressed side only, mirroring
// spec.md's "primary buffer (one uncompressed block)" and deferring the
// "secondary buffer (compressed staging)" to the library.
type lz4Sink struct {
	target env.WriteTarget
	zw     *lz4.Writer
	buf    []byte
	pos    int

	logger *zap.Logger
	failed bool
}

func newLZ4Sink(target env.WriteTarget, o *options.WriterOptions, logger *zap.Logger) (*lz4Sink, error) {
	if o.AppendMode {
		// Append mode on LZ4 is unsupported (spec.md §4.4): resuming a
		// frame mid-stream would require re-deriving the content
		// checksum state from whatever bytes are already on disk, which
		// the frame format has no provision for.
		_ = target.Close()
		return nil, options.NewConfigError("lz4 append mode is not supported")
	}

	// Levels 1..9 map onto lz4.Level1..lz4.Level9 (1 << (8+n)); 0 is lz4.Fast.
	level := lz4.Fast
	if o.LZ4.Level > 0 {
		level = lz4.CompressionLevel(1 << (8 + o.LZ4.Level))
	}

	zw := lz4.NewWriter(target)
	applyOpts := []lz4.Option{
		lz4.BlockSizeOption(blockSizeConstant(o.LZ4.BlockSize)),
		lz4.CompressionLevelOption(level),
		lz4.BlockChecksumOption(o.LZ4.BlockChecksum),
		lz4.ChecksumOption(o.LZ4.ContentChecksum),
	}
	if err := zw.Apply(applyOpts...); err != nil {
		_ = target.Close()
		return nil, fmt.Errorf("recwriter: configure lz4 writer: %w", err)
	}

	bufSize := o.LZ4.BlockSize
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}

	return &lz4Sink{
		target: target,
		zw:     zw,
		buf:    make([]byte, bufSize),
		logger: logger,
	}, nil
}

// blockSizeConstant maps a byte count to the nearest lz4.BlockSize
// constant the library accepts.
func blockSizeConstant(n int) lz4.BlockSize {
	switch {
	case n <= 64*1024:
		return lz4.Block64Kb
	case n <= 256*1024:
		return lz4.Block256Kb
	case n <= 1024*1024:
		return lz4.Block1Mb
	default:
		return lz4.Block4Mb
	}
}

func (s *lz4Sink) Fd() int {
	if s.failed {
		return -1
	}
	return s.target.Fd()
}

func (s *lz4Sink) Write(p []byte) (int, error) {
	if s.failed {
		return 0, errWriterFailed
	}
	if len(p) == 0 {
		return 0, s.Flush()
	}

	b := len(s.buf)
	written := 0
	for len(p) > 0 {
		if s.pos+len(p) < b {
			copy(s.buf[s.pos:], p)
			s.pos += len(p)
			written += len(p)
			break
		}
		fillLen := b - s.pos
		copy(s.buf[s.pos:], p[:fillLen])
		if err := s.rawWrite(s.buf[:b]); err != nil {
			return written, err
		}
		s.pos = 0
		written += fillLen
		p = p[fillLen:]

		if len(p) >= b {
			if err := s.rawWrite(p); err != nil {
				return written, err
			}
			written += len(p)
			p = nil
		}
	}
	return written, nil
}

func (s *lz4Sink) rawWrite(p []byte) error {
	if _, err := s.zw.Write(p); err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			s.logger.Error("disk full", zap.Int("fd", s.Fd()))
		}
		s.fail()
		return fmt.Errorf("recwriter: lz4 write failed: %w", err)
	}
	return nil
}

// Flush pushes any pending uncompressed bytes through the encoder. It
// does not finalize the frame trailer; only Close does that, per
// spec.md §4.4 ("Flush on explicit write(_, 0)... Close finalizes").
func (s *lz4Sink) Flush() error {
	if s.failed {
		return errWriterFailed
	}
	if s.pos > 0 {
		if err := s.rawWrite(s.buf[:s.pos]); err != nil {
			return err
		}
		s.pos = 0
	}
	return nil
}

func (s *lz4Sink) Close() error {
	flushErr := s.Flush()
	var closeErr error
	if !s.failed {
		closeErr = s.zw.Close()
	}
	s.fail()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (s *lz4Sink) fail() {
	if s.failed {
		return
	}
	s.failed = true
	if s.target != nil {
		_ = s.target.Close()
	}
}
