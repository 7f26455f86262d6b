package recwriter

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/SaveTheRbtz/recwriter/env"
	"github.com/SaveTheRbtz/recwriter/options"
)

// minGZBufferSize is the clamp from spec.md §4.3 ("Buffer size is clamped
// to >= 64 KiB").
const minGZBufferSize = 64 * 1024

// gzipSink streams through klauspost/compress/gzip using the same
// buffering discipline as bufferedSink (spec.md §4.3: "Same buffering
// strategy; the inner write goes to a gzip stream").
type gzipSink struct {
	target env.WriteTarget
	gz     *gzip.Writer
	buf    []byte
	pos    int

	logger *zap.Logger
	failed bool
}

func newGZSink(target env.WriteTarget, o *options.WriterOptions, logger *zap.Logger) (*gzipSink, error) {
	level := o.GZ.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	gz, err := gzip.NewWriterLevel(target, level)
	if err != nil {
		_ = target.Close()
		return nil, fmt.Errorf("recwriter: open gzip stream: %w", err)
	}

	bufSize := o.BufferSize
	if bufSize < minGZBufferSize {
		bufSize = minGZBufferSize
	}

	return &gzipSink{
		target: target,
		gz:     gz,
		buf:    make([]byte, bufSize),
		logger: logger,
	}, nil
}

func (s *gzipSink) Fd() int {
	if s.failed {
		return -1
	}
	return s.target.Fd()
}

func (s *gzipSink) Write(p []byte) (int, error) {
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

func (s *gzipSink) rawWrite(p []byte) error {
	if _, err := s.gz.Write(p); err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			s.logger.Error("disk full", zap.Int("fd", s.Fd()))
		}
		s.fail()
		return fmt.Errorf("recwriter: gzip write failed: %w", err)
	}
	return nil
}

func (s *gzipSink) Flush() error {
	if s.failed {
		return errWriterFailed
	}
	if s.pos > 0 {
		if err := s.rawWrite(s.buf[:s.pos]); err != nil {
			return err
		}
		s.pos = 0
	}
	if err := s.gz.Flush(); err != nil {
		s.fail()
		return fmt.Errorf("recwriter: gzip flush failed: %w", err)
	}
	return nil
}

func (s *gzipSink) Close() error {
	flushErr := s.Flush()
	var closeErr error
	if !s.failed {
		closeErr = s.gz.Close()
	}
	s.fail()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (s *gzipSink) fail() {
	if s.failed {
		return
	}
	s.failed = true
	if s.target != nil {
		_ = s.target.Close()
	}
}
