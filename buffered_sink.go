package recwriter

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"

	"github.com/SaveTheRbtz/recwriter/env"
)

// osFileTarget adapts *os.File to env.WriteTarget.
type osFileTarget struct{ f *os.File }

func (t *osFileTarget) Write(p []byte) (int, error) { return t.f.Write(p) }
func (t *osFileTarget) Close() error                 { return t.f.Close() }
func (t *osFileTarget) Fd() int                      { return int(t.f.Fd()) }

// maxSingleWrite caps a single underlying write call, per spec.md §4.2
// ("caps single calls at 0x7FFFFFFF bytes").
const maxSingleWrite = 0x7FFFFFFF

// writeAllRetrying writes all of p to t, retrying short writes and
// splitting calls larger than maxSingleWrite, per spec.md §4.2. It
// returns a diagnosed=true flag when the failure was ENOSPC, so the
// caller can emit the single "disk full" log line spec.md requires.
func writeAllRetrying(t env.WriteTarget, p []byte) (diagnosedENOSPC bool, err error) {
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxSingleWrite {
			chunk = chunk[:maxSingleWrite]
		}
		n, err := t.Write(chunk)
		if n > 0 {
			p = p[n:]
		}
		if err != nil {
			if errors.Is(err, syscall.ENOSPC) {
				return true, err
			}
			return false, err
		}
	}
	return false, nil
}

// bufferedSink is the buffered file sink from spec.md §4.2: owns a file
// descriptor, an in-memory buffer, and the write-through loop.
type bufferedSink struct {
	target env.WriteTarget
	buf    []byte
	pos    int

	logger *zap.Logger

	failed bool // fd is logically -1 once true; no further writes happen
}

func newBufferedSink(target env.WriteTarget, bufferSize int, logger *zap.Logger) *bufferedSink {
	return &bufferedSink{
		target: target,
		buf:    make([]byte, bufferSize),
		logger: logger,
	}
}

// fd returns the OS file descriptor, or -1 once the sink has failed
// (spec.md §3 invariant: "A writer's file descriptor is >= 0 when valid,
// -1 after a fatal write error or close").
func (s *bufferedSink) fd() int {
	if s.failed || s.target == nil {
		return -1
	}
	return s.target.Fd()
}

// append implements the buffering algorithm from spec.md §4.2:
//
//  1. If p+n < b, copy and advance (empty d with n=0 flushes).
//  2. Otherwise fill B to capacity, write it, then either write the
//     remainder directly (if >= b) or start a fresh buffer with it.
func (s *bufferedSink) append(d []byte) error {
	if s.failed {
		return errWriterFailed
	}

	if len(d) == 0 {
		return s.flush()
	}

	b := len(s.buf)
	if s.pos+len(d) < b {
		copy(s.buf[s.pos:], d)
		s.pos += len(d)
		return nil
	}

	// Fill to capacity and write the full buffer.
	fillLen := b - s.pos
	copy(s.buf[s.pos:], d[:fillLen])
	if err := s.rawWrite(s.buf[:b]); err != nil {
		return err
	}
	s.pos = 0
	rest := d[fillLen:]

	if len(rest) >= b {
		// Bypass the buffer entirely for the rest.
		return s.rawWrite(rest)
	}

	copy(s.buf, rest)
	s.pos = len(rest)
	return nil
}

// flush writes out any buffered bytes and resets the cursor.
func (s *bufferedSink) flush() error {
	if s.failed {
		return errWriterFailed
	}
	if s.pos == 0 {
		return nil
	}
	if err := s.rawWrite(s.buf[:s.pos]); err != nil {
		return err
	}
	s.pos = 0
	return nil
}

func (s *bufferedSink) rawWrite(p []byte) error {
	diagnosed, err := writeAllRetrying(s.target, p)
	if err != nil {
		if diagnosed {
			s.logger.Error("disk full", zap.Int("fd", s.fd()))
		}
		s.fail()
		return fmt.Errorf("recwriter: write failed: %w", err)
	}
	return nil
}

// fail marks the sink permanently broken: it closes the owned target and
// sets fd to -1 (spec.md §4.2: "the sink closes its owned fd, sets it to
// -1, and all subsequent writes return failure").
func (s *bufferedSink) fail() {
	if s.failed {
		return
	}
	s.failed = true
	if s.target != nil {
		_ = s.target.Close()
	}
}

var errWriterFailed = errors.New("recwriter: writer is in a failed state")
