package options

import (
	"go.uber.org/zap"
)

// WOption configures a Writer at construction time.
type WOption func(*WriterOptions) error

// GZOptions holds gzip sink parameters (spec.md §3, gz option group).
type GZOptions struct {
	Enabled bool
	Level   int
}

// LZ4Options holds LZ4 frame sink parameters (spec.md §3, lz4 option group).
type LZ4Options struct {
	Enabled         bool
	Level           int
	BlockSize       int
	BlockChecksum   bool
	ContentChecksum bool
}

// FormatSpec is the wire-agnostic representation of recwriter.Format: a
// plain data carrier so this package doesn't need to import the root
// package (which already imports options, to avoid a cycle).
type FormatSpec struct {
	Kind  int
	Delim byte
	Width uint32
}

const (
	FormatKindPrefix = iota
	FormatKindDelimited
	FormatKindFixed
)

// WriterOptions is the ambient option set every writer variant embeds,
// spec.md §3 "Writer options".
type WriterOptions struct {
	Logger *zap.Logger

	BufferSize    int
	AppendMode    bool
	SafeMode      bool
	WriteAckFile  bool
	AbortOnError  bool
	Format        FormatSpec
	GZ            GZOptions
	LZ4           LZ4Options
	ExternalFD    int // -1 unless WithExternalFD was used
	HasExternalFD bool
}

func (o *WriterOptions) SetDefault() {
	*o = WriterOptions{
		Logger:     zap.NewNop(),
		BufferSize: 64 * 1024,
		Format:     FormatSpec{Kind: FormatKindPrefix},
		ExternalFD: -1,
		GZ:         GZOptions{Level: 1},
		LZ4:        LZ4Options{Level: 1, BlockSize: 64 * 1024},
	}
}

func WithWLogger(l *zap.Logger) WOption {
	return func(o *WriterOptions) error { o.Logger = l; return nil }
}

func WithBufferSize(n int) WOption {
	return func(o *WriterOptions) error {
		if n <= 0 {
			return NewConfigError("buffer_size must be > 0")
		}
		o.BufferSize = n
		return nil
	}
}

func WithAppend() WOption {
	return func(o *WriterOptions) error { o.AppendMode = true; return nil }
}

func WithSafeMode() WOption {
	return func(o *WriterOptions) error { o.SafeMode = true; return nil }
}

func WithAckFile() WOption {
	return func(o *WriterOptions) error { o.WriteAckFile = true; return nil }
}

func WithAbortOnError() WOption {
	return func(o *WriterOptions) error { o.AbortOnError = true; return nil }
}

func WithFormat(f FormatSpec) WOption {
	return func(o *WriterOptions) error { o.Format = f; return nil }
}

func WithGZ(level int) WOption {
	return func(o *WriterOptions) error { o.GZ = GZOptions{Enabled: true, Level: level}; return nil }
}

func WithLZ4(opts LZ4Options) WOption {
	return func(o *WriterOptions) error {
		opts.Enabled = true
		if opts.BlockSize == 0 {
			opts.BlockSize = 64 * 1024
		}
		if opts.Level == 0 {
			opts.Level = 1
		}
		o.LZ4 = opts
		return nil
	}
}

func WithExternalFD(fd int) WOption {
	return func(o *WriterOptions) error { o.ExternalFD = fd; o.HasExternalFD = true; return nil }
}

// configError marks a construction-time invariant violation (spec.md §7,
// "Configuration error" — always fatal, a programmer error).
type configError struct{ msg string }

func (e configError) Error() string { return "recwriter: " + e.msg }

func NewConfigError(msg string) error { return configError{msg} }

func IsConfigError(err error) bool {
	_, ok := err.(configError)
	return ok
}
