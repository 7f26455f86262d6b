// Package env holds the small injection-point interfaces shared by the
// sink and sort-buffer implementations in the parent package, the way the
// teacher's env package let a WEnvironment/REnvironment stand in for a
// real file when it was inconvenient to depend on *os.File directly.
package env

// WriteTarget is the thing a buffered sink ultimately writes bytes to.
// Tests use an in-memory fake; production sinks use a real *os.File.
// This is the adapted descendant of the teacher's WEnvironment: the
// teacher's version let callers swap in custom chunking code around a
// compressed stream, this version lets sinks swap in a fake file
// descriptor around the buffered write-through loop from spec.md §4.2.
type WriteTarget interface {
	// Write writes p in full or returns an error; partial writes are not
	// reported to the caller (spec.md §4.2: "the underlying write loop
	// retries short writes").
	Write(p []byte) (n int, err error)
	// Close releases the target.
	Close() error
	// Fd returns the underlying OS file descriptor if any, or -1.
	Fd() int
}
