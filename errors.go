package recwriter

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// joinErrors combines cleanup-path errors the way the teacher's Close
// combines flush/encoder-close errors: via multierr, so no single failure
// is lost when later cleanup steps still need to run.
func joinErrors(errs []error) error {
	var combined error
	for _, e := range errs {
		combined = multierr.Append(combined, e)
	}
	return combined
}

// Error kinds from spec.md §7. Configuration errors are surfaced as
// options.configError (see options.IsConfigError); the remaining three
// are represented here since they arise mid-operation, inside this
// package, rather than at option-parsing time.

// ErrRecordTooLarge is returned by a sorted writer's WriteRecord when len
// exceeds 2^32-1 (spec.md §7, "Record-too-large"). It does not affect
// writer state.
var ErrRecordTooLarge = fmt.Errorf("recwriter: record exceeds %d bytes", maxRecordLen)

// partitionOverflowError is returned when the routing callback returns an
// index >= N (spec.md §7, "Partition overflow"). It does not affect other
// partitions.
type partitionOverflowError struct {
	index int
	n     int
}

func (e partitionOverflowError) Error() string {
	return fmt.Sprintf("recwriter: partition function returned %d, have %d partitions", e.index, e.n)
}

// maybeAbort implements spec.md §7's "abort_on_error" propagation policy:
// the first I/O failure, when abort_on_error is set, terminates the
// process after logging. This calls os.Exit directly rather than
// zap.Logger.Fatal so the exit code is always 2, matching a fatal
// runtime condition distinct from zap's own default of 1.
func maybeAbort(logger *zap.Logger, abortOnError bool, err error) {
	if !abortOnError || err == nil {
		return
	}
	logger.Error("aborting after write failure", zap.Error(err))
	os.Exit(2)
}
