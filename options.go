package recwriter

import (
	"github.com/SaveTheRbtz/recwriter/options"
)

// WOption configures a Writer at construction time. Alias of
// options.WOption so callers of this package never need to import the
// options subpackage directly for the common case.
type WOption = options.WOption

// SOption configures a sorted writer's extended options.
type SOption = options.SOption

// POption configures a partitioned writer's extended options.
type POption = options.POption

// Compare and Reducer are re-exported for callers building sort options.
type Compare = options.Compare
type Reducer = options.Reducer

// PartitionFunc is re-exported for callers building partition options.
type PartitionFunc = options.PartitionFunc

var (
	WithLogger       = options.WithWLogger
	WithBufferSize   = options.WithBufferSize
	WithAppend       = options.WithAppend
	WithSafeMode     = options.WithSafeMode
	WithAckFile      = options.WithAckFile
	WithAbortOnError = options.WithAbortOnError
	WithGZ           = options.WithGZ
	WithExternalFD   = options.WithExternalFD

	WithCompare        = options.WithCompare
	WithReducer        = options.WithReducer
	WithIntCompare     = options.WithIntCompare
	WithIntReducer     = options.WithIntReducer
	WithNumPerGroup    = options.WithNumPerGroup
	WithNumSortThreads = options.WithNumSortThreads
	WithExtraThread    = options.WithExtraThread
	WithLZ4Tmp         = options.WithLZ4Tmp

	WithPartitionFunc        = options.WithPartitionFunc
	WithNumPartitions        = options.WithNumPartitions
	WithSortBeforePartition  = options.WithSortBeforePartitioning
	WithSortWhilePartition   = options.WithSortWhilePartitioning
)

// LZ4Params configures the LZ4 sink (spec.md §3, lz4 option group).
type LZ4Params = options.LZ4Options

// WithLZ4 enables LZ4-compressed output with the given parameters.
func WithLZ4(p LZ4Params) WOption { return options.WithLZ4(p) }
