package options

// PartitionFunc routes a record to one of NumPartitions child writers.
// Returning a value >= NumPartitions is a record-level failure
// (spec.md §7, "Partition overflow").
type PartitionFunc func(rec []byte, tag uint32, arg interface{}) int

// POption configures a partitioned writer on top of WriterOptions.
type POption func(*PartitionOptions) error

// PartitionOptions is spec.md §3's "extended options" relevant to
// partitioning.
type PartitionOptions struct {
	Partition             PartitionFunc
	Arg                   interface{}
	NumPartitions         int
	SortBeforePartitioning bool
	SortWhilePartitioning  bool
}

func (o *PartitionOptions) SetDefault() {
	*o = PartitionOptions{}
}

func WithPartitionFunc(f PartitionFunc, arg interface{}) POption {
	return func(o *PartitionOptions) error { o.Partition = f; o.Arg = arg; return nil }
}

func WithNumPartitions(n int) POption {
	return func(o *PartitionOptions) error {
		if n < 0 {
			return NewConfigError("num_partitions must be >= 0")
		}
		o.NumPartitions = n
		return nil
	}
}

func WithSortBeforePartitioning() POption {
	return func(o *PartitionOptions) error { o.SortBeforePartitioning = true; return nil }
}

func WithSortWhilePartitioning() POption {
	return func(o *PartitionOptions) error { o.SortWhilePartitioning = true; return nil }
}
