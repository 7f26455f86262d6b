package options

// Compare reports the relative order of two records' raw bytes, the way
// bytes.Compare does: <0, 0, >0 for less/equal/greater.
type Compare func(a, b []byte) int

// Reducer collapses a run of records that compare equal under Compare
// into zero or more output records (spec.md §3, "reducer"). Returning nil
// drops the group entirely.
type Reducer func(tag uint32, group [][]byte) [][]byte

// SOption configures a sorted writer on top of WriterOptions.
type SOption func(*SortOptions) error

// SortOptions is spec.md §3's "extended options" relevant to sorting.
type SortOptions struct {
	Compare    Compare
	Reducer    Reducer
	IntCompare Compare
	IntReducer Reducer

	NumPerGroup    int
	NumSortThreads int
	UseExtraThread bool
	LZ4Tmp         bool
}

func (o *SortOptions) SetDefault() {
	*o = SortOptions{
		NumSortThreads: 1,
		LZ4Tmp:         true,
	}
}

// WithCompare sets the final comparator used by the last merge pass and,
// unless overridden by WithIntCompare, every intermediate run merge too.
func WithCompare(cmp Compare) SOption {
	return func(o *SortOptions) error { o.Compare = cmp; return nil }
}

func WithReducer(r Reducer) SOption {
	return func(o *SortOptions) error { o.Reducer = r; return nil }
}

func WithIntCompare(cmp Compare) SOption {
	return func(o *SortOptions) error { o.IntCompare = cmp; return nil }
}

func WithIntReducer(r Reducer) SOption {
	return func(o *SortOptions) error { o.IntReducer = r; return nil }
}

func WithNumPerGroup(n int) SOption {
	return func(o *SortOptions) error {
		if n < 0 {
			return NewConfigError("num_per_group must be >= 0")
		}
		o.NumPerGroup = n
		return nil
	}
}

func WithNumSortThreads(n int) SOption {
	return func(o *SortOptions) error {
		if n < 1 {
			return NewConfigError("num_sort_threads must be >= 1")
		}
		o.NumSortThreads = n
		return nil
	}
}

func WithExtraThread() SOption {
	return func(o *SortOptions) error { o.UseExtraThread = true; return nil }
}

func WithLZ4Tmp(enabled bool) SOption {
	return func(o *SortOptions) error { o.LZ4Tmp = enabled; return nil }
}

// Resolve fills IntCompare/IntReducer defaults from Compare/Reducer, per
// spec.md §3 ("default to the final ones").
func (o *SortOptions) Resolve() {
	if o.IntCompare == nil {
		o.IntCompare = o.Compare
	}
	if o.IntReducer == nil {
		o.IntReducer = o.Reducer
	}
}
