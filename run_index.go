package recwriter

// runIndex tracks the two monotonically increasing counters from
// spec.md §3 "Run index": num_written (flat runs) and num_group_written
// (runs in the current group), plus the paths of the group's pending
// member files so they can be merged and cleaned up together.
type runIndex struct {
	base string
	lz4  bool

	numPerGroup int

	numWritten      int
	numGroupWritten int
	groupPaths      []string
}

func newRunIndex(base string, lz4 bool, numPerGroup int) *runIndex {
	return &runIndex{base: base, lz4: lz4, numPerGroup: numPerGroup}
}

func (r *runIndex) grouping() bool { return r.numPerGroup > 0 }

// nextSpillPath returns the path the next spill should write to and
// whether it is a group member (vs. a flat run), per spec.md §4.9.
func (r *runIndex) nextSpillPath() (path string, isGroupMember bool) {
	if r.grouping() {
		return groupRunName(r.base, r.numGroupWritten, r.lz4), true
	}
	return runName(r.base, r.numWritten, r.lz4), false
}

// recordFlatSpill advances the flat-run counter after a non-grouped
// spill lands at its path.
func (r *runIndex) recordFlatSpill() {
	r.numWritten++
}

// recordGroupMember advances the group counter after a group-member
// spill lands at its path, and reports whether the group is now full
// (num_group_written == num_per_group) and must be merged.
func (r *runIndex) recordGroupMember(path string) (full bool) {
	r.groupPaths = append(r.groupPaths, path)
	r.numGroupWritten++
	return r.numGroupWritten == r.numPerGroup
}

// nextGroupMergePath is the flat-run-namespace path a completed group
// merges into (spec.md §4.9: "open a new temporary <base>_<num_written>_tmp
// (flat-run namespace)").
func (r *runIndex) nextGroupMergePath() string {
	return runName(r.base, r.numWritten, r.lz4)
}

// finishGroupMerge resets the group counters after a completed group has
// been merged into a flat run, per spec.md §4.9.
func (r *runIndex) finishGroupMerge() {
	r.numWritten++
	r.numGroupWritten = 0
	r.groupPaths = nil
}

// allFlatRunPaths returns every flat run path that currently exists
// (0..num_written-1), used to assemble the final merge.
func (r *runIndex) allFlatRunPaths() []string {
	paths := make([]string, 0, r.numWritten)
	for i := 0; i < r.numWritten; i++ {
		paths = append(paths, runName(r.base, i, r.lz4))
	}
	return paths
}

// pendingGroupPaths returns the current (not-yet-full) group's member
// paths, used by IntoInput when a group never reached num_per_group.
func (r *runIndex) pendingGroupPaths() []string {
	return r.groupPaths
}
