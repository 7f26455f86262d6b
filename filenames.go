package recwriter

import (
	"fmt"
	"path/filepath"
	"strings"
)

// knownExt returns the suffix recwriter treats specially for sink
// selection and filename derivation: ".lz4", ".gz", or "" (spec.md §4.5,
// §6 filename conventions).
func knownExt(path string) string {
	ext := filepath.Ext(path)
	switch ext {
	case ".lz4", ".gz":
		return ext
	default:
		return ""
	}
}

// stripKnownExt returns path with its trailing .lz4/.gz removed, plus the
// extension itself.
func stripKnownExt(path string) (base, ext string) {
	ext = knownExt(path)
	return strings.TrimSuffix(path, ext), ext
}

// safeName is the staging path used by safe mode (spec.md §6):
// "<P-without-final-extension>-safe<ext>", renamed to P on success.
func safeName(path string) string {
	base, ext := stripKnownExt(path)
	return base + "-safe" + ext
}

// ackName is the out-of-band completion marker path (spec.md §6).
func ackName(path string) string {
	return path + ".ack"
}

// partitionName is "<base>_<i>" or "<base>_<i>.lz4"/".gz" if base had that
// extension (spec.md §6).
func partitionName(base string, i int) string {
	b, ext := stripKnownExt(base)
	return fmt.Sprintf("%s_%d%s", b, i, ext)
}

// unsortedPartitionName is "<base>_unsorted_<i>[.lz4]" (spec.md §6). Note
// unsorted partition files are always prefix-framed (so they can be read
// back by the post-sort worker) but may still be LZ4-compressed if
// lz4_tmp requested it; the gzip extension never applies here since
// spilled partitions are never gzipped (only the final merge output is).
func unsortedPartitionName(base string, i int, lz4 bool) string {
	b, _ := stripKnownExt(base)
	if lz4 {
		return fmt.Sprintf("%s_unsorted_%d.lz4", b, i)
	}
	return fmt.Sprintf("%s_unsorted_%d", b, i)
}

// runName is a sorted writer's flat run file: "<P-stripped>_<id>_tmp[.lz4]"
// (spec.md §6).
func runName(base string, id int, lz4 bool) string {
	b, _ := stripKnownExt(base)
	if lz4 {
		return fmt.Sprintf("%s_%d_tmp.lz4", b, id)
	}
	return fmt.Sprintf("%s_%d_tmp", b, id)
}

// groupRunName is a sorted writer's group-merged run file:
// "<P-stripped>_<id>_gtmp[.lz4]" (spec.md §6).
func groupRunName(base string, id int, lz4 bool) string {
	b, _ := stripKnownExt(base)
	if lz4 {
		return fmt.Sprintf("%s_%d_gtmp.lz4", b, id)
	}
	return fmt.Sprintf("%s_%d_gtmp", b, id)
}
