package recwriter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownExt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".lz4", knownExt("/tmp/out.lz4"))
	assert.Equal(t, ".gz", knownExt("/tmp/out.gz"))
	assert.Equal(t, "", knownExt("/tmp/out"))
	assert.Equal(t, "", knownExt("/tmp/out.txt"))
}

func TestStripKnownExt(t *testing.T) {
	t.Parallel()

	base, ext := stripKnownExt("/tmp/out.lz4")
	assert.Equal(t, "/tmp/out", base)
	assert.Equal(t, ".lz4", ext)

	base, ext = stripKnownExt("/tmp/out")
	assert.Equal(t, "/tmp/out", base)
	assert.Equal(t, "", ext)
}

func TestSafeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/tmp/out-safe", safeName("/tmp/out"))
	assert.Equal(t, "/tmp/out-safe.lz4", safeName("/tmp/out.lz4"))
}

func TestAckName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/tmp/out.ack", ackName("/tmp/out"))
}

func TestPartitionName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/tmp/out_3", partitionName("/tmp/out", 3))
	assert.Equal(t, "/tmp/out_3.gz", partitionName("/tmp/out.gz", 3))
}

func TestUnsortedPartitionName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/tmp/out_unsorted_1", unsortedPartitionName("/tmp/out", 1, false))
	assert.Equal(t, "/tmp/out_unsorted_1.lz4", unsortedPartitionName("/tmp/out", 1, true))
}

func TestRunAndGroupRunName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/tmp/out_0_tmp", runName("/tmp/out", 0, false))
	assert.Equal(t, "/tmp/out_0_tmp.lz4", runName("/tmp/out", 0, true))
	assert.Equal(t, "/tmp/out_0_gtmp", groupRunName("/tmp/out", 0, false))
	assert.Equal(t, "/tmp/out_0_gtmp.lz4", groupRunName("/tmp/out", 0, true))
}
