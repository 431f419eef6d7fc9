package ext2_test

import (
	"testing"

	"github.com/ext2go/ext2go/filesystem/ext2"
	"github.com/ext2go/ext2go/testhelper"
)

// newTestVolume formats a tiny in-memory volume and opens it for writing.
// 512 KiB at the default 1024-byte block size gives 512 blocks, comfortably
// under the single-group formatter's 8192-block ceiling.
func newTestVolume(t *testing.T, size int64) (*ext2.Volume, *testhelper.MemStorage) {
	t.Helper()
	mem := testhelper.NewMemStorage(size)
	v, err := ext2.Format(mem, size, nil)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	return v, mem
}

func reopenVolume(t *testing.T, mem *testhelper.MemStorage) *ext2.Volume {
	t.Helper()
	v, err := ext2.Open(mem, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return v
}
