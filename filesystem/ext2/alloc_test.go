package ext2

import (
	"testing"

	"github.com/ext2go/ext2go/testhelper"
)

func newAllocTestVolume(t *testing.T) *Volume {
	t.Helper()
	mem := testhelper.NewMemStorage(512 * 1024)
	v, err := Format(mem, 512*1024, nil)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	return v
}

func TestAllocateFreeBlockRoundTrip(t *testing.T) {
	v := newAllocTestVolume(t)
	before := v.sb.freeBlocksCount

	n, err := v.allocateBlock(0)
	if err != nil {
		t.Fatalf("allocateBlock: %v", err)
	}
	if v.sb.freeBlocksCount != before-1 {
		t.Fatalf("freeBlocksCount after allocate = %d, want %d", v.sb.freeBlocksCount, before-1)
	}
	if err := v.freeBlock(n); err != nil {
		t.Fatalf("freeBlock: %v", err)
	}
	if v.sb.freeBlocksCount != before {
		t.Fatalf("freeBlocksCount after free = %d, want %d", v.sb.freeBlocksCount, before)
	}
}

func TestAllocateFreeInodeRoundTrip(t *testing.T) {
	v := newAllocTestVolume(t)
	before := v.sb.freeInodesCount

	n, err := v.allocateInode(0)
	if err != nil {
		t.Fatalf("allocateInode: %v", err)
	}
	if v.sb.freeInodesCount != before-1 {
		t.Fatalf("freeInodesCount after allocate = %d, want %d", v.sb.freeInodesCount, before-1)
	}
	if err := v.freeInode(n); err != nil {
		t.Fatalf("freeInode: %v", err)
	}
	if v.sb.freeInodesCount != before {
		t.Fatalf("freeInodesCount after free = %d, want %d", v.sb.freeInodesCount, before)
	}
}

func TestFreeAlreadyFreeBlockIsIdempotent(t *testing.T) {
	v := newAllocTestVolume(t)
	n, err := v.allocateBlock(0)
	if err != nil {
		t.Fatalf("allocateBlock: %v", err)
	}
	if err := v.freeBlock(n); err != nil {
		t.Fatalf("freeBlock: %v", err)
	}
	before := v.sb.freeBlocksCount
	if err := v.freeBlock(n); err != nil {
		t.Fatalf("freeBlock (again): %v", err)
	}
	if v.sb.freeBlocksCount != before {
		t.Fatalf("double-free changed freeBlocksCount: got %d, want %d", v.sb.freeBlocksCount, before)
	}
}

func TestAllocateBlockGroupCountersSumToSuperblock(t *testing.T) {
	v := newAllocTestVolume(t)
	if _, err := v.allocateBlock(0); err != nil {
		t.Fatalf("allocateBlock: %v", err)
	}
	var sum uint32
	for _, gd := range v.gdt.table {
		sum += uint32(gd.freeBlocksCount)
	}
	if sum != v.sb.freeBlocksCount {
		t.Fatalf("sum of group free_blocks_count = %d, want sb.freeBlocksCount = %d", sum, v.sb.freeBlocksCount)
	}
}
