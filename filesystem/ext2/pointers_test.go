package ext2

import (
	"testing"

	"github.com/ext2go/ext2go/testhelper"
)

func newTestVolumeInternal(t *testing.T, size int64) *Volume {
	t.Helper()
	mem := testhelper.NewMemStorage(size)
	v, err := Format(mem, size, nil)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	return v
}

func TestDataBlocksDirectOnly(t *testing.T) {
	v := newTestVolumeInternal(t, 512*1024)
	ino := &inode{number: 999}
	ino.block[0] = 50
	ino.block[1] = 51
	blocks, err := v.dataBlocks(ino, levelL3)
	if err != nil {
		t.Fatalf("dataBlocks: %v", err)
	}
	if len(blocks) != 2 || blocks[0] != 50 || blocks[1] != 51 {
		t.Fatalf("dataBlocks direct = %v, want [50 51]", blocks)
	}
}

func TestDataBlocksStopsAtHole(t *testing.T) {
	v := newTestVolumeInternal(t, 512*1024)
	ino := &inode{number: 999}
	ino.block[0] = 50
	// block[1] left as hole (0)
	ino.block[2] = 52
	blocks, err := v.dataBlocks(ino, levelL3)
	if err != nil {
		t.Fatalf("dataBlocks: %v", err)
	}
	if len(blocks) != 1 || blocks[0] != 50 {
		t.Fatalf("dataBlocks with hole = %v, want [50]", blocks)
	}
}

func TestDataBlocksSingleIndirect(t *testing.T) {
	v := newTestVolumeInternal(t, 512*1024)
	l1Block, err := v.allocateBlock(0)
	if err != nil {
		t.Fatalf("allocateBlock: %v", err)
	}
	if err := v.writePointerBlock(l1Block, []uint32{70, 71, 72}); err != nil {
		t.Fatalf("writePointerBlock: %v", err)
	}
	ino := &inode{number: 999}
	for i := 0; i < directPointers; i++ {
		ino.block[i] = uint32(10 + i)
	}
	ino.block[singleIndirectSlot] = l1Block
	blocks, err := v.dataBlocks(ino, levelL1)
	if err != nil {
		t.Fatalf("dataBlocks: %v", err)
	}
	if len(blocks) != directPointers+3 {
		t.Fatalf("got %d blocks, want %d", len(blocks), directPointers+3)
	}
	if blocks[directPointers] != 70 || blocks[directPointers+2] != 72 {
		t.Fatalf("single-indirect blocks wrong: %v", blocks)
	}
}

func TestAttachBlockFillsDirectSlotsFirst(t *testing.T) {
	v := newTestVolumeInternal(t, 512*1024)
	ino := &inode{number: 999}
	for i := 0; i < directPointers-1; i++ {
		ino.block[i] = uint32(20 + i)
	}
	if err := v.attachBlock(ino, 999, func() (uint32, error) { return v.allocateBlock(0) }); err != nil {
		t.Fatalf("attachBlock: %v", err)
	}
	if ino.block[directPointers-1] != 999 {
		t.Fatalf("attachBlock did not fill last direct slot: %v", ino.block)
	}
}

func TestAttachBlockAllocatesSingleIndirect(t *testing.T) {
	v := newTestVolumeInternal(t, 512*1024)
	ino := &inode{number: 999}
	for i := 0; i < directPointers; i++ {
		ino.block[i] = uint32(20 + i)
	}
	if err := v.attachBlock(ino, 777, func() (uint32, error) { return v.allocateBlock(0) }); err != nil {
		t.Fatalf("attachBlock: %v", err)
	}
	if ino.block[singleIndirectSlot] == 0 {
		t.Fatal("attachBlock did not allocate single-indirect block")
	}
	ptrs, err := v.readPointerBlock(ino.block[singleIndirectSlot])
	if err != nil {
		t.Fatalf("readPointerBlock: %v", err)
	}
	if ptrs[0] != 777 {
		t.Fatalf("single-indirect leaf[0] = %d, want 777", ptrs[0])
	}
}
