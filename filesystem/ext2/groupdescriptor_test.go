package ext2

import "testing"

func TestGroupDescriptorRoundTrip(t *testing.T) {
	gd := groupDescriptor{
		blockBitmap:     3,
		inodeBitmap:     4,
		inodeTable:      5,
		freeBlocksCount: 100,
		freeInodesCount: 50,
		usedDirsCount:   2,
	}
	raw := gd.toBytes()
	if len(raw) != groupDescriptorSize {
		t.Fatalf("toBytes() length = %d, want %d", len(raw), groupDescriptorSize)
	}
	parsed := groupDescriptorFromBytes(raw)
	if !parsed.equal(&gd) {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", parsed, gd)
	}
}

func TestGroupDescriptorsFromBytesTooShort(t *testing.T) {
	if _, err := groupDescriptorsFromBytes(make([]byte, 10), 2); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestGdtStartBlock(t *testing.T) {
	sb := &superblock{firstDataBlock: 0}
	if got := gdtStartBlock(sb); got != 1 {
		t.Fatalf("gdtStartBlock() = %d, want 1", got)
	}
}
