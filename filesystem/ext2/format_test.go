package ext2

import (
	"testing"

	"github.com/ext2go/ext2go/testhelper"
)

func TestFormatFreeCountsMatchLayout(t *testing.T) {
	const size = 512 * 1024
	mem := testhelper.NewMemStorage(size)
	v, err := Format(mem, size, nil)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	if v.sb.freeBlocksCount == 0 || v.sb.freeBlocksCount >= v.sb.blocksCount {
		t.Fatalf("freeBlocksCount = %d out of expected range (blocksCount=%d)", v.sb.freeBlocksCount, v.sb.blocksCount)
	}
	// inodes 1-11 (reserved + root + lost+found) are always used.
	if v.sb.freeInodesCount != v.sb.inodesCount-11 {
		t.Fatalf("freeInodesCount = %d, want %d", v.sb.freeInodesCount, v.sb.inodesCount-11)
	}

	var blockSum, inodeSum uint32
	for _, gd := range v.gdt.table {
		blockSum += uint32(gd.freeBlocksCount)
		inodeSum += uint32(gd.freeInodesCount)
	}
	if blockSum != v.sb.freeBlocksCount {
		t.Fatalf("sum of group free_blocks_count = %d, want sb.freeBlocksCount = %d", blockSum, v.sb.freeBlocksCount)
	}
	if inodeSum != v.sb.freeInodesCount {
		t.Fatalf("sum of group free_inodes_count = %d, want sb.freeInodesCount = %d", inodeSum, v.sb.freeInodesCount)
	}
}

func TestFormatRootAndLostFoundWired(t *testing.T) {
	const size = 512 * 1024
	mem := testhelper.NewMemStorage(size)
	v, err := Format(mem, size, nil)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	root, err := v.readInode(rootInodeNumber)
	if err != nil {
		t.Fatalf("readInode(root): %v", err)
	}
	if !root.isDir() {
		t.Fatal("root inode is not a directory")
	}

	lostFound, err := v.lookupInDir(root, "lost+found")
	if err != nil {
		t.Fatalf("lookupInDir(lost+found): %v", err)
	}
	if lostFound != lostFoundInodeNumber {
		t.Fatalf("root's lost+found entry points to inode %d, want %d", lostFound, lostFoundInodeNumber)
	}

	lf, err := v.readInode(lostFoundInodeNumber)
	if err != nil {
		t.Fatalf("readInode(lost+found): %v", err)
	}
	if !lf.isDir() {
		t.Fatal("lost+found inode is not a directory")
	}
	dotdot, err := v.lookupInDir(lf, "..")
	if err != nil {
		t.Fatalf("lookupInDir(lost+found, ..): %v", err)
	}
	if dotdot != rootInodeNumber {
		t.Fatalf("lost+found's .. points to inode %d, want root %d", dotdot, rootInodeNumber)
	}
}

func TestFormatRootHasSlackForNewEntries(t *testing.T) {
	// A fresh root must have room to mkdir/touch without allocating a new
	// block, the same way mke2fs leaves lost+found's rec_len open to the
	// block boundary.
	const size = 512 * 1024
	mem := testhelper.NewMemStorage(size)
	v, err := Format(mem, size, nil)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	before := v.sb.freeBlocksCount
	if err := v.Mkdir(v.RootInode(), "/a"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	after := v.sb.freeBlocksCount
	// Mkdir consumes exactly one block (the new directory's own data
	// block); root's own block must not have needed to grow.
	if before-after != 1 {
		t.Fatalf("free blocks dropped by %d, want 1 (root directory block grew unexpectedly)", before-after)
	}
}

func TestFormatRejectsOversizedVolume(t *testing.T) {
	const size = 64 * 1024 * 1024 // needs more than one block group at 1024-byte blocks
	mem := testhelper.NewMemStorage(size)
	if _, err := Format(mem, size, nil); err == nil {
		t.Fatal("Format succeeded on a volume too large for the single-group formatter, want error")
	}
}

func TestFormatRejectsInvalidBlockSize(t *testing.T) {
	mem := testhelper.NewMemStorage(64 * 1024)
	if _, err := Format(mem, 64*1024, &Params{BlockSize: 3}); err == nil {
		t.Fatal("Format succeeded with an invalid block size, want error")
	}
}
