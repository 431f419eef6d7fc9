// Package ext2 implements the on-disk structural layer, block pointer
// traversal, allocator, directory entry engine, path resolver, and
// high-level operations of an ext2-compatible filesystem driver.
package ext2

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ext2go/ext2go/backend"
	"github.com/ext2go/ext2go/util/bitmap"
)

// rootInodeNumber is the fixed inode number of the root directory.
const rootInodeNumber uint32 = 2

// lostFoundInodeNumber is the traditional inode number of /lost+found,
// created by Format.
const lostFoundInodeNumber uint32 = 11

// Volume is an open ext2 filesystem: a backing store plus the in-memory
// superblock and group descriptor table. It is not safe for concurrent
// use — spec.md §5 guarantees exactly one writer and no locking.
type Volume struct {
	backend   backend.Storage
	sb        *superblock
	gdt       *groupDescriptors
	blockSize uint32
	inodeSize uint16
	readOnly  bool
	log       *logrus.Entry
}

// Open reads and validates the superblock and group descriptor table from
// an already-open backend.Storage. On error the backend is left open; on
// success, closing the returned Volume also closes the backend.
func Open(b backend.Storage, readOnly bool) (*Volume, error) {
	raw := make([]byte, superblockSize)
	if _, err := b.ReadAt(raw, superblockOffset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	sb, err := superblockFromBytes(raw)
	if err != nil {
		return nil, err
	}

	v := &Volume{
		backend:   b,
		sb:        sb,
		blockSize: sb.blockSize(),
		inodeSize: sb.effectiveInodeSize(),
		readOnly:  readOnly,
		log:       newLogger(),
	}

	numGroups := sb.groupCount()
	gdtBlock := gdtStartBlock(sb)
	gdtBuf := make([]byte, gdtByteLength(numGroups))
	// the GDT may span more than one block; round up to whole blocks
	blocksNeeded := ceilDivU32(uint32(len(gdtBuf)), v.blockSize)
	raw = make([]byte, int64(blocksNeeded)*int64(v.blockSize))
	if _, err := b.ReadAt(raw, int64(gdtBlock)*int64(v.blockSize)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading group descriptor table: %w", err)
	}
	gdt, err := groupDescriptorsFromBytes(raw, numGroups)
	if err != nil {
		return nil, err
	}
	v.gdt = gdt

	v.log.WithFields(logrus.Fields{
		"groups":     numGroups,
		"block_size": v.blockSize,
		"inodes":     sb.inodesCount,
		"blocks":     sb.blocksCount,
	}).Debug("opened ext2 volume")

	return v, nil
}

// Close closes the underlying backend.
func (v *Volume) Close() error {
	return v.backend.Close()
}

// BlockSize returns the volume's block size in bytes.
func (v *Volume) BlockSize() uint32 {
	return v.blockSize
}

// RootInode returns the fixed root directory inode number.
func (v *Volume) RootInode() uint32 {
	return rootInodeNumber
}

// readBlock reads block n into a freshly allocated buffer of exactly
// BlockSize() bytes. Block 0 and any n >= blocks_count are programming
// errors, per spec.md §4.1.
func (v *Volume) readBlock(n uint32) ([]byte, error) {
	if n == 0 {
		return nil, fmt.Errorf("%w: block 0 is reserved (boot sector)", ErrCorrupt)
	}
	if n >= v.sb.blocksCount {
		return nil, fmt.Errorf("%w: block %d out of range (blocks_count=%d)", ErrCorrupt, n, v.sb.blocksCount)
	}
	buf := make([]byte, v.blockSize)
	nr, err := v.backend.ReadAt(buf, int64(n)*int64(v.blockSize))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading block %d: %w", n, err)
	}
	if nr != len(buf) && err != io.EOF {
		return nil, fmt.Errorf("short read on block %d: got %d of %d bytes", n, nr, len(buf))
	}
	return buf, nil
}

// writable returns the backend's write handle, translating the "not open
// for write" case into ErrReadOnly.
func (v *Volume) writable() (backend.WritableFile, error) {
	if v.readOnly {
		return nil, ErrReadOnly
	}
	w, err := v.backend.Writable()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadOnly, err)
	}
	return w, nil
}

// writeBlock writes buf (exactly BlockSize() bytes) to block n.
func (v *Volume) writeBlock(n uint32, buf []byte) error {
	w, err := v.writable()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: block 0 is reserved (boot sector)", ErrCorrupt)
	}
	if n >= v.sb.blocksCount {
		return fmt.Errorf("%w: block %d out of range (blocks_count=%d)", ErrCorrupt, n, v.sb.blocksCount)
	}
	if uint32(len(buf)) != v.blockSize {
		return fmt.Errorf("writing block %d: buffer is %d bytes, want %d", n, len(buf), v.blockSize)
	}
	nw, err := w.WriteAt(buf, int64(n)*int64(v.blockSize))
	if err != nil {
		return fmt.Errorf("writing block %d: %w", n, err)
	}
	if nw != len(buf) {
		return fmt.Errorf("short write on block %d: wrote %d of %d bytes", n, nw, len(buf))
	}
	return nil
}

// writeSuperblock persists the in-memory superblock at its fixed offset.
func (v *Volume) writeSuperblock() error {
	w, err := v.writable()
	if err != nil {
		return err
	}
	if _, err := w.WriteAt(v.sb.toBytes(), superblockOffset); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}

// writeGroupDescriptor writes back exactly one descriptor's record length,
// per spec.md §4.3: "A single descriptor is updated by computing its
// offset within the GDT and writing exactly its record length."
func (v *Volume) writeGroupDescriptor(group int) error {
	w, err := v.writable()
	if err != nil {
		return err
	}
	gdtBlock := gdtStartBlock(v.sb)
	offset := int64(gdtBlock)*int64(v.blockSize) + int64(group)*groupDescriptorSize
	if _, err := w.WriteAt(v.gdt.table[group].toBytes(), offset); err != nil {
		return fmt.Errorf("writing group descriptor %d: %w", group, err)
	}
	return nil
}

// readInode loads inode n (1-based, global). Rejects n == 0 and
// n > inodes_count per spec.md §4.4.
func (v *Volume) readInode(n uint32) (*inode, error) {
	if n == 0 {
		return nil, fmt.Errorf("%w: inode 0 is invalid", ErrCorrupt)
	}
	if n > v.sb.inodesCount {
		return nil, fmt.Errorf("%w: inode %d exceeds inodes_count %d", ErrCorrupt, n, v.sb.inodesCount)
	}
	group, index := inodeLocation(n, v.sb.inodesPerGroup)
	if int(group) >= len(v.gdt.table) {
		return nil, fmt.Errorf("%w: inode %d maps to out-of-range group %d", ErrCorrupt, n, group)
	}
	offset := inodeByteOffset(index, v.gdt.table[group].inodeTable, v.blockSize, v.inodeSize)
	buf := make([]byte, onDiskInodeSize)
	if _, err := v.backend.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading inode %d: %w", n, err)
	}
	return inodeFromBytes(buf, n)
}

// writeInode persists inode i. Only the legacy 128 bytes are written;
// trailing bytes of larger on-disk inode records are untouched.
func (v *Volume) writeInode(i *inode) error {
	w, err := v.writable()
	if err != nil {
		return err
	}
	if i.number == 0 || i.number > v.sb.inodesCount {
		return fmt.Errorf("%w: inode %d out of range", ErrCorrupt, i.number)
	}
	group, index := inodeLocation(i.number, v.sb.inodesPerGroup)
	offset := inodeByteOffset(index, v.gdt.table[group].inodeTable, v.blockSize, v.inodeSize)
	if _, err := w.WriteAt(i.toBytes(), offset); err != nil {
		return fmt.Errorf("writing inode %d: %w", i.number, err)
	}
	return nil
}

// readGroupBitmap loads the bitmap stored at block blockNum (either a group's
// block bitmap or inode bitmap location).
func (v *Volume) readGroupBitmap(blockNum uint32) (*bitmap.Bitmap, error) {
	buf, err := v.readBlock(blockNum)
	if err != nil {
		return nil, err
	}
	return bitmap.FromBytes(buf), nil
}

func (v *Volume) writeGroupBitmap(blockNum uint32, bm *bitmap.Bitmap) error {
	return v.writeBlock(blockNum, bm.ToBytes())
}
