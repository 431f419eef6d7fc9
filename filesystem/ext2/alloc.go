package ext2

import "fmt"

// allocateInode reserves the first free inode, searching group hint first
// and then wrapping around the rest of the table, per spec.md §4.5.
// Updates the group's inode bitmap, the group descriptor's free count, and
// the superblock's free count, and persists all three before returning.
func (v *Volume) allocateInode(hint int) (uint32, error) {
	if v.readOnly {
		return 0, ErrReadOnly
	}
	n := len(v.gdt.table)
	if hint < 0 || hint >= n {
		hint = 0
	}
	for i := 0; i < n; i++ {
		group := (hint + i) % n
		gd := &v.gdt.table[group]
		if gd.freeInodesCount == 0 {
			continue
		}
		bm, err := v.readGroupBitmap(gd.inodeBitmap)
		if err != nil {
			return 0, err
		}
		bit := bm.FirstFree(0)
		if bit < 0 || uint32(bit) >= v.sb.inodesPerGroup {
			return 0, fmt.Errorf("%w: group %d reports %d free inodes but its bitmap is exhausted", ErrCorrupt, group, gd.freeInodesCount)
		}
		if err := bm.Set(bit); err != nil {
			return 0, err
		}
		if err := v.writeGroupBitmap(gd.inodeBitmap, bm); err != nil {
			return 0, err
		}
		gd.freeInodesCount--
		v.sb.freeInodesCount--
		if err := v.writeGroupDescriptor(group); err != nil {
			return 0, err
		}
		if err := v.writeSuperblock(); err != nil {
			return 0, err
		}
		number := uint32(group)*v.sb.inodesPerGroup + uint32(bit) + 1
		v.log.WithField("inode", number).Debug("allocated inode")
		return number, nil
	}
	return 0, fmt.Errorf("%w: no free inodes", ErrNoSpace)
}

// freeInode clears inode n's bit and restores the free counters. Freeing an
// already-free inode is idempotent: it logs a warning and returns nil
// rather than erroring, since a caller retrying a partially failed
// rollback should not be punished for it.
func (v *Volume) freeInode(n uint32) error {
	if v.readOnly {
		return ErrReadOnly
	}
	if n == 0 || n > v.sb.inodesCount {
		return fmt.Errorf("%w: inode %d out of range", ErrCorrupt, n)
	}
	group, index := inodeLocation(n, v.sb.inodesPerGroup)
	if int(group) >= len(v.gdt.table) {
		return fmt.Errorf("%w: inode %d maps to out-of-range group %d", ErrCorrupt, n, group)
	}
	gd := &v.gdt.table[group]
	bm, err := v.readGroupBitmap(gd.inodeBitmap)
	if err != nil {
		return err
	}
	set, err := bm.IsSet(int(index))
	if err != nil {
		return err
	}
	if !set {
		v.log.WithField("inode", n).Warn("freeing already-free inode")
		return nil
	}
	if err := bm.Clear(int(index)); err != nil {
		return err
	}
	if err := v.writeGroupBitmap(gd.inodeBitmap, bm); err != nil {
		return err
	}
	gd.freeInodesCount++
	v.sb.freeInodesCount++
	if err := v.writeGroupDescriptor(int(group)); err != nil {
		return err
	}
	return v.writeSuperblock()
}

// allocateBlock reserves the first free data block, preferring the group
// named by hint (the "locality hint" of spec.md §4.5 — typically the
// owning inode's group, to keep a file's blocks near its inode).
func (v *Volume) allocateBlock(hint int) (uint32, error) {
	if v.readOnly {
		return 0, ErrReadOnly
	}
	n := len(v.gdt.table)
	if hint < 0 || hint >= n {
		hint = 0
	}
	for i := 0; i < n; i++ {
		group := (hint + i) % n
		gd := &v.gdt.table[group]
		if gd.freeBlocksCount == 0 {
			continue
		}
		bm, err := v.readGroupBitmap(gd.blockBitmap)
		if err != nil {
			return 0, err
		}
		bit := bm.FirstFree(0)
		if bit < 0 || uint32(bit) >= v.sb.blocksPerGroup {
			return 0, fmt.Errorf("%w: group %d reports %d free blocks but its bitmap is exhausted", ErrCorrupt, group, gd.freeBlocksCount)
		}
		if err := bm.Set(bit); err != nil {
			return 0, err
		}
		if err := v.writeGroupBitmap(gd.blockBitmap, bm); err != nil {
			return 0, err
		}
		gd.freeBlocksCount--
		v.sb.freeBlocksCount--
		if err := v.writeGroupDescriptor(group); err != nil {
			return 0, err
		}
		if err := v.writeSuperblock(); err != nil {
			return 0, err
		}
		number := v.sb.firstDataBlock + uint32(group)*v.sb.blocksPerGroup + uint32(bit)
		v.log.WithField("block", number).Debug("allocated block")
		return number, nil
	}
	return 0, fmt.Errorf("%w: no free blocks", ErrNoSpace)
}

// freeBlock clears block n's bit and restores the free counters. Like
// freeInode, freeing an already-free block is idempotent.
func (v *Volume) freeBlock(n uint32) error {
	if v.readOnly {
		return ErrReadOnly
	}
	if n < v.sb.firstDataBlock || n >= v.sb.blocksCount {
		return fmt.Errorf("%w: block %d out of range", ErrCorrupt, n)
	}
	rel := n - v.sb.firstDataBlock
	group := rel / v.sb.blocksPerGroup
	index := rel % v.sb.blocksPerGroup
	if int(group) >= len(v.gdt.table) {
		return fmt.Errorf("%w: block %d maps to out-of-range group %d", ErrCorrupt, n, group)
	}
	gd := &v.gdt.table[group]
	bm, err := v.readGroupBitmap(gd.blockBitmap)
	if err != nil {
		return err
	}
	set, err := bm.IsSet(int(index))
	if err != nil {
		return err
	}
	if !set {
		v.log.WithField("block", n).Warn("freeing already-free block")
		return nil
	}
	if err := bm.Clear(int(index)); err != nil {
		return err
	}
	if err := v.writeGroupBitmap(gd.blockBitmap, bm); err != nil {
		return err
	}
	gd.freeBlocksCount++
	v.sb.freeBlocksCount++
	if err := v.writeGroupDescriptor(int(group)); err != nil {
		return err
	}
	return v.writeSuperblock()
}

// groupOfInode returns the block group that owns inode n, for use as an
// allocation locality hint.
func groupOfInode(n uint32, inodesPerGroup uint32) int {
	group, _ := inodeLocation(n, inodesPerGroup)
	return int(group)
}
