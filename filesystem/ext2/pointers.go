package ext2

import (
	"encoding/binary"
	"fmt"
)

// directPointers is the number of direct block slots in an inode
// (block[0..12)), per spec.md §4.6.
const directPointers = 12

const (
	singleIndirectSlot = 12
	doubleIndirectSlot = 13
	tripleIndirectSlot = 14
)

// ptrsPerBlock returns how many 4-byte block pointers fit in one block.
func (v *Volume) ptrsPerBlock() uint32 {
	return v.blockSize / 4
}

// readPointerBlock loads block n and interprets it as an array of
// little-endian uint32 block pointers.
func (v *Volume) readPointerBlock(n uint32) ([]uint32, error) {
	buf, err := v.readBlock(n)
	if err != nil {
		return nil, err
	}
	count := len(buf) / 4
	ptrs := make([]uint32, count)
	for i := 0; i < count; i++ {
		ptrs[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return ptrs, nil
}

func (v *Volume) writePointerBlock(n uint32, ptrs []uint32) error {
	buf := make([]byte, v.blockSize)
	for i, p := range ptrs {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], p)
	}
	return v.writeBlock(n, buf)
}

// indirectionLevel bounds how deep dataBlocks descends the pointer tree.
// 0 = direct only, 1 = +single indirect, 2 = +double indirect, 3 = +triple
// indirect (full read support per spec.md §4.6/§4.7).
type indirectionLevel int

const (
	levelDirect indirectionLevel = 0
	levelL1     indirectionLevel = 1
	levelL2     indirectionLevel = 2
	levelL3     indirectionLevel = 3
)

// dataBlocks walks the inode's pointer tree in logical order and returns
// the physical block numbers it addresses, stopping at the first zero
// pointer encountered at any level: for file reads that zero pointer
// means "hole" (end of allocated data, treated as end of stream by this
// driver); for directory iteration it means the indirect subtree below it
// is unused. This single short-circuit rule serves both callers per
// spec.md §4.6.
func (v *Volume) dataBlocks(ino *inode, maxLevel indirectionLevel) ([]uint32, error) {
	var blocks []uint32

	for i := 0; i < directPointers; i++ {
		if ino.block[i] == 0 {
			return blocks, nil
		}
		blocks = append(blocks, ino.block[i])
	}
	if maxLevel < levelL1 || ino.block[singleIndirectSlot] == 0 {
		return blocks, nil
	}
	l1, err := v.readPointerBlock(ino.block[singleIndirectSlot])
	if err != nil {
		return nil, fmt.Errorf("reading single-indirect block: %w", err)
	}
	for _, p := range l1 {
		if p == 0 {
			return blocks, nil
		}
		blocks = append(blocks, p)
	}

	if maxLevel < levelL2 || ino.block[doubleIndirectSlot] == 0 {
		return blocks, nil
	}
	l2root, err := v.readPointerBlock(ino.block[doubleIndirectSlot])
	if err != nil {
		return nil, fmt.Errorf("reading double-indirect root: %w", err)
	}
	for _, l1ptr := range l2root {
		if l1ptr == 0 {
			return blocks, nil
		}
		l1list, err := v.readPointerBlock(l1ptr)
		if err != nil {
			return nil, fmt.Errorf("reading double-indirect leaf: %w", err)
		}
		for _, p := range l1list {
			if p == 0 {
				return blocks, nil
			}
			blocks = append(blocks, p)
		}
	}

	if maxLevel < levelL3 || ino.block[tripleIndirectSlot] == 0 {
		return blocks, nil
	}
	l3root, err := v.readPointerBlock(ino.block[tripleIndirectSlot])
	if err != nil {
		return nil, fmt.Errorf("reading triple-indirect root: %w", err)
	}
	for _, l2ptr := range l3root {
		if l2ptr == 0 {
			return blocks, nil
		}
		l2list, err := v.readPointerBlock(l2ptr)
		if err != nil {
			return nil, fmt.Errorf("reading triple-indirect L2: %w", err)
		}
		for _, l1ptr := range l2list {
			if l1ptr == 0 {
				return blocks, nil
			}
			l1list, err := v.readPointerBlock(l1ptr)
			if err != nil {
				return nil, fmt.Errorf("reading triple-indirect L1: %w", err)
			}
			for _, p := range l1list {
				if p == 0 {
					return blocks, nil
				}
				blocks = append(blocks, p)
			}
		}
	}
	return blocks, nil
}

// attachBlock links a freshly allocated data block newBlock into ino's
// pointer tree, used by the directory entry engine when a directory
// outgrows its existing slack (spec.md §4.6 write-side traversal).
// Triple indirect is not implemented — an explicit, documented limit.
func (v *Volume) attachBlock(ino *inode, newBlock uint32, allocBlock func() (uint32, error)) error {
	for i := 0; i < directPointers; i++ {
		if ino.block[i] == 0 {
			ino.block[i] = newBlock
			return nil
		}
	}

	ptrsPer := v.ptrsPerBlock()

	if ino.block[singleIndirectSlot] == 0 {
		l1Block, err := allocBlock()
		if err != nil {
			return fmt.Errorf("allocating single-indirect block: %w", err)
		}
		ino.block[singleIndirectSlot] = l1Block
		ptrs := make([]uint32, ptrsPer)
		ptrs[0] = newBlock
		return v.writePointerBlock(l1Block, ptrs)
	}
	l1, err := v.readPointerBlock(ino.block[singleIndirectSlot])
	if err != nil {
		return err
	}
	for i, p := range l1 {
		if p == 0 {
			l1[i] = newBlock
			return v.writePointerBlock(ino.block[singleIndirectSlot], l1)
		}
	}

	if ino.block[doubleIndirectSlot] == 0 {
		l2Root, err := allocBlock()
		if err != nil {
			return fmt.Errorf("allocating double-indirect root: %w", err)
		}
		l1Block, err := allocBlock()
		if err != nil {
			return fmt.Errorf("allocating double-indirect leaf: %w", err)
		}
		ino.block[doubleIndirectSlot] = l2Root
		rootPtrs := make([]uint32, ptrsPer)
		rootPtrs[0] = l1Block
		if err := v.writePointerBlock(l2Root, rootPtrs); err != nil {
			return err
		}
		leafPtrs := make([]uint32, ptrsPer)
		leafPtrs[0] = newBlock
		return v.writePointerBlock(l1Block, leafPtrs)
	}

	l2root, err := v.readPointerBlock(ino.block[doubleIndirectSlot])
	if err != nil {
		return err
	}
	for i, l1ptr := range l2root {
		if l1ptr == 0 {
			// allocate a new L1 leaf and link it into the existing L2 root
			l1Block, err := allocBlock()
			if err != nil {
				return fmt.Errorf("allocating double-indirect leaf: %w", err)
			}
			l2root[i] = l1Block
			if err := v.writePointerBlock(ino.block[doubleIndirectSlot], l2root); err != nil {
				return err
			}
			leafPtrs := make([]uint32, ptrsPer)
			leafPtrs[0] = newBlock
			return v.writePointerBlock(l1Block, leafPtrs)
		}
		leaf, err := v.readPointerBlock(l1ptr)
		if err != nil {
			return err
		}
		for j, p := range leaf {
			if p == 0 {
				leaf[j] = newBlock
				return v.writePointerBlock(l1ptr, leaf)
			}
		}
	}

	return fmt.Errorf("%w: directory has exhausted direct, single- and double-indirect pointers (triple-indirect writes unsupported)", ErrNoFit)
}
