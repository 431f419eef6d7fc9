package ext2

import (
	"encoding/binary"
	"fmt"
)

// groupDescriptorSize is the classic 32-byte ext2 group descriptor record.
const groupDescriptorSize = 32

// groupDescriptor holds the per-block-group metadata named in spec.md §3.
type groupDescriptor struct {
	blockBitmap     uint32
	inodeBitmap     uint32
	inodeTable      uint32
	freeBlocksCount uint16
	freeInodesCount uint16
	usedDirsCount   uint16
}

func (gd *groupDescriptor) equal(a *groupDescriptor) bool {
	if gd == nil || a == nil {
		return gd == a
	}
	return *gd == *a
}

// groupDescriptors holds the full table, one entry per block group.
type groupDescriptors struct {
	table []groupDescriptor
}

func (g *groupDescriptors) equal(a *groupDescriptors) bool {
	if g == nil || a == nil {
		return g == a
	}
	if len(g.table) != len(a.table) {
		return false
	}
	for i := range g.table {
		if !g.table[i].equal(&a.table[i]) {
			return false
		}
	}
	return true
}

func groupDescriptorFromBytes(b []byte) groupDescriptor {
	le := binary.LittleEndian
	return groupDescriptor{
		blockBitmap:     le.Uint32(b[0:4]),
		inodeBitmap:     le.Uint32(b[4:8]),
		inodeTable:      le.Uint32(b[8:12]),
		freeBlocksCount: le.Uint16(b[12:14]),
		freeInodesCount: le.Uint16(b[14:16]),
		usedDirsCount:   le.Uint16(b[16:18]),
	}
}

func (gd *groupDescriptor) toBytes() []byte {
	b := make([]byte, groupDescriptorSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], gd.blockBitmap)
	le.PutUint32(b[4:8], gd.inodeBitmap)
	le.PutUint32(b[8:12], gd.inodeTable)
	le.PutUint16(b[12:14], gd.freeBlocksCount)
	le.PutUint16(b[14:16], gd.freeInodesCount)
	le.PutUint16(b[16:18], gd.usedDirsCount)
	return b
}

// gdtStartBlock returns the block the GDT begins at: first_data_block + 1,
// per spec.md §4.3.
func gdtStartBlock(sb *superblock) uint32 {
	return sb.firstDataBlock + 1
}

// gdtByteLength returns the size in bytes of the whole GDT.
func gdtByteLength(numGroups int) int {
	return numGroups * groupDescriptorSize
}

func groupDescriptorsFromBytes(b []byte, numGroups int) (*groupDescriptors, error) {
	need := gdtByteLength(numGroups)
	if len(b) < need {
		return nil, fmt.Errorf("%w: GDT buffer too short: need %d, have %d", ErrCorrupt, need, len(b))
	}
	gds := &groupDescriptors{table: make([]groupDescriptor, numGroups)}
	for i := 0; i < numGroups; i++ {
		start := i * groupDescriptorSize
		gds.table[i] = groupDescriptorFromBytes(b[start : start+groupDescriptorSize])
	}
	return gds, nil
}

func (g *groupDescriptors) toBytes() []byte {
	b := make([]byte, 0, gdtByteLength(len(g.table)))
	for i := range g.table {
		b = append(b, g.table[i].toBytes()...)
	}
	return b
}
