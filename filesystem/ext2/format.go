package ext2

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ext2go/ext2go/backend"
	"github.com/ext2go/ext2go/util/bitmap"
	"github.com/ext2go/ext2go/util/timestamp"
)

// Params configures Format. Zero values pick sensible defaults.
type Params struct {
	BlockSize  uint32 // defaults to 1024
	VolumeName string // truncated to 16 bytes
	UUID       uuid.UUID
}

// bytesPerInode is the classic mke2fs default ratio used to size the
// inode table when the caller does not dictate an inode count.
const bytesPerInode = 4096

// Format writes a fresh, minimal ext2 filesystem of sizeBytes to b and
// returns it opened for writing, per SPEC_FULL.md §4.12. It always emits
// exactly one block group — a deliberate scope limit documented in
// DESIGN.md — so sizeBytes must fit within blockSize × 8 blocks (the span
// a single bitmap block can address), and never more than 65535 blocks.
func Format(b backend.Storage, sizeBytes int64, p *Params) (*Volume, error) {
	if p == nil {
		p = &Params{}
	}
	blockSize := p.BlockSize
	if blockSize == 0 {
		blockSize = 1024
	}
	if blockSize < 1024 || blockSize > 65536 {
		return nil, fmt.Errorf("%w: block size %d out of range", ErrInvalidSuperblock, blockSize)
	}

	totalBlocks := uint32(sizeBytes / int64(blockSize))
	maxBlocksPerGroup := blockSize * 8
	if maxBlocksPerGroup > 65535 {
		// group descriptor counters are 16-bit; this also bounds real
		// ext2 in practice since larger groups would overflow them
		maxBlocksPerGroup = 65535
	}
	if totalBlocks > maxBlocksPerGroup {
		return nil, fmt.Errorf("%w: volume needs %d blocks, single-group formatter supports at most %d", ErrNoFit, totalBlocks, maxBlocksPerGroup)
	}

	firstDataBlock := uint32(1)
	if blockSize > 1024 {
		firstDataBlock = 0
	}

	inodesCount := uint32(sizeBytes / bytesPerInode)
	if inodesCount < 16 {
		inodesCount = 16
	}
	inodesCount = (inodesCount + 7) &^ 7 // round up to a multiple of 8
	if inodesCount > maxBlocksPerGroup {
		inodesCount = maxBlocksPerGroup
	}

	inodeSize := uint16(128)
	inodeTableBlocks := ceilDivU32(inodesCount*uint32(inodeSize), blockSize)

	gdtBlock := firstDataBlock + 1
	gdtBlocks := ceilDivU32(uint32(gdtByteLength(1)), blockSize)
	blockBitmapBlock := gdtBlock + gdtBlocks
	inodeBitmapBlock := blockBitmapBlock + 1
	inodeTableBlock := inodeBitmapBlock + 1
	firstFreeBlock := inodeTableBlock + inodeTableBlocks

	if firstFreeBlock+2 >= totalBlocks {
		return nil, fmt.Errorf("%w: volume too small to hold metadata plus root and lost+found", ErrNoFit)
	}

	t := uint32(timestamp.GetTime().Unix())

	// addressableBlocks is the number of blocks the group's bitmap can
	// represent: the allocator indexes bit j as physical block
	// first_data_block+j (alloc.go), so the bitmap never covers the
	// reserved blocks below first_data_block.
	addressableBlocks := totalBlocks - firstDataBlock

	sb := &superblock{
		inodesCount:      inodesCount,
		blocksCount:      totalBlocks,
		freeBlocksCount:  totalBlocks,
		freeInodesCount:  inodesCount,
		firstDataBlock:   firstDataBlock,
		logBlockSize:     logOfBlockSize(blockSize),
		blocksPerGroup:   addressableBlocks,
		fragsPerGroup:    addressableBlocks,
		inodesPerGroup:   inodesCount,
		mtime:            t,
		wtime:            t,
		magic:            superblockMagic,
		state:            1,
		errors:           1,
		revLevel:         revision1Dynamic,
		firstIno:         11,
		inodeSize:        inodeSize,
		featureCompat:    0,
		featureIncompat:  0,
		featureRoCompat:  0,
		uuid:             p.UUID,
		volumeName:       volumeNameBytes(p.VolumeName),
	}
	if sb.uuid == uuid.Nil {
		sb.uuid = uuid.New()
	}

	gdt := &groupDescriptors{table: []groupDescriptor{{
		blockBitmap:     blockBitmapBlock,
		inodeBitmap:     inodeBitmapBlock,
		inodeTable:      inodeTableBlock,
		freeBlocksCount: uint16(totalBlocks),
		freeInodesCount: uint16(inodesCount),
		usedDirsCount:   0,
	}}}

	v := &Volume{
		backend:   b,
		sb:        sb,
		gdt:       gdt,
		blockSize: blockSize,
		inodeSize: inodeSize,
		readOnly:  false,
		log:       newLogger(),
	}

	// Both bitmaps occupy exactly one block on disk (the reason
	// maxBlocksPerGroup is capped at blockSize*8 above), and writeBlock
	// rejects any buffer whose length isn't exactly the block size, so
	// each is allocated a full block's worth of bytes rather than just
	// enough bits for addressableBlocks/inodesCount. Bits beyond those
	// counts stay 0 and are never reachable: allocateBlock/allocateInode
	// bound their search at blocksPerGroup/inodesPerGroup.
	blockBitmap := bitmap.NewBytes(int(blockSize))
	inodeBitmap := bitmap.NewBytes(int(blockSize))

	// markBlockUsed indexes the bitmap the same way the allocator does:
	// bit n-first_data_block for physical block n. Blocks below
	// first_data_block (the reserved boot block, when block_size==1024)
	// have no bit at all; they are reserved for good and are accounted
	// for in the free counts directly, below, instead of through the
	// bitmap.
	markBlockUsed := func(n uint32) {
		_ = blockBitmap.Set(int(n - firstDataBlock))
		sb.freeBlocksCount--
		gdt.table[0].freeBlocksCount--
	}
	for n := uint32(0); n < firstDataBlock; n++ {
		sb.freeBlocksCount--
		gdt.table[0].freeBlocksCount--
	}
	for n := firstDataBlock; n < firstFreeBlock; n++ {
		markBlockUsed(n)
	}

	markInodeUsed := func(n uint32) {
		_ = inodeBitmap.Set(int(n - 1))
		sb.freeInodesCount--
		gdt.table[0].freeInodesCount--
	}
	for n := uint32(1); n <= 10; n++ {
		markInodeUsed(n)
	}

	rootBlock := firstFreeBlock
	markBlockUsed(rootBlock)
	lostFoundBlock := firstFreeBlock + 1
	markBlockUsed(lostFoundBlock)
	// the root inode (2) was already marked by the reserved 1-10 loop above
	markInodeUsed(lostFoundInodeNumber)

	// "." and ".." get their tight footprints; "lost+found" takes the
	// remaining space all the way to the block boundary, the same way
	// mke2fs lays out a fresh root directory, so later mkdir/touch calls
	// in root have slack to split without allocating a new block.
	rootBuf := make([]byte, blockSize)
	writeDirentry(rootBuf, &direntry{inodeNum: rootInodeNumber, recLen: 12, nameLen: 1, fileType: deTypeDir, name: ".", offset: 0})
	writeDirentry(rootBuf, &direntry{inodeNum: rootInodeNumber, recLen: 12, nameLen: 2, fileType: deTypeDir, name: "..", offset: 12})
	writeDirentry(rootBuf, &direntry{inodeNum: lostFoundInodeNumber, recLen: uint16(blockSize) - 24, nameLen: 10, fileType: deTypeDir, name: "lost+found", offset: 24})

	lfBuf := make([]byte, blockSize)
	writeDirentry(lfBuf, &direntry{inodeNum: lostFoundInodeNumber, recLen: 12, nameLen: 1, fileType: deTypeDir, name: ".", offset: 0})
	writeDirentry(lfBuf, &direntry{inodeNum: rootInodeNumber, recLen: uint16(blockSize) - 12, nameLen: 2, fileType: deTypeDir, name: "..", offset: 12})

	rootInode := &inode{
		number:     rootInodeNumber,
		mode:       uint16(typeDirectory) | 0o755,
		size:       blockSize,
		linksCount: 3, // root's own "." and "..", and lost+found's ".."
		blocks:     blockSize / 512,
		atime:      t,
		ctime:      t,
		mtime:      t,
	}
	rootInode.block[0] = rootBlock

	lfInode := &inode{
		number:     lostFoundInodeNumber,
		mode:       uint16(typeDirectory) | 0o755,
		size:       blockSize,
		linksCount: 2,
		blocks:     blockSize / 512,
		atime:      t,
		ctime:      t,
		mtime:      t,
	}
	lfInode.block[0] = lostFoundBlock

	if err := v.writeSuperblock(); err != nil {
		return nil, err
	}
	if err := v.writeGroupDescriptor(0); err != nil {
		return nil, err
	}
	if err := v.writeGroupBitmap(blockBitmapBlock, blockBitmap); err != nil {
		return nil, err
	}
	if err := v.writeGroupBitmap(inodeBitmapBlock, inodeBitmap); err != nil {
		return nil, err
	}
	if err := v.writeBlock(rootBlock, rootBuf); err != nil {
		return nil, err
	}
	if err := v.writeBlock(lostFoundBlock, lfBuf); err != nil {
		return nil, err
	}
	if err := v.writeInode(rootInode); err != nil {
		return nil, err
	}
	if err := v.writeInode(lfInode); err != nil {
		return nil, err
	}

	v.log.WithField("blocks", totalBlocks).WithField("inodes", inodesCount).Info("formatted volume")
	return v, nil
}

// logOfBlockSize returns log2(blockSize/1024), the superblock's
// log_block_size encoding.
func logOfBlockSize(blockSize uint32) uint32 {
	var log uint32
	for v := blockSize / 1024; v > 1; v >>= 1 {
		log++
	}
	return log
}

func volumeNameBytes(name string) [16]byte {
	var out [16]byte
	copy(out[:], name)
	return out
}
