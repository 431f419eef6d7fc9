package ext2

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// superblockMagic is the fixed ext2 magic number, byte offset 56 within the
// superblock record.
const superblockMagic uint16 = 0xEF53

// superblockOffset is the fixed byte offset of the superblock on every
// ext2 volume, regardless of block size.
const superblockOffset int64 = 1024

// superblockSize is the on-disk record size read/written for the
// superblock. ext2 reserves a full 1024-byte region for it.
const superblockSize = 1024

const (
	revision0GoodOldRev = 0
	revision1Dynamic    = 1
)

// superblock is the in-memory form of the ext2 volume header.
//
// Field names follow the on-disk layout named in spec.md §3; the byte
// offsets are documented inline in superblockFromBytes since that is
// where the packed layout actually matters.
type superblock struct {
	inodesCount      uint32
	blocksCount      uint32
	rBlocksCount     uint32
	freeBlocksCount  uint32
	freeInodesCount  uint32
	firstDataBlock   uint32
	logBlockSize     uint32
	logFragSize      uint32
	blocksPerGroup   uint32
	fragsPerGroup    uint32
	inodesPerGroup   uint32
	mtime            uint32
	wtime            uint32
	mntCount         uint16
	maxMntCount      uint16
	magic            uint16
	state            uint16
	errors           uint16
	minorRevLevel    uint16
	lastCheck        uint32
	checkInterval    uint32
	creatorOS        uint32
	revLevel         uint32
	defResUID        uint16
	defResGID        uint16
	firstIno         uint32
	inodeSize        uint16
	blockGroupNr     uint16
	featureCompat    uint32
	featureIncompat  uint32
	featureRoCompat  uint32
	uuid             uuid.UUID
	volumeName       [16]byte
	lastMounted      [64]byte
}

func (sb *superblock) equal(a *superblock) bool {
	if sb == nil || a == nil {
		return sb == a
	}
	return *sb == *a
}

// blockSize returns the block size in bytes, derived from logBlockSize per
// spec.md §3: block_size = 1024 << log_block_size.
func (sb *superblock) blockSize() uint32 {
	return 1024 << sb.logBlockSize
}

// groupCount returns the number of block groups, computed from the block
// count. spec.md §3 requires this to equal the count computed from
// inodes; validate() checks that invariant.
func (sb *superblock) groupCount() int {
	return int(ceilDivU32(sb.blocksCount-sb.firstDataBlock, sb.blocksPerGroup))
}

func (sb *superblock) groupCountByInodes() int {
	return int(ceilDivU32(sb.inodesCount, sb.inodesPerGroup))
}

// effectiveInodeSize returns the on-disk inode record size: 128 for
// revision 0, or the superblock's inodeSize field for revision >= 1.
func (sb *superblock) effectiveInodeSize() uint16 {
	if sb.revLevel < revision1Dynamic {
		return 128
	}
	return sb.inodeSize
}

func ceilDivU32(n, d uint32) uint32 {
	if d == 0 {
		return 0
	}
	return (n + d - 1) / d
}

// superblockFromBytes parses a 1024-byte superblock record. Every header
// field up to last_mounted (bytes 0-200) is populated; bytes after that are
// ignored. Revision-1-only fields
// (firstIno, inodeSize, uuid, volumeName, lastMounted) are parsed
// unconditionally but only meaningful when revLevel >= 1.
func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) < superblockSize {
		return nil, fmt.Errorf("%w: superblock record too short (%d bytes)", ErrInvalidSuperblock, len(b))
	}
	le := binary.LittleEndian
	sb := &superblock{
		inodesCount:     le.Uint32(b[0:4]),
		blocksCount:     le.Uint32(b[4:8]),
		rBlocksCount:    le.Uint32(b[8:12]),
		freeBlocksCount: le.Uint32(b[12:16]),
		freeInodesCount: le.Uint32(b[16:20]),
		firstDataBlock:  le.Uint32(b[20:24]),
		logBlockSize:    le.Uint32(b[24:28]),
		logFragSize:     le.Uint32(b[28:32]),
		blocksPerGroup:  le.Uint32(b[32:36]),
		fragsPerGroup:   le.Uint32(b[36:40]),
		inodesPerGroup:  le.Uint32(b[40:44]),
		mtime:           le.Uint32(b[44:48]),
		wtime:           le.Uint32(b[48:52]),
		mntCount:        le.Uint16(b[52:54]),
		maxMntCount:     le.Uint16(b[54:56]),
		magic:           le.Uint16(b[56:58]),
		state:           le.Uint16(b[58:60]),
		errors:          le.Uint16(b[60:62]),
		minorRevLevel:   le.Uint16(b[62:64]),
		lastCheck:       le.Uint32(b[64:68]),
		checkInterval:   le.Uint32(b[68:72]),
		creatorOS:       le.Uint32(b[72:76]),
		revLevel:        le.Uint32(b[76:80]),
		defResUID:       le.Uint16(b[80:82]),
		defResGID:       le.Uint16(b[82:84]),
		firstIno:        le.Uint32(b[84:88]),
		inodeSize:       le.Uint16(b[88:90]),
		blockGroupNr:    le.Uint16(b[90:92]),
		featureCompat:   le.Uint32(b[92:96]),
		featureIncompat: le.Uint32(b[96:100]),
		featureRoCompat: le.Uint32(b[100:104]),
	}
	uid, err := uuid.FromBytes(b[104:120])
	if err == nil {
		sb.uuid = uid
	}
	copy(sb.volumeName[:], b[120:136])
	copy(sb.lastMounted[:], b[136:200])

	if err := sb.validate(); err != nil {
		return nil, err
	}
	return sb, nil
}

// toBytes serializes the superblock back to its 1024-byte on-disk record.
// Bytes beyond the fields this driver understands (reserved padding) are
// left zeroed, matching the fields captured by superblockFromBytes.
func (sb *superblock) toBytes() []byte {
	b := make([]byte, superblockSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], sb.inodesCount)
	le.PutUint32(b[4:8], sb.blocksCount)
	le.PutUint32(b[8:12], sb.rBlocksCount)
	le.PutUint32(b[12:16], sb.freeBlocksCount)
	le.PutUint32(b[16:20], sb.freeInodesCount)
	le.PutUint32(b[20:24], sb.firstDataBlock)
	le.PutUint32(b[24:28], sb.logBlockSize)
	le.PutUint32(b[28:32], sb.logFragSize)
	le.PutUint32(b[32:36], sb.blocksPerGroup)
	le.PutUint32(b[36:40], sb.fragsPerGroup)
	le.PutUint32(b[40:44], sb.inodesPerGroup)
	le.PutUint32(b[44:48], sb.mtime)
	le.PutUint32(b[48:52], sb.wtime)
	le.PutUint16(b[52:54], sb.mntCount)
	le.PutUint16(b[54:56], sb.maxMntCount)
	le.PutUint16(b[56:58], sb.magic)
	le.PutUint16(b[58:60], sb.state)
	le.PutUint16(b[60:62], sb.errors)
	le.PutUint16(b[62:64], sb.minorRevLevel)
	le.PutUint32(b[64:68], sb.lastCheck)
	le.PutUint32(b[68:72], sb.checkInterval)
	le.PutUint32(b[72:76], sb.creatorOS)
	le.PutUint32(b[76:80], sb.revLevel)
	le.PutUint16(b[80:82], sb.defResUID)
	le.PutUint16(b[82:84], sb.defResGID)
	le.PutUint32(b[84:88], sb.firstIno)
	le.PutUint16(b[88:90], sb.inodeSize)
	le.PutUint16(b[90:92], sb.blockGroupNr)
	le.PutUint32(b[92:96], sb.featureCompat)
	le.PutUint32(b[96:100], sb.featureIncompat)
	le.PutUint32(b[100:104], sb.featureRoCompat)
	if id, err := sb.uuid.MarshalBinary(); err == nil {
		copy(b[104:120], id)
	}
	copy(b[120:136], sb.volumeName[:])
	copy(b[136:200], sb.lastMounted[:])
	return b
}

// validate enforces the invariants spec.md §3 requires of any valid
// superblock.
func (sb *superblock) validate() error {
	if sb.magic != superblockMagic {
		return fmt.Errorf("%w: bad magic %#x", ErrInvalidSuperblock, sb.magic)
	}
	if sb.freeBlocksCount > sb.blocksCount {
		return fmt.Errorf("%w: free_blocks_count > blocks_count", ErrInvalidSuperblock)
	}
	if sb.freeInodesCount > sb.inodesCount {
		return fmt.Errorf("%w: free_inodes_count > inodes_count", ErrInvalidSuperblock)
	}
	if sb.blocksPerGroup == 0 {
		return fmt.Errorf("%w: blocks_per_group is zero", ErrInvalidSuperblock)
	}
	if sb.inodesPerGroup == 0 {
		return fmt.Errorf("%w: inodes_per_group is zero", ErrInvalidSuperblock)
	}
	if sb.groupCount() != sb.groupCountByInodes() {
		return fmt.Errorf("%w: group count from blocks (%d) disagrees with group count from inodes (%d)",
			ErrInvalidSuperblock, sb.groupCount(), sb.groupCountByInodes())
	}
	bs := sb.blockSize()
	if bs < 1024 || bs > 65536 {
		return fmt.Errorf("%w: block size %d out of range", ErrInvalidSuperblock, bs)
	}
	if sb.revLevel >= revision1Dynamic {
		if sb.inodeSize < 128 {
			return fmt.Errorf("%w: inode_size %d < 128", ErrInvalidSuperblock, sb.inodeSize)
		}
		if sb.inodeSize&(sb.inodeSize-1) != 0 {
			return fmt.Errorf("%w: inode_size %d is not a power of two", ErrInvalidSuperblock, sb.inodeSize)
		}
	}
	return nil
}
