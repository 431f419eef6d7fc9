package ext2

import (
	"encoding/binary"
	"fmt"
)

// onDiskInodeSize is the number of bytes this driver reads/writes per
// inode record. Even when the superblock reports a larger inode_size
// (revision >= 1), only the legacy 128-byte layout is used; the trailing
// bytes of larger on-disk inodes are left untouched, per spec.md §4.4.
const onDiskInodeSize = 128

// fileType identifies the type bits packed into inode.mode (the high
// nibble), matching the classic ext2 values.
type fileType uint16

const (
	typeFIFO      fileType = 0o010000
	typeCharDev   fileType = 0o020000
	typeDirectory fileType = 0o040000
	typeBlockDev  fileType = 0o060000
	typeRegular   fileType = 0o100000
	typeSymlink   fileType = 0o120000
	typeSocket    fileType = 0o140000

	modeTypeMask fileType = 0o170000
)

// directory entry file_type tag values, used by the direntry codec.
const (
	deTypeUnknown  uint8 = 0
	deTypeRegular  uint8 = 1
	deTypeDir      uint8 = 2
	deTypeCharDev  uint8 = 3
	deTypeBlockDev uint8 = 4
	deTypeFIFO     uint8 = 5
	deTypeSocket   uint8 = 6
	deTypeSymlink  uint8 = 7
)

// inode is the in-memory form of the fixed 128-byte on-disk inode record
// described in spec.md §3. Pointer slots 0-11 are direct, 12 is single
// indirect, 13 double indirect, 14 triple indirect.
type inode struct {
	number     uint32
	mode       uint16
	uid        uint16
	size       uint32
	atime      uint32
	ctime      uint32
	mtime      uint32
	dtime      uint32
	gid        uint16
	linksCount uint16
	blocks     uint32 // 512-byte sectors, not filesystem blocks
	flags      uint32
	osd1       uint32
	block      [15]uint32
	generation uint32
	fileACL    uint32
	dirACL     uint32
	faddr      uint32
}

func (i *inode) fileType() fileType {
	return fileType(i.mode) & modeTypeMask
}

func (i *inode) isDir() bool {
	return i.fileType() == typeDirectory
}

func (i *inode) isRegular() bool {
	return i.fileType() == typeRegular
}

// inodeLocation computes (group, index-within-group) for a 1-based global
// inode number, per spec.md §4.4.
func inodeLocation(n uint32, inodesPerGroup uint32) (group uint32, index uint32) {
	group = (n - 1) / inodesPerGroup
	index = (n - 1) % inodesPerGroup
	return
}

// inodeByteOffset computes the on-disk byte offset of the inode at index
// within its group, given the group's inode-table start block, block size,
// and effective inode size.
func inodeByteOffset(index uint32, inodeTableBlock uint32, blockSize uint32, inodeSize uint16) int64 {
	return int64(inodeTableBlock)*int64(blockSize) + int64(index)*int64(inodeSize)
}

func inodeFromBytes(b []byte, number uint32) (*inode, error) {
	if len(b) < onDiskInodeSize {
		return nil, fmt.Errorf("%w: inode record too short", ErrCorrupt)
	}
	le := binary.LittleEndian
	i := &inode{
		number:     number,
		mode:       le.Uint16(b[0:2]),
		uid:        le.Uint16(b[2:4]),
		size:       le.Uint32(b[4:8]),
		atime:      le.Uint32(b[8:12]),
		ctime:      le.Uint32(b[12:16]),
		mtime:      le.Uint32(b[16:20]),
		dtime:      le.Uint32(b[20:24]),
		gid:        le.Uint16(b[24:26]),
		linksCount: le.Uint16(b[26:28]),
		blocks:     le.Uint32(b[28:32]),
		flags:      le.Uint32(b[32:36]),
		osd1:       le.Uint32(b[36:40]),
	}
	for j := 0; j < 15; j++ {
		off := 40 + j*4
		i.block[j] = le.Uint32(b[off : off+4])
	}
	i.generation = le.Uint32(b[100:104])
	i.fileACL = le.Uint32(b[104:108])
	i.dirACL = le.Uint32(b[108:112])
	i.faddr = le.Uint32(b[112:116])
	return i, nil
}

func (i *inode) toBytes() []byte {
	b := make([]byte, onDiskInodeSize)
	le := binary.LittleEndian
	le.PutUint16(b[0:2], i.mode)
	le.PutUint16(b[2:4], i.uid)
	le.PutUint32(b[4:8], i.size)
	le.PutUint32(b[8:12], i.atime)
	le.PutUint32(b[12:16], i.ctime)
	le.PutUint32(b[16:20], i.mtime)
	le.PutUint32(b[20:24], i.dtime)
	le.PutUint16(b[24:26], i.gid)
	le.PutUint16(b[26:28], i.linksCount)
	le.PutUint32(b[28:32], i.blocks)
	le.PutUint32(b[32:36], i.flags)
	le.PutUint32(b[36:40], i.osd1)
	for j := 0; j < 15; j++ {
		off := 40 + j*4
		le.PutUint32(b[off:off+4], i.block[j])
	}
	le.PutUint32(b[100:104], i.generation)
	le.PutUint32(b[104:108], i.fileACL)
	le.PutUint32(b[108:112], i.dirACL)
	le.PutUint32(b[112:116], i.faddr)
	return b
}
