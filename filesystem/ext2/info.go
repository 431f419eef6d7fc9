package ext2

import (
	"fmt"
	"io"
)

// ResolvePath exposes the path resolver (spec.md §4.9) to callers outside
// the package, such as the shell's "cd" command.
func (v *Volume) ResolvePath(cwd uint32, path string) (uint32, error) {
	return v.resolvePath(cwd, path)
}

// IsDir reports whether inode n is a directory.
func (v *Volume) IsDir(n uint32) (bool, error) {
	ino, err := v.readInode(n)
	if err != nil {
		return false, err
	}
	return ino.isDir(), nil
}

// InodeAttrs is a read-only metadata snapshot of one inode, used by the
// "attr" and "print inode" commands.
type InodeAttrs struct {
	Number     uint32
	Mode       uint16
	Size       uint32
	LinksCount uint16
	Atime      uint32
	Ctime      uint32
	Mtime      uint32
}

// InodeAttrs reads inode n and returns its metadata.
func (v *Volume) InodeAttrs(n uint32) (InodeAttrs, error) {
	ino, err := v.readInode(n)
	if err != nil {
		return InodeAttrs{}, err
	}
	return InodeAttrs{
		Number:     ino.number,
		Mode:       ino.mode,
		Size:       ino.size,
		LinksCount: ino.linksCount,
		Atime:      ino.atime,
		Ctime:      ino.ctime,
		Mtime:      ino.mtime,
	}, nil
}

// VolumeInfo summarizes the superblock for the "info"/"print superblock"
// commands.
type VolumeInfo struct {
	BlockSize       uint32
	BlocksCount     uint32
	FreeBlocksCount uint32
	InodesCount     uint32
	FreeInodesCount uint32
	GroupCount      int
	VolumeName      string
}

func (v *Volume) Info() VolumeInfo {
	name := v.sb.volumeName[:]
	end := len(name)
	for i, b := range name {
		if b == 0 {
			end = i
			break
		}
	}
	return VolumeInfo{
		BlockSize:       v.blockSize,
		BlocksCount:     v.sb.blocksCount,
		FreeBlocksCount: v.sb.freeBlocksCount,
		InodesCount:     v.sb.inodesCount,
		FreeInodesCount: v.sb.freeInodesCount,
		GroupCount:      len(v.gdt.table),
		VolumeName:      string(name[:end]),
	}
}

// GroupSummary is a read-only view of one group descriptor, for
// "print groups".
type GroupSummary struct {
	BlockBitmap     uint32
	InodeBitmap     uint32
	InodeTable      uint32
	FreeBlocksCount uint16
	FreeInodesCount uint16
	UsedDirsCount   uint16
}

func (v *Volume) GroupSummaries() []GroupSummary {
	out := make([]GroupSummary, len(v.gdt.table))
	for i, gd := range v.gdt.table {
		out[i] = GroupSummary{
			BlockBitmap:     gd.blockBitmap,
			InodeBitmap:     gd.inodeBitmap,
			InodeTable:      gd.inodeTable,
			FreeBlocksCount: gd.freeBlocksCount,
			FreeInodesCount: gd.freeInodesCount,
			UsedDirsCount:   gd.usedDirsCount,
		}
	}
	return out
}

// RawSuperblock returns the on-disk encoding of the superblock, for the
// shell's "print superblock" hex dump.
func (v *Volume) RawSuperblock() []byte {
	return v.sb.toBytes()
}

// RawGroupDescriptor returns the on-disk encoding of one group descriptor,
// for the shell's "print groups" hex dump.
func (v *Volume) RawGroupDescriptor(group int) ([]byte, error) {
	if group < 0 || group >= len(v.gdt.table) {
		return nil, fmt.Errorf("%w: group %d out of range", ErrCorrupt, group)
	}
	return v.gdt.table[group].toBytes(), nil
}

// RawInode returns the on-disk encoding of inode n, for the shell's
// "print inode" hex dump.
func (v *Volume) RawInode(n uint32) ([]byte, error) {
	if n == 0 || n > v.sb.inodesCount {
		return nil, fmt.Errorf("%w: inode %d out of range", ErrCorrupt, n)
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
	return buf, nil
}
