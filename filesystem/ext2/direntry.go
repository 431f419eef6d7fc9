package ext2

import (
	"encoding/binary"
	"fmt"
)

// direntryHeaderSize is the fixed 8-byte header preceding an entry's name.
const direntryHeaderSize = 8

// maxNameLen is the largest name a directory entry can hold, per spec.md §3.
const maxNameLen = 255

// direntry is the in-memory form of one variable-length directory entry,
// together with its byte offset within the block it was read from (needed
// to write it back in place).
type direntry struct {
	inodeNum uint32
	recLen   uint16
	nameLen  uint8
	fileType uint8
	name     string
	offset   int
}

// direntryFootprint returns the minimum rec_len a name of length n needs:
// ⌈(8+n)/4⌉×4, per spec.md §3 and §4.8.
func direntryFootprint(nameLen int) uint16 {
	return uint16(((direntryHeaderSize + nameLen) + 3) / 4 * 4)
}

// parseDirentry reads one entry at offset within block. Returns an error
// wrapping ErrCorrupt if rec_len is zero (the iteration-termination
// corruption case named in spec.md §4.8) or the entry would run past the
// block.
func parseDirentry(block []byte, offset int) (*direntry, error) {
	if offset+direntryHeaderSize > len(block) {
		return nil, fmt.Errorf("%w: directory entry header runs past block end", ErrCorrupt)
	}
	le := binary.LittleEndian
	d := &direntry{
		inodeNum: le.Uint32(block[offset : offset+4]),
		recLen:   le.Uint16(block[offset+4 : offset+6]),
		nameLen:  block[offset+6],
		fileType: block[offset+7],
		offset:   offset,
	}
	if d.recLen == 0 {
		return nil, fmt.Errorf("%w: directory entry has rec_len 0", ErrCorrupt)
	}
	nameEnd := offset + direntryHeaderSize + int(d.nameLen)
	if nameEnd > len(block) || offset+int(d.recLen) > len(block) {
		return nil, fmt.Errorf("%w: directory entry runs past block end", ErrCorrupt)
	}
	d.name = string(block[offset+direntryHeaderSize : nameEnd])
	return d, nil
}

// writeDirentry serializes d into block at d.offset, writing exactly
// d.recLen bytes (header, name, and zero padding out to rec_len).
func writeDirentry(block []byte, d *direntry) {
	le := binary.LittleEndian
	le.PutUint32(block[d.offset:d.offset+4], d.inodeNum)
	le.PutUint16(block[d.offset+4:d.offset+6], d.recLen)
	block[d.offset+6] = d.nameLen
	block[d.offset+7] = d.fileType
	nameStart := d.offset + direntryHeaderSize
	for i := 0; i < int(d.recLen)-direntryHeaderSize; i++ {
		if i < len(d.name) {
			block[nameStart+i] = d.name[i]
		} else {
			block[nameStart+i] = 0
		}
	}
}

// iterateBlockEntries walks one directory block from offset 0, advancing
// by rec_len until the block is exhausted, per spec.md §4.8.
func iterateBlockEntries(block []byte) ([]*direntry, error) {
	var entries []*direntry
	offset := 0
	for offset < len(block) {
		d, err := parseDirentry(block, offset)
		if err != nil {
			return nil, err
		}
		entries = append(entries, d)
		offset += int(d.recLen)
	}
	return entries, nil
}

// fileTypeTag maps an inode's mode to the file_type tag stored in its
// directory entry.
func fileTypeTag(i *inode) uint8 {
	switch i.fileType() {
	case typeDirectory:
		return deTypeDir
	case typeRegular:
		return deTypeRegular
	case typeCharDev:
		return deTypeCharDev
	case typeBlockDev:
		return deTypeBlockDev
	case typeFIFO:
		return deTypeFIFO
	case typeSocket:
		return deTypeSocket
	case typeSymlink:
		return deTypeSymlink
	default:
		return deTypeUnknown
	}
}

// dirBlocks returns the physical data blocks of a directory inode, per the
// traversal depth each caller is permitted: lookup and emptiness checks
// read through L2 plus L3 (full read support); ls is policy-limited to
// direct+L1+L2 (spec.md §4.10).
func (v *Volume) dirBlocks(ino *inode, level indirectionLevel) ([]uint32, error) {
	return v.dataBlocks(ino, level)
}

// lookupInDir returns the inode number named by name inside dirInode, or 0
// if not present, per spec.md §4.8.
func (v *Volume) lookupInDir(dirInode *inode, name string) (uint32, error) {
	blocks, err := v.dirBlocks(dirInode, levelL3)
	if err != nil {
		return 0, err
	}
	for _, bn := range blocks {
		block, err := v.readBlock(bn)
		if err != nil {
			return 0, err
		}
		entries, err := iterateBlockEntries(block)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			if e.inodeNum == 0 {
				continue
			}
			if e.name == name {
				return e.inodeNum, nil
			}
		}
	}
	return 0, nil
}

// lastEntryOf returns the entry in block whose rec_len reaches the block
// boundary (the "last" entry of spec.md §4.8 step 2).
func lastEntryOf(block []byte, entries []*direntry) (*direntry, error) {
	for _, e := range entries {
		if e.offset+int(e.recLen) == len(block) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: directory block has no entry reaching the block boundary", ErrCorrupt)
}

// insertEntry implements spec.md §4.8 insertion: first try to split slack
// off the trailing entry of an existing block, otherwise allocate a fresh
// block holding a single entry that spans the whole block.
func (v *Volume) insertEntry(dirInode *inode, childInode uint32, name string, ftype uint8) error {
	if len(name) == 0 || len(name) > maxNameLen {
		return fmt.Errorf("%w: name length %d", ErrNameTooLong, len(name))
	}
	needed := direntryFootprint(len(name))

	blocks, err := v.dirBlocks(dirInode, levelL2)
	if err != nil {
		return err
	}

	for _, bn := range blocks {
		block, err := v.readBlock(bn)
		if err != nil {
			return err
		}
		entries, err := iterateBlockEntries(block)
		if err != nil {
			return err
		}
		last, err := lastEntryOf(block, entries)
		if err != nil {
			return err
		}
		used := direntryFootprint(int(last.nameLen))
		slack := last.recLen - used
		if slack < needed {
			continue
		}
		last.recLen = used
		writeDirentry(block, last)
		newEntry := &direntry{
			inodeNum: childInode,
			recLen:   slack,
			nameLen:  uint8(len(name)),
			fileType: ftype,
			name:     name,
			offset:   last.offset + int(used),
		}
		writeDirentry(block, newEntry)
		return v.writeBlock(bn, block)
	}

	// no existing block has room: allocate a fresh one spanning block_size
	newBlockNum, err := v.allocateBlock(groupOfInode(dirInode.number, v.sb.inodesPerGroup))
	if err != nil {
		return err
	}
	block := make([]byte, v.blockSize)
	entry := &direntry{
		inodeNum: childInode,
		recLen:   uint16(v.blockSize),
		nameLen:  uint8(len(name)),
		fileType: ftype,
		name:     name,
		offset:   0,
	}
	writeDirentry(block, entry)
	if err := v.writeBlock(newBlockNum, block); err != nil {
		_ = v.freeBlock(newBlockNum)
		return err
	}
	if err := v.attachBlock(dirInode, newBlockNum, func() (uint32, error) {
		return v.allocateBlock(groupOfInode(dirInode.number, v.sb.inodesPerGroup))
	}); err != nil {
		_ = v.freeBlock(newBlockNum)
		return err
	}
	dirInode.size += v.blockSize
	dirInode.blocks += v.blockSize / 512
	return nil
}

// deleteEntry implements spec.md §4.8 deletion: coalesce into the
// predecessor, or tombstone if first in the block. Fails with ErrNotFound
// if name is absent.
func (v *Volume) deleteEntry(dirInode *inode, name string) error {
	blocks, err := v.dirBlocks(dirInode, levelL2)
	if err != nil {
		return err
	}
	for _, bn := range blocks {
		block, err := v.readBlock(bn)
		if err != nil {
			return err
		}
		entries, err := iterateBlockEntries(block)
		if err != nil {
			return err
		}
		for i, e := range entries {
			if e.inodeNum == 0 || e.name != name {
				continue
			}
			if i == 0 {
				e.inodeNum = 0
				writeDirentry(block, e)
			} else {
				prev := entries[i-1]
				prev.recLen += e.recLen
				writeDirentry(block, prev)
			}
			return v.writeBlock(bn, block)
		}
	}
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

// renameEntryInPlace implements spec.md §4.8 rename: refuses if the new
// name's footprint does not fit the entry's current rec_len (no cross-block
// move is attempted).
func (v *Volume) renameEntryInPlace(dirInode *inode, oldName, newName string) error {
	if len(newName) == 0 || len(newName) > maxNameLen {
		return fmt.Errorf("%w: name length %d", ErrNameTooLong, len(newName))
	}
	blocks, err := v.dirBlocks(dirInode, levelL2)
	if err != nil {
		return err
	}
	for _, bn := range blocks {
		block, err := v.readBlock(bn)
		if err != nil {
			return err
		}
		entries, err := iterateBlockEntries(block)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.inodeNum == 0 || e.name != oldName {
				continue
			}
			needed := direntryFootprint(len(newName))
			if needed > e.recLen {
				return fmt.Errorf("%w: new name does not fit in existing record", ErrNoFit)
			}
			e.nameLen = uint8(len(newName))
			e.name = newName
			writeDirentry(block, e)
			return v.writeBlock(bn, block)
		}
	}
	return fmt.Errorf("%w: %q", ErrNotFound, oldName)
}

// isEmptyDir implements spec.md §4.8 emptiness: a directory is empty iff
// every non-tombstone entry is "." or "..".
func (v *Volume) isEmptyDir(dirInode *inode) (bool, error) {
	blocks, err := v.dirBlocks(dirInode, levelL3)
	if err != nil {
		return false, err
	}
	for _, bn := range blocks {
		block, err := v.readBlock(bn)
		if err != nil {
			return false, err
		}
		entries, err := iterateBlockEntries(block)
		if err != nil {
			return false, err
		}
		for _, e := range entries {
			if e.inodeNum == 0 {
				continue
			}
			if e.name != "." && e.name != ".." {
				return false, nil
			}
		}
	}
	return true, nil
}
