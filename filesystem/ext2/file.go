package ext2

import "fmt"

// readWholeFile concatenates a regular file's data blocks in logical order
// up to inode.size, per spec.md §4.7. Read-side traversal supports all
// four indirection levels.
func (v *Volume) readWholeFile(ino *inode) ([]byte, error) {
	if ino.size == 0 {
		return []byte{}, nil
	}
	blocks, err := v.dataBlocks(ino, levelL3)
	if err != nil {
		return nil, fmt.Errorf("walking pointer tree of inode %d: %w", ino.number, err)
	}

	buf := make([]byte, ino.size)
	var copied uint32
	for _, b := range blocks {
		if copied >= ino.size {
			break
		}
		data, err := v.readBlock(b)
		if err != nil {
			return nil, fmt.Errorf("reading data block %d of inode %d: %w", b, ino.number, err)
		}
		n := v.blockSize
		if remaining := ino.size - copied; remaining < n {
			n = remaining
		}
		copy(buf[copied:copied+n], data[:n])
		copied += n
	}
	if copied < ino.size {
		return nil, fmt.Errorf("%w: inode %d advertises size %d but pointer tree yields only %d bytes", ErrCorrupt, ino.number, ino.size, copied)
	}
	return buf, nil
}
