// Package testhelper provides stand-ins for backend.Storage used to build
// small synthetic ext2 images in tests without touching the filesystem.
package testhelper

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/ext2go/ext2go/backend"
)

// MemStorage is an in-memory backend.Storage backed by a growable byte
// slice. Tests build a synthetic volume by creating a MemStorage of the
// wanted size and formatting it with ext2.Format, rather than shipping
// binary images.
type MemStorage struct {
	buf      []byte
	pos      int64
	readOnly bool
}

// NewMemStorage allocates a MemStorage of exactly size bytes, all zeroed.
func NewMemStorage(size int64) *MemStorage {
	return &MemStorage{buf: make([]byte, size)}
}

// Bytes returns the underlying buffer. Callers must not retain it across
// writes that might grow the backing array.
func (m *MemStorage) Bytes() []byte {
	return m.buf
}

var _ backend.Storage = (*MemStorage)(nil)

func (m *MemStorage) Stat() (fs.FileInfo, error) {
	return memFileInfo{size: int64(len(m.buf))}, nil
}

func (m *MemStorage) Read(b []byte) (int, error) {
	n, err := m.ReadAt(b, m.pos)
	m.pos += int64(n)
	return n, err
}

func (m *MemStorage) Close() error {
	return nil
}

func (m *MemStorage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemStorage) WriteAt(p []byte, off int64) (int, error) {
	if m.readOnly {
		return 0, backend.ErrIncorrectOpenMode
	}
	end := off + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	return copy(m.buf[off:end], p), nil
}

func (m *MemStorage) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = m.pos + offset
	case io.SeekEnd:
		pos = int64(len(m.buf)) + offset
	default:
		return -1, errors.New("invalid whence")
	}
	if pos < 0 {
		return -1, errors.New("negative seek position")
	}
	m.pos = pos
	return pos, nil
}

func (m *MemStorage) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

func (m *MemStorage) Writable() (backend.WritableFile, error) {
	if m.readOnly {
		return nil, backend.ErrIncorrectOpenMode
	}
	return m, nil
}

type memFileInfo struct {
	size int64
}

func (m memFileInfo) Name() string       { return "memstorage" }
func (m memFileInfo) Size() int64        { return m.size }
func (m memFileInfo) Mode() fs.FileMode  { return 0o600 }
func (m memFileInfo) ModTime() time.Time { return time.Time{} }
func (m memFileInfo) IsDir() bool        { return false }
func (m memFileInfo) Sys() any           { return nil }
