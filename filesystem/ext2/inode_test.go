package ext2

import "testing"

func TestInodeRoundTrip(t *testing.T) {
	in := &inode{
		number:     7,
		mode:       uint16(typeRegular) | 0o644,
		uid:        1000,
		size:       4096,
		atime:      111,
		ctime:      222,
		mtime:      333,
		gid:        1000,
		linksCount: 1,
		blocks:     8,
		flags:      0,
		block:      [15]uint32{1, 2, 3},
		generation: 9,
		fileACL:    0,
		dirACL:     0,
		faddr:      0,
	}
	raw := in.toBytes()
	if len(raw) != onDiskInodeSize {
		t.Fatalf("toBytes() length = %d, want %d", len(raw), onDiskInodeSize)
	}
	parsed, err := inodeFromBytes(raw, 7)
	if err != nil {
		t.Fatalf("inodeFromBytes: %v", err)
	}
	if *parsed != *in {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", parsed, in)
	}
}

func TestInodeFileTypeClassification(t *testing.T) {
	dir := &inode{mode: uint16(typeDirectory) | 0o755}
	if !dir.isDir() || dir.isRegular() {
		t.Fatalf("directory mode misclassified")
	}
	reg := &inode{mode: uint16(typeRegular) | 0o644}
	if reg.isDir() || !reg.isRegular() {
		t.Fatalf("regular file mode misclassified")
	}
}

func TestInodeLocation(t *testing.T) {
	group, index := inodeLocation(129, 128)
	if group != 1 || index != 0 {
		t.Fatalf("inodeLocation(129, 128) = (%d, %d), want (1, 0)", group, index)
	}
	group, index = inodeLocation(1, 128)
	if group != 0 || index != 0 {
		t.Fatalf("inodeLocation(1, 128) = (%d, %d), want (0, 0)", group, index)
	}
}

func TestInodeFromBytesTooShort(t *testing.T) {
	if _, err := inodeFromBytes(make([]byte, 4), 1); err == nil {
		t.Fatal("expected error for short inode record")
	}
}
