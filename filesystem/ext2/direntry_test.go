package ext2

import (
	"errors"
	"testing"

	"github.com/ext2go/ext2go/testhelper"
)

func TestDirentryFootprint(t *testing.T) {
	cases := map[int]uint16{
		0:  8,
		1:  12,
		4:  12,
		5:  16,
		255: 264,
	}
	for nameLen, want := range cases {
		if got := direntryFootprint(nameLen); got != want {
			t.Errorf("direntryFootprint(%d) = %d, want %d", nameLen, got, want)
		}
	}
}

func TestDirentryRoundTrip(t *testing.T) {
	block := make([]byte, 64)
	d := &direntry{inodeNum: 12, recLen: 16, nameLen: 5, fileType: deTypeRegular, name: "hello", offset: 0}
	writeDirentry(block, d)
	parsed, err := parseDirentry(block, 0)
	if err != nil {
		t.Fatalf("parseDirentry: %v", err)
	}
	if parsed.inodeNum != 12 || parsed.name != "hello" || parsed.recLen != 16 {
		t.Fatalf("round-trip mismatch: %+v", parsed)
	}
}

func TestParseDirentryRejectsZeroRecLen(t *testing.T) {
	block := make([]byte, 16)
	if _, err := parseDirentry(block, 0); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for rec_len 0, got %v", err)
	}
}

func TestIterateBlockEntriesSumsToBlockSize(t *testing.T) {
	block := make([]byte, 32)
	writeDirentry(block, &direntry{inodeNum: 2, recLen: 12, nameLen: 1, fileType: deTypeDir, name: ".", offset: 0})
	writeDirentry(block, &direntry{inodeNum: 2, recLen: 20, nameLen: 2, fileType: deTypeDir, name: "..", offset: 12})
	entries, err := iterateBlockEntries(block)
	if err != nil {
		t.Fatalf("iterateBlockEntries: %v", err)
	}
	var sum uint16
	for _, e := range entries {
		sum += e.recLen
	}
	if sum != uint16(len(block)) {
		t.Fatalf("sum of rec_len = %d, want %d", sum, len(block))
	}
}

func newTestDirVolume(t *testing.T) *Volume {
	t.Helper()
	mem := testhelper.NewMemStorage(512 * 1024)
	v, err := Format(mem, 512*1024, nil)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	return v
}

func rootInode(t *testing.T, v *Volume) *inode {
	t.Helper()
	ino, err := v.readInode(v.RootInode())
	if err != nil {
		t.Fatalf("readInode(root): %v", err)
	}
	return ino
}

func TestInsertAndLookupEntry(t *testing.T) {
	v := newTestDirVolume(t)
	root := rootInode(t, v)

	if err := v.insertEntry(root, 100, "newfile", deTypeRegular); err != nil {
		t.Fatalf("insertEntry: %v", err)
	}
	if err := v.writeInode(root); err != nil {
		t.Fatalf("writeInode: %v", err)
	}

	got, err := v.lookupInDir(root, "newfile")
	if err != nil {
		t.Fatalf("lookupInDir: %v", err)
	}
	if got != 100 {
		t.Fatalf("lookupInDir = %d, want 100", got)
	}

	if got, err := v.lookupInDir(root, "missing"); err != nil || got != 0 {
		t.Fatalf("lookupInDir(missing) = (%d, %v), want (0, nil)", got, err)
	}
}

func TestDeleteEntryCoalescesIntoPredecessor(t *testing.T) {
	v := newTestDirVolume(t)
	root := rootInode(t, v)

	if err := v.insertEntry(root, 100, "a", deTypeRegular); err != nil {
		t.Fatalf("insertEntry: %v", err)
	}
	if err := v.deleteEntry(root, "a"); err != nil {
		t.Fatalf("deleteEntry: %v", err)
	}
	got, err := v.lookupInDir(root, "a")
	if err != nil {
		t.Fatalf("lookupInDir: %v", err)
	}
	if got != 0 {
		t.Fatalf("lookupInDir after delete = %d, want 0", got)
	}
}

func TestDeleteEntryNotFound(t *testing.T) {
	v := newTestDirVolume(t)
	root := rootInode(t, v)
	if err := v.deleteEntry(root, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRenameEntryInPlace(t *testing.T) {
	v := newTestDirVolume(t)
	root := rootInode(t, v)
	if err := v.insertEntry(root, 100, "oldname", deTypeRegular); err != nil {
		t.Fatalf("insertEntry: %v", err)
	}
	if err := v.renameEntryInPlace(root, "oldname", "new"); err != nil {
		t.Fatalf("renameEntryInPlace: %v", err)
	}
	got, err := v.lookupInDir(root, "new")
	if err != nil || got != 100 {
		t.Fatalf("lookupInDir(new) = (%d, %v), want (100, nil)", got, err)
	}
}

func TestRenameEntryInPlaceRefusesWhenTooLong(t *testing.T) {
	v := newTestDirVolume(t)
	root := rootInode(t, v)
	// "x" splits the slack off lost+found and takes the rest of the root
	// block; "y" then splits that slack off of "x", shrinking x's rec_len
	// down to its own tight footprint so the rename below has no room to
	// grow into.
	if err := v.insertEntry(root, 100, "x", deTypeRegular); err != nil {
		t.Fatalf("insertEntry(x): %v", err)
	}
	if err := v.insertEntry(root, 101, "y", deTypeRegular); err != nil {
		t.Fatalf("insertEntry(y): %v", err)
	}
	longName := make([]byte, 64)
	for i := range longName {
		longName[i] = 'a'
	}
	if err := v.renameEntryInPlace(root, "x", string(longName)); !errors.Is(err, ErrNoFit) {
		t.Fatalf("expected ErrNoFit, got %v", err)
	}
}

func TestIsEmptyDir(t *testing.T) {
	v := newTestDirVolume(t)
	lf, err := v.readInode(lostFoundInodeNumber)
	if err != nil {
		t.Fatalf("readInode(lost+found): %v", err)
	}
	empty, err := v.isEmptyDir(lf)
	if err != nil {
		t.Fatalf("isEmptyDir: %v", err)
	}
	if !empty {
		t.Fatal("freshly formatted lost+found should be empty (only . and ..)")
	}

	root := rootInode(t, v)
	empty, err = v.isEmptyDir(root)
	if err != nil {
		t.Fatalf("isEmptyDir(root): %v", err)
	}
	if empty {
		t.Fatal("root should not be empty: it contains lost+found")
	}
}
