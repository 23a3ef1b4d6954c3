package sofs

import "testing"

// TestDirEntryLifecycle reproduces S5: add, look up, then remove a
// directory entry, checking the referenced inode is freed and its cluster
// released.
func TestDirEntryLifecycle(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	n, err := fs.AllocInode(TypeDir)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}

	if err := fs.AddAttDirEntry(RootInode, "a", n, DirAdd); err != nil {
		t.Fatalf("AddAttDirEntry: %v", err)
	}

	got, _, err := fs.GetDirEntryByName(RootInode, "a")
	if err != nil {
		t.Fatalf("GetDirEntryByName: %v", err)
	}
	if got != n {
		t.Fatalf("GetDirEntryByName = %d, want %d", got, n)
	}

	if err := fs.RemDetachDirEntry(RootInode, "a", DirRem); err != nil {
		t.Fatalf("RemDetachDirEntry: %v", err)
	}

	in, err := fs.getInode(n)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	if !in.IsFree() {
		t.Fatalf("removed directory's inode is not free")
	}

	if _, _, err := fs.GetDirEntryByName(RootInode, "a"); !IsCode(err, ENOENT) {
		t.Fatalf("err = %v, want ENOENT", err)
	}
}

// TestGetDirEntryByPath reproduces S6's four path-resolution outcomes.
func TestGetDirEntryByPath(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	a, err := fs.AllocInode(TypeDir)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}
	// AllocInode clears the permission bits; "/a" must be searchable.
	aIn, err := fs.getInode(a)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	aIn.Mode |= DefaultDirPerms
	if err := fs.putInode(a, aIn); err != nil {
		t.Fatalf("putInode: %v", err)
	}
	if err := fs.AddAttDirEntry(RootInode, "a", a, DirAdd); err != nil {
		t.Fatalf("AddAttDirEntry(a): %v", err)
	}

	if _, _, _, err := fs.GetDirEntryByPath("/a/b"); !IsCode(err, ENOENT) {
		t.Fatalf("/a/b: err = %v, want ENOENT", err)
	}
	if _, _, _, err := fs.GetDirEntryByPath("/missing"); !IsCode(err, ENOENT) {
		t.Fatalf("/missing: err = %v, want ENOENT", err)
	}

	ent, dir, idx, err := fs.GetDirEntryByPath("/")
	if err != nil {
		t.Fatalf("/: %v", err)
	}
	if ent != RootInode || dir != RootInode || idx != 0 {
		t.Fatalf("/ = (%d, %d, %d), want (0, 0, 0)", ent, dir, idx)
	}

	if _, _, _, err := fs.GetDirEntryByPath("a"); !IsCode(err, ERELPATH) {
		t.Fatalf("a: err = %v, want ERELPATH", err)
	}
}

func TestAddAttDirEntryRejectsDuplicate(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	n, err := fs.AllocInode(TypeFile)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}
	if err := fs.AddAttDirEntry(RootInode, "f", n, DirAdd); err != nil {
		t.Fatalf("AddAttDirEntry: %v", err)
	}
	n2, err := fs.AllocInode(TypeFile)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}
	if err := fs.AddAttDirEntry(RootInode, "f", n2, DirAdd); !IsCode(err, EEXIST) {
		t.Fatalf("err = %v, want EEXIST", err)
	}
}

func TestRemDetachDirEntryRejectsNonEmptyDir(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	dir, err := fs.AllocInode(TypeDir)
	if err != nil {
		t.Fatalf("AllocInode(dir): %v", err)
	}
	// AllocInode clears the permission bits; "d" must be writable and
	// searchable to receive an entry.
	dirIn, err := fs.getInode(dir)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	dirIn.Mode |= DefaultDirPerms
	if err := fs.putInode(dir, dirIn); err != nil {
		t.Fatalf("putInode: %v", err)
	}
	if err := fs.AddAttDirEntry(RootInode, "d", dir, DirAdd); err != nil {
		t.Fatalf("AddAttDirEntry: %v", err)
	}
	child, err := fs.AllocInode(TypeFile)
	if err != nil {
		t.Fatalf("AllocInode(child): %v", err)
	}
	if err := fs.AddAttDirEntry(dir, "c", child, DirAdd); err != nil {
		t.Fatalf("AddAttDirEntry(child): %v", err)
	}

	if err := fs.RemDetachDirEntry(RootInode, "d", DirRem); !IsCode(err, ENOTEMPTY) {
		t.Fatalf("err = %v, want ENOTEMPTY", err)
	}
}

// TestRenameDirEntryUpdatesMTime exercises defect resolution (c): renaming
// an entry must refresh the containing directory's mTime.
func TestRenameDirEntryUpdatesMTime(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	n, err := fs.AllocInode(TypeFile)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}
	if err := fs.AddAttDirEntry(RootInode, "old", n, DirAdd); err != nil {
		t.Fatalf("AddAttDirEntry: %v", err)
	}

	before, err := fs.getInode(RootInode)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	before.SetMTime(1)
	if err := fs.putInode(RootInode, before); err != nil {
		t.Fatalf("putInode: %v", err)
	}

	if err := fs.RenameDirEntry(RootInode, "old", "new"); err != nil {
		t.Fatalf("RenameDirEntry: %v", err)
	}

	after, err := fs.getInode(RootInode)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	if after.MTime() == 1 {
		t.Fatalf("mTime was not refreshed by RenameDirEntry")
	}

	got, _, err := fs.GetDirEntryByName(RootInode, "new")
	if err != nil {
		t.Fatalf("GetDirEntryByName(new): %v", err)
	}
	if got != n {
		t.Fatalf("GetDirEntryByName(new) = %d, want %d", got, n)
	}
	if _, _, err := fs.GetDirEntryByName(RootInode, "old"); !IsCode(err, ENOENT) {
		t.Fatalf("old name still resolves: err = %v", err)
	}
}
