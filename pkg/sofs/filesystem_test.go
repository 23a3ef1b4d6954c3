package sofs

import (
	"io/ioutil"
	"os"
	"testing"
)

func TestOpenRejectsUnformattedImage(t *testing.T) {
	f, err := ioutil.TempFile(os.TempDir(), "sofs-test-")
	if err != nil {
		t.Fatalf("TempFile: %v", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := f.Truncate(1000 * BlockSize); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	if _, err := Open(f, Caller{}, nil); !IsCode(err, EBADF) {
		t.Fatalf("err = %v, want EBADF", err)
	}
}

func TestOpenCloseRoundTrip(t *testing.T) {
	f, err := ioutil.TempFile(os.TempDir(), "sofs-test-")
	if err != nil {
		t.Fatalf("TempFile: %v", err)
	}
	defer os.Remove(f.Name())

	if err := f.Truncate(1000 * BlockSize); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	caller := Caller{UID: 1, GID: 1}
	fs, err := Format(f, 1000*BlockSize, FormatOptions{NumInodes: 128}, caller, nil)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	n, err := fs.AllocInode(TypeFile)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Close also closed f; mount the image again through a fresh handle.
	f2, err := os.OpenFile(f.Name(), os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	fs2, err := Open(f2, caller, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer fs2.Close()

	in, err := fs2.getInode(n)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	if in.IsFree() {
		t.Fatalf("inode %d lost across remount", n)
	}

	sb := fs2.Superblock()
	if sb.MStat != MStatDirty {
		t.Fatalf("MStat = %d, want MStatDirty while mounted", sb.MStat)
	}
}
