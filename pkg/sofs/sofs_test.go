package sofs

import (
	"io/ioutil"
	"os"
	"testing"
)

// newTestImage formats a fresh nBlocks-block image with nInodes requested
// inodes in a temp file and returns the mounted *FileSystem plus a cleanup
// func. Tests that need the exact S1 geometry (1000 blocks, 128 inodes)
// should pass those values directly.
func newTestImage(t *testing.T, nBlocks int64, nInodes uint32) (*FileSystem, func()) {
	t.Helper()

	f, err := ioutil.TempFile(os.TempDir(), "sofs-test-")
	if err != nil {
		t.Fatalf("TempFile: %v", err)
	}
	if err := f.Truncate(nBlocks * BlockSize); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	caller := Caller{UID: 1, GID: 1, IsRoot: true}
	fs, err := Format(f, nBlocks*BlockSize, FormatOptions{NumInodes: nInodes}, caller, nil)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	cleanup := func() {
		fs.Close()
		os.Remove(f.Name())
	}
	return fs, cleanup
}
