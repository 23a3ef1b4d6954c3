package sofs

import "testing"

// TestDoubleIndirectWrite reproduces S3: writing far enough into a file to
// require a double-indirect reference allocates both index clusters,
// stores the data at the right coordinates, and leaves neighboring
// positions reading back as zero.
func TestDoubleIndirectWrite(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	n, err := fs.AllocInode(TypeFile)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}

	pos := NDirect + RPC + 1

	payload := make([]byte, ClusterPayloadSize)
	for i := range payload {
		payload[i] = 0xAA
	}
	if err := fs.WriteFileCluster(n, pos, payload); err != nil {
		t.Fatalf("WriteFileCluster: %v", err)
	}

	in, err := fs.getInode(n)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	if in.Indirect2 == NullCluster {
		t.Fatalf("Indirect2 not allocated")
	}
	if in.CluCount != 3 {
		t.Fatalf("CluCount = %d, want 3", in.CluCount)
	}

	refCluster, err := fs.readRef(in.Indirect2, 0)
	if err != nil {
		t.Fatalf("readRef(i2, 0): %v", err)
	}
	if refCluster == NullCluster {
		t.Fatalf("i2 position 0 is unset")
	}

	dataCluster, err := fs.readRef(refCluster, 1)
	if err != nil {
		t.Fatalf("readRef(ref, 1): %v", err)
	}
	if dataCluster == NullCluster {
		t.Fatalf("ref cluster position 1 is unset")
	}

	out := make([]byte, ClusterPayloadSize)
	if err := fs.ReadFileCluster(n, pos, out); err != nil {
		t.Fatalf("ReadFileCluster: %v", err)
	}
	for i, b := range out {
		if b != 0xAA {
			t.Fatalf("out[%d] = %#x, want 0xAA", i, b)
		}
	}

	zero := make([]byte, ClusterPayloadSize)
	if err := fs.ReadFileCluster(n, NDirect, zero); err != nil {
		t.Fatalf("ReadFileCluster(direct): %v", err)
	}
	for i, b := range zero {
		if b != 0 {
			t.Fatalf("zero[%d] = %#x, want 0", i, b)
		}
	}
}

func TestSymlinkRoundTrip(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	n, err := fs.AllocInode(TypeSymlink)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}
	if err := fs.WriteSymlink(n, "/a/b/c"); err != nil {
		t.Fatalf("WriteSymlink: %v", err)
	}
	target, err := fs.ReadSymlink(n)
	if err != nil {
		t.Fatalf("ReadSymlink: %v", err)
	}
	if target != "/a/b/c" {
		t.Fatalf("target = %q, want /a/b/c", target)
	}
}

func TestWriteSymlinkRejectsOversizeTarget(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	n, err := fs.AllocInode(TypeSymlink)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}
	oversize := make([]byte, ClusterPayloadSize+1)
	if err := fs.WriteSymlink(n, string(oversize)); !IsCode(err, ENAMETOOLONG) {
		t.Fatalf("err = %v, want ENAMETOOLONG", err)
	}
}
