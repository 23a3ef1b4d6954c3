package sofs

import "testing"

// TestAllocInode reproduces S2: AllocInode(FILE) on a freshly formatted S1
// image returns inode 1 with iFree/iHead updated and the new inode clean.
func TestAllocInode(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	n, err := fs.AllocInode(TypeFile)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}
	if n != 1 {
		t.Fatalf("AllocInode returned %d, want 1", n)
	}

	sb := fs.Superblock()
	if sb.IFree != 126 {
		t.Fatalf("IFree = %d, want 126", sb.IFree)
	}
	if sb.IHead != 2 {
		t.Fatalf("IHead = %d, want 2", sb.IHead)
	}

	in, err := fs.getInode(n)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	if in.IsFree() {
		t.Fatalf("new inode is still free")
	}
	if in.Type() != TypeFile {
		t.Fatalf("Type() = %v, want TypeFile", in.Type())
	}
	if in.Size != 0 {
		t.Fatalf("Size = %d, want 0", in.Size)
	}
	if in.CluCount != 0 {
		t.Fatalf("CluCount = %d, want 0", in.CluCount)
	}
}

func TestAllocInodeExhaustion(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	sb := fs.Superblock()
	for i := uint32(0); i < sb.IFree; i++ {
		if _, err := fs.AllocInode(TypeFile); err != nil {
			t.Fatalf("AllocInode[%d]: %v", i, err)
		}
	}
	if _, err := fs.AllocInode(TypeFile); !IsCode(err, ENOSPC) {
		t.Fatalf("err = %v, want ENOSPC", err)
	}
}

func TestFreeInodeRejectsRoot(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	if err := fs.FreeInode(RootInode); !IsCode(err, EPERM) {
		t.Fatalf("err = %v, want EPERM", err)
	}
}

func TestFreeInodeRequiresZeroRefCount(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	n, err := fs.AllocInode(TypeFile)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}
	in, err := fs.getInode(n)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	in.RefCount = 1
	if err := fs.putInode(n, in); err != nil {
		t.Fatalf("putInode: %v", err)
	}

	if err := fs.FreeInode(n); !IsCode(err, EWGINODENB) {
		t.Fatalf("err = %v, want EWGINODENB", err)
	}
}

// TestAllocInodeReclaimsFreeDirty checks that AllocInode transparently
// cleans a free-dirty inode (one whose cluster references were never
// swept) before handing it back out.
func TestAllocInodeReclaimsFreeDirty(t *testing.T) {
	fs, cleanup := newTestImage(t, 100, 8)
	defer cleanup()

	n, err := fs.AllocInode(TypeFile)
	if err != nil {
		t.Fatalf("AllocInode: %v", err)
	}
	buf := make([]byte, ClusterPayloadSize)
	for i := range buf {
		buf[i] = 0xAA
	}
	if err := fs.WriteFileCluster(n, 0, buf); err != nil {
		t.Fatalf("WriteFileCluster: %v", err)
	}

	// Drain every remaining free inode first: FreeInode appends to the
	// tail of the free-inode list (FIFO), so unless n is the list's only
	// entry when it's freed below, the next AllocInode would hand back
	// whichever inode already sat at the head instead of reclaiming n.
	for {
		if _, err := fs.AllocInode(TypeFile); err != nil {
			if IsCode(err, ENOSPC) {
				break
			}
			t.Fatalf("AllocInode (drain): %v", err)
		}
	}

	in, err := fs.getInode(n)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	in.RefCount = 0
	if err := fs.putInode(n, in); err != nil {
		t.Fatalf("putInode: %v", err)
	}
	if err := fs.FreeInode(n); err != nil {
		t.Fatalf("FreeInode: %v", err)
	}

	n2, err := fs.AllocInode(TypeFile)
	if err != nil {
		t.Fatalf("AllocInode (reclaim): %v", err)
	}
	if n2 != n {
		t.Fatalf("reclaimed inode = %d, want %d", n2, n)
	}
	in2, err := fs.getInode(n2)
	if err != nil {
		t.Fatalf("getInode: %v", err)
	}
	if in2.CluCount != 0 || in2.Direct[0] != NullCluster {
		t.Fatalf("reclaimed inode still carries stale cluster references")
	}
}
