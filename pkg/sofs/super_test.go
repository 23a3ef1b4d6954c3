package sofs

import "testing"

// TestReplenishFillsAscending reproduces S4: replenishing the retrieval
// cache on a freshly formatted image fills it with DZoneCacheSize logical
// cluster numbers in ascending order starting from 1, without changing
// dZoneFree.
func TestReplenishFillsAscending(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	before := fs.Superblock().DZoneFree

	if err := fs.replenish(); err != nil {
		t.Fatalf("replenish: %v", err)
	}

	sb := fs.Superblock()
	if sb.DZoneFree != before {
		t.Fatalf("DZoneFree changed: %d -> %d", before, sb.DZoneFree)
	}
	if sb.RetrievIdx != 0 {
		t.Fatalf("RetrievIdx = %d, want 0 (full)", sb.RetrievIdx)
	}
	for i := 0; i < DZoneCacheSize; i++ {
		want := uint32(i + 1)
		if sb.RetrievCache[i] != want {
			t.Fatalf("RetrievCache[%d] = %d, want %d", i, sb.RetrievCache[i], want)
		}
	}
	if sb.DHead != DZoneCacheSize+1 {
		t.Fatalf("DHead = %d, want %d", sb.DHead, DZoneCacheSize+1)
	}
}

// TestReplenishNoOpWhenFull checks invariant 7: Replenish on an already-full
// retrieval cache is a no-op.
func TestReplenishNoOpWhenFull(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	if err := fs.replenish(); err != nil {
		t.Fatalf("replenish: %v", err)
	}
	want := fs.Superblock()

	if err := fs.replenish(); err != nil {
		t.Fatalf("replenish (second): %v", err)
	}
	got := fs.Superblock()
	if got.DHead != want.DHead || got.RetrievIdx != want.RetrievIdx {
		t.Fatalf("second replenish mutated state: %+v -> %+v", want, got)
	}
}

// TestDepleteNoOpWhenEmpty checks invariant 7's other half: Deplete on an
// empty insertion cache is a no-op.
func TestDepleteNoOpWhenEmpty(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	before := fs.Superblock()
	if err := fs.deplete(); err != nil {
		t.Fatalf("deplete: %v", err)
	}
	after := fs.Superblock()
	if before.DTail != after.DTail || before.DHead != after.DHead {
		t.Fatalf("deplete on empty cache mutated the free chain")
	}
}

// TestAllocFreeDataClusterRoundTrip exercises alloc/free through both
// caches, including the replenish/deplete paths triggered when a cache
// empties or fills.
func TestAllocFreeDataClusterRoundTrip(t *testing.T) {
	fs, cleanup := newTestImage(t, 1000, 128)
	defer cleanup()

	before := fs.Superblock().DZoneFree

	const n = DZoneCacheSize + 5
	var allocated [n]uint32
	for i := 0; i < n; i++ {
		c, err := fs.allocDataCluster()
		if err != nil {
			t.Fatalf("allocDataCluster[%d]: %v", i, err)
		}
		allocated[i] = c
	}

	if got := fs.Superblock().DZoneFree; got != before-n {
		t.Fatalf("DZoneFree = %d, want %d", got, before-n)
	}

	for i := 0; i < n; i++ {
		if err := fs.freeDataCluster(allocated[i]); err != nil {
			t.Fatalf("freeDataCluster[%d]: %v", i, err)
		}
	}

	if got := fs.Superblock().DZoneFree; got != before {
		t.Fatalf("DZoneFree after freeing all = %d, want %d", got, before)
	}

	if err := fs.QCheckDZ(); err != nil {
		t.Fatalf("QCheckDZ: %v", err)
	}
}
