package sofs

// This file implements the two bounded free-cluster caches carried in the
// superblock (dZoneRetriev / dZoneInsert) and their Replenish/Deplete
// protocols against the on-disk free-data-cluster chain, plus the
// alloc/free primitives built on top of them.

// replenish refills the retrieval cache from the on-disk free chain. It is
// a no-op if the retrieval cache is not empty (invariant 7: idempotent when
// already full).
func (fs *FileSystem) replenish() error {
	sb := &fs.dev.sb

	if sb.RetrievIdx != DZoneCacheSize {
		return nil
	}
	if sb.DZoneFree == 0 {
		return nil
	}

	nctt := sb.DZoneFree
	if nctt > DZoneCacheSize {
		nctt = DZoneCacheSize
	}

	taken := uint32(0)
	cur := sb.DHead
	for taken < nctt {
		if cur == NullCluster {
			sb.DHead = NullCluster
			sb.DTail = NullCluster
			if err := fs.deplete(); err != nil {
				return err
			}
			cur = sb.DHead
			if cur == NullCluster {
				// Nothing more to pull: dZoneFree accounting says there
				// should be, so this would be a structural bug, not a
				// normal empty condition. Stop here regardless; the
				// caller gets fewer slots than requested only if the
				// bookkeeping itself is already broken.
				break
			}
			continue
		}

		h, _, err := fs.getCluster(cur)
		if err != nil {
			return err
		}
		next := h.Next

		slot := DZoneCacheSize - nctt + taken
		sb.RetrievCache[slot] = cur

		h.Prev = NullCluster
		h.Next = NullCluster
		if err := fs.putClusterHeader(cur, h); err != nil {
			return err
		}

		taken++
		cur = next
	}

	if cur != NullCluster {
		h, _, err := fs.getCluster(cur)
		if err != nil {
			return err
		}
		h.Prev = NullCluster
		if err := fs.putClusterHeader(cur, h); err != nil {
			return err
		}
	}

	sb.RetrievIdx = DZoneCacheSize - taken
	sb.DHead = cur
	if cur == NullCluster {
		sb.DTail = NullCluster
	}
	fs.dev.markSuperblockDirty()
	return nil
}

// deplete flushes the insertion cache into the on-disk free chain. It is a
// no-op if the insertion cache is empty.
func (fs *FileSystem) deplete() error {
	sb := &fs.dev.sb

	if sb.InsertIdx == 0 {
		return nil
	}
	n := sb.InsertIdx

	if sb.DTail != NullCluster {
		h, _, err := fs.getCluster(sb.DTail)
		if err != nil {
			return err
		}
		h.Next = sb.InsertCache[0]
		if err := fs.putClusterHeader(sb.DTail, h); err != nil {
			return err
		}
	}

	for i := uint32(0); i < n; i++ {
		c := sb.InsertCache[i]
		h, _, err := fs.getCluster(c)
		if err != nil {
			return err
		}
		if i == 0 {
			h.Prev = sb.DTail
		} else {
			h.Prev = sb.InsertCache[i-1]
		}
		if i == n-1 {
			h.Next = NullCluster
		} else {
			h.Next = sb.InsertCache[i+1]
		}
		if err := fs.putClusterHeader(c, h); err != nil {
			return err
		}
	}

	sb.DTail = sb.InsertCache[n-1]
	if sb.DHead == NullCluster {
		sb.DHead = sb.InsertCache[0]
	}

	for i := range sb.InsertCache {
		sb.InsertCache[i] = NullCluster
	}
	sb.InsertIdx = 0
	fs.dev.markSuperblockDirty()
	return nil
}

// allocDataCluster pops one logical cluster number off the retrieval cache
// (replenishing first if necessary) and decrements dZoneFree. It does not
// touch the popped cluster's header; callers (HandleFileCluster's ALLOC
// path) are responsible for dissociating stale stat/prev/next as needed.
func (fs *FileSystem) allocDataCluster() (uint32, error) {
	sb := &fs.dev.sb

	if sb.RetrievIdx == DZoneCacheSize {
		if err := fs.replenish(); err != nil {
			return 0, err
		}
	}
	if sb.DZoneFree == 0 || sb.RetrievIdx == DZoneCacheSize {
		return 0, newErr("allocDataCluster", ENOSPC, nil)
	}

	c := sb.RetrievCache[sb.RetrievIdx]
	sb.RetrievCache[sb.RetrievIdx] = NullCluster
	sb.RetrievIdx++
	sb.DZoneFree--
	fs.dev.markSuperblockDirty()
	return c, nil
}

// freeDataCluster pushes c onto the insertion cache (depleting first if
// full) and increments dZoneFree.
func (fs *FileSystem) freeDataCluster(c uint32) error {
	sb := &fs.dev.sb

	if sb.InsertIdx == DZoneCacheSize {
		if err := fs.deplete(); err != nil {
			return err
		}
	}

	sb.InsertCache[sb.InsertIdx] = c
	sb.InsertIdx++
	sb.DZoneFree++
	fs.dev.markSuperblockDirty()
	return nil
}
