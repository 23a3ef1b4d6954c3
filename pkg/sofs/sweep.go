package sofs

// handleFileClusters applies op to every allocated position >= startIdx in
// nInode's cluster index. Traversal runs outside-in (i2 subtree, then i1
// subtree, then the direct list) so the empty-subtree reclamation in
// HandleFileCluster's indirect handling fires as each subtree empties,
// rather than leaving orphaned reference clusters behind.
func (fs *FileSystem) handleFileClusters(nInode uint32, op Op, startIdx int) error {
	if err := fs.sweepRange(nInode, op, maxInt(startIdx, NDirect+RPC), MaxFileClusters, func(in *Inode) bool {
		return in.Indirect2 == NullCluster
	}); err != nil {
		return err
	}

	if err := fs.sweepRange(nInode, op, maxInt(startIdx, NDirect), NDirect+RPC, func(in *Inode) bool {
		return in.Indirect1 == NullCluster
	}); err != nil {
		return err
	}

	return fs.sweepRange(nInode, op, startIdx, NDirect, func(*Inode) bool {
		return false
	})
}

// sweepRange applies op over [from, to), stopping early once stop reports
// the owning subtree has become unallocated (nothing further in range can
// be allocated once its root reference is freed).
func (fs *FileSystem) sweepRange(nInode uint32, op Op, from, to int, stop func(*Inode) bool) error {
	for pos := from; pos < to; pos++ {
		in, err := fs.getInode(nInode)
		if err != nil {
			return err
		}
		if stop(in) {
			return nil
		}

		s, err := fs.peekFileCluster(nInode, pos, op)
		if err != nil {
			return err
		}
		if s == NullCluster {
			continue
		}
		if err := fs.HandleFileCluster(nInode, pos, op, nil); err != nil {
			return err
		}
	}
	return nil
}

// peekFileCluster reads the logical cluster currently stored at pos without
// mutating anything. Unlike calling HandleFileCluster with op=GET directly,
// it checks the inode's structural status against the real traversal op:
// a CLEAN sweep runs over a free-dirty inode, and GET's own hardcoded
// in-use requirement would reject that peek even though nothing is being
// mutated yet.
func (fs *FileSystem) peekFileCluster(nInode uint32, pos int, op Op) (uint32, error) {
	want := StatusInUse
	if op == OpClean {
		want = StatusFreeDirty
	}
	in, err := fs.getInode(nInode)
	if err != nil {
		return 0, err
	}
	if err := checkInodeStatus(in, want); err != nil {
		return 0, err
	}

	var s uint32
	switch {
	case pos < NDirect:
		err = fs.handleDirect(nInode, in, pos, OpGet, &s)
	case pos < NDirect+RPC:
		err = fs.handleSingleIndirect(nInode, in, pos, pos-NDirect, OpGet, &s)
	default:
		idx := pos - NDirect - RPC
		err = fs.handleDoubleIndirect(nInode, in, pos, idx/RPC, idx%RPC, OpGet, &s)
	}
	return s, err
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
