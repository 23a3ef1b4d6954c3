package sofs

// HandleFileCluster resolves clustInd through the inode's direct,
// single-indirect or double-indirect reference structure and applies op at
// the leaf slot. outPtr receives the resulting logical cluster number for
// op ∈ {GET, ALLOC} and must be nil otherwise.
func (fs *FileSystem) HandleFileCluster(nInode uint32, clustInd int, op Op, outPtr *uint32) error {
	if clustInd < 0 || clustInd >= MaxFileClusters {
		return newErr("HandleFileCluster", EINVAL, nil)
	}
	if (op == OpGet || op == OpAlloc) && outPtr == nil {
		return newErr("HandleFileCluster", EINVAL, nil)
	}

	want := StatusInUse
	if op == OpClean {
		want = StatusFreeDirty
	}
	in, err := fs.getInode(nInode)
	if err != nil {
		return err
	}
	if err := checkInodeStatus(in, want); err != nil {
		return err
	}

	switch {
	case clustInd < NDirect:
		err = fs.handleDirect(nInode, in, clustInd, op, outPtr)
	case clustInd < NDirect+RPC:
		err = fs.handleSingleIndirect(nInode, in, clustInd, clustInd-NDirect, op, outPtr)
	default:
		idx := clustInd - NDirect - RPC
		err = fs.handleDoubleIndirect(nInode, in, clustInd, idx/RPC, idx%RPC, op, outPtr)
	}
	if err != nil || (op != OpAlloc && op != OpFreeClean && op != OpClean) {
		return err
	}

	// The leaf data cluster itself counts in cluCount, like the index clusters.
	if in, err = fs.getInode(nInode); err != nil {
		return err
	}
	if op == OpAlloc {
		in.CluCount++
	} else {
		in.CluCount--
	}
	return fs.putInode(nInode, in)
}

func (fs *FileSystem) handleDirect(nInode uint32, in *Inode, clustInd int, op Op, outPtr *uint32) error {
	s := in.Direct[clustInd]

	newS, result, err := fs.applyLeafOp(nInode, clustInd, s, op)
	if err != nil {
		return err
	}
	in.Direct[clustInd] = newS
	if err := fs.putInode(nInode, in); err != nil {
		return err
	}
	if op == OpGet || op == OpAlloc {
		*outPtr = result
	}
	return nil
}

func (fs *FileSystem) handleSingleIndirect(nInode uint32, in *Inode, clustInd, p1 int, op Op, outPtr *uint32) error {
	ref := in.Indirect1

	if ref == NullCluster {
		if op != OpAlloc {
			if op == OpGet {
				*outPtr = NullCluster
				return nil
			}
			return newErr("HandleFileCluster", EDCNOTIL, nil)
		}
		newRef, err := fs.allocRefCluster(nInode)
		if err != nil {
			return err
		}
		in.Indirect1 = newRef
		in.CluCount++
		ref = newRef
	}

	s, err := fs.readRef(ref, p1)
	if err != nil {
		return err
	}

	newS, result, err := fs.applyLeafOp(nInode, clustInd, s, op)
	if err != nil {
		return err
	}
	if err := fs.writeRef(ref, p1, newS); err != nil {
		return err
	}

	if op == OpFreeClean || op == OpClean {
		empty, err := fs.allNullRefs(ref)
		if err != nil {
			return err
		}
		if empty {
			if err := fs.freeRefCluster(ref); err != nil {
				return err
			}
			in.Indirect1 = NullCluster
			in.CluCount--
		}
	}

	if err := fs.putInode(nInode, in); err != nil {
		return err
	}
	if op == OpGet || op == OpAlloc {
		*outPtr = result
	}
	return nil
}

func (fs *FileSystem) handleDoubleIndirect(nInode uint32, in *Inode, clustInd, p2, p1 int, op Op, outPtr *uint32) error {
	i2 := in.Indirect2

	if i2 == NullCluster {
		if op != OpAlloc {
			if op == OpGet {
				*outPtr = NullCluster
				return nil
			}
			return newErr("HandleFileCluster", EDCNOTIL, nil)
		}
		newI2, err := fs.allocRefCluster(nInode)
		if err != nil {
			return err
		}
		in.Indirect2 = newI2
		in.CluCount++
		i2 = newI2
	}

	inner, err := fs.readRef(i2, p2)
	if err != nil {
		return err
	}
	if inner == NullCluster {
		if op != OpAlloc {
			if op == OpGet {
				*outPtr = NullCluster
				return nil
			}
			return newErr("HandleFileCluster", EDCNOTIL, nil)
		}
		newInner, err := fs.allocRefCluster(nInode)
		if err != nil {
			return err
		}
		if err := fs.writeRef(i2, p2, newInner); err != nil {
			return err
		}
		in.CluCount++
		inner = newInner
	}

	s, err := fs.readRef(inner, p1)
	if err != nil {
		return err
	}

	newS, result, err := fs.applyLeafOp(nInode, clustInd, s, op)
	if err != nil {
		return err
	}
	if err := fs.writeRef(inner, p1, newS); err != nil {
		return err
	}

	if op == OpFreeClean || op == OpClean {
		emptyInner, err := fs.allNullRefs(inner)
		if err != nil {
			return err
		}
		if emptyInner {
			if err := fs.freeRefCluster(inner); err != nil {
				return err
			}
			if err := fs.writeRef(i2, p2, NullCluster); err != nil {
				return err
			}
			in.CluCount--

			emptyOuter, err := fs.allNullRefs(i2)
			if err != nil {
				return err
			}
			if emptyOuter {
				if err := fs.freeRefCluster(i2); err != nil {
					return err
				}
				in.Indirect2 = NullCluster
				in.CluCount--
			}
		}
	}

	if err := fs.putInode(nInode, in); err != nil {
		return err
	}
	if op == OpGet || op == OpAlloc {
		*outPtr = result
	}
	return nil
}

// applyLeafOp implements the GET/ALLOC/FREE/FREE_CLEAN/CLEAN table for one
// leaf reference slot currently holding s (NULL_CLUSTER or an allocated
// logical cluster). It returns the new value the caller must store back
// into the slot and, for GET/ALLOC, the cluster number to report. For
// ALLOC, the freshly allocated cluster is attached into the file's
// doubly-linked data-cluster chain (AttachLogicalCluster) before this
// returns success: a failure there is reported without ever producing a
// newS/result pair the caller would persist, so the slot and the caller's
// outPtr are never updated to a half-attached cluster.
func (fs *FileSystem) applyLeafOp(nInode uint32, clustInd int, s uint32, op Op) (newS uint32, result uint32, err error) {
	switch op {
	case OpGet:
		return s, s, nil

	case OpAlloc:
		if s != NullCluster {
			return s, 0, newErr("HandleFileCluster", EDCARDYIL, nil)
		}
		c, err := fs.allocDataCluster()
		if err != nil {
			return s, 0, err
		}
		if err := fs.setClusterStat(c, nInode); err != nil {
			return s, 0, err
		}
		if err := fs.AttachLogicalCluster(nInode, clustInd, c); err != nil {
			return s, 0, err
		}
		return c, c, nil

	case OpFree:
		if s == NullCluster {
			return s, 0, newErr("HandleFileCluster", EDCNOTIL, nil)
		}
		if err := fs.freeDataCluster(s); err != nil {
			return s, 0, err
		}
		return s, 0, nil

	case OpFreeClean:
		if s == NullCluster {
			return s, 0, newErr("HandleFileCluster", EDCNOTIL, nil)
		}
		if err := fs.setClusterStat(s, NullInode); err != nil {
			return s, 0, err
		}
		if err := fs.freeDataCluster(s); err != nil {
			return s, 0, err
		}
		return NullCluster, 0, nil

	case OpClean:
		if s == NullCluster {
			return s, 0, newErr("HandleFileCluster", EDCNOTIL, nil)
		}
		if err := fs.setClusterStat(s, NullInode); err != nil {
			return s, 0, err
		}
		return NullCluster, 0, nil

	default:
		return s, 0, newErr("HandleFileCluster", EINVAL, nil)
	}
}

func (fs *FileSystem) setClusterStat(c uint32, stat uint32) error {
	h, _, err := fs.getCluster(c)
	if err != nil {
		return err
	}
	h.Stat = stat
	return fs.putClusterHeader(c, h)
}

// allocRefCluster allocates a fresh reference cluster (single- or
// double-indirect index node) and initializes every RPC slot to
// NULL_CLUSTER.
func (fs *FileSystem) allocRefCluster(owner uint32) (uint32, error) {
	c, err := fs.allocDataCluster()
	if err != nil {
		return 0, err
	}
	if err := fs.setClusterStat(c, owner); err != nil {
		return 0, err
	}
	h, b, err := fs.getCluster(c)
	if err != nil {
		return 0, err
	}
	h.Prev = NullCluster
	h.Next = NullCluster
	if err := fs.putClusterHeader(c, h); err != nil {
		return 0, err
	}
	_ = b
	for i := 0; i < RPC; i++ {
		if err := fs.writeRef(c, i, NullCluster); err != nil {
			return 0, err
		}
	}
	return c, nil
}

func (fs *FileSystem) freeRefCluster(c uint32) error {
	if err := fs.setClusterStat(c, NullInode); err != nil {
		return err
	}
	return fs.freeDataCluster(c)
}

func (fs *FileSystem) readRef(c uint32, slot int) (uint32, error) {
	_, b, err := fs.getCluster(c)
	if err != nil {
		return 0, err
	}
	return refAt(b, slot), nil
}

func (fs *FileSystem) writeRef(c uint32, slot int, val uint32) error {
	_, b, err := fs.getCluster(c)
	if err != nil {
		return err
	}
	putRefAt(b, slot, val)
	fs.markClusterDirty()
	return nil
}

func (fs *FileSystem) allNullRefs(c uint32) (bool, error) {
	_, b, err := fs.getCluster(c)
	if err != nil {
		return false, err
	}
	for i := 0; i < RPC; i++ {
		if refAt(b, i) != NullCluster {
			return false, nil
		}
	}
	return true, nil
}

// AttachLogicalCluster links a newly allocated content cluster into the
// file's doubly-linked data-cluster chain at logical position clustInd. It
// must be called only once nLClust's stat already names nInode.
func (fs *FileSystem) AttachLogicalCluster(nInode uint32, clustInd int, nLClust uint32) error {
	h, _, err := fs.getCluster(nLClust)
	if err != nil {
		return err
	}
	if h.Stat != nInode {
		return newErr("AttachLogicalCluster", EWGINODENB, nil)
	}

	var prev, next uint32 = NullCluster, NullCluster
	if clustInd > 0 {
		if err := fs.HandleFileCluster(nInode, clustInd-1, OpGet, &prev); err != nil {
			return err
		}
	}
	if clustInd < MaxFileClusters-1 {
		if err := fs.HandleFileCluster(nInode, clustInd+1, OpGet, &next); err != nil {
			return err
		}
	}

	h.Prev = prev
	h.Next = next
	if err := fs.putClusterHeader(nLClust, h); err != nil {
		return err
	}

	if prev != NullCluster {
		ph, _, err := fs.getCluster(prev)
		if err != nil {
			return err
		}
		ph.Next = nLClust
		if err := fs.putClusterHeader(prev, ph); err != nil {
			return err
		}
	}
	if next != NullCluster {
		nh, _, err := fs.getCluster(next)
		if err != nil {
			return err
		}
		nh.Prev = nLClust
		if err := fs.putClusterHeader(next, nh); err != nil {
			return err
		}
	}
	return nil
}

// CleanLogicalCluster dissociates an allocated cluster from its owning
// inode without touching its free-chain links.
func (fs *FileSystem) CleanLogicalCluster(nInode, nLClust uint32) error {
	h, _, err := fs.getCluster(nLClust)
	if err != nil {
		return err
	}
	if h.Stat != nInode {
		return newErr("CleanLogicalCluster", EWGINODENB, nil)
	}
	h.Stat = NullInode
	return fs.putClusterHeader(nLClust, h)
}
