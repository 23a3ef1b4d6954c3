package sofs

// This file implements the defensive consistency predicates named in
// the component design, plus Check, a harness that runs them across an
// entire mounted image. Each predicate returns nil or a domain-specific
// *Error; Check stops at the first one it finds, mirroring the "no
// timeouts, finite deterministic steps" resource model the rest of the
// core follows.

// QCheckSuperBlock validates the superblock's own internal bounds.
func (fs *FileSystem) QCheckSuperBlock() error {
	sb := &fs.dev.sb

	if sb.Magic != MagicNumber {
		return newErr("QCheckSuperBlock", EBADF, nil)
	}
	if sb.IFree > sb.ITotal {
		return newErr("QCheckSuperBlock", EIUININVAL, nil)
	}
	if sb.DZoneFree > sb.DZoneTotal {
		return newErr("QCheckSuperBlock", EDCINVAL, nil)
	}
	if sb.RetrievIdx > DZoneCacheSize {
		return newErr("QCheckSuperBlock", EDCNALINVAL, nil)
	}
	if sb.InsertIdx > DZoneCacheSize {
		return newErr("QCheckSuperBlock", EDCNALINVAL, nil)
	}
	if sb.IFree == 0 && (sb.IHead != NullInode || sb.ITail != NullInode) {
		return newErr("QCheckSuperBlock", EIUININVAL, nil)
	}
	if sb.DZoneFree == 0 && sb.DHead == NullCluster && sb.DTail == NullCluster && (sb.InsertIdx != 0 || sb.RetrievIdx != DZoneCacheSize) {
		// on-disk chain empty and DZoneFree 0 is only consistent if the
		// caches are also empty
		return newErr("QCheckSuperBlock", EDCINVAL, nil)
	}
	return nil
}

// QCheckInT walks the on-disk free-inode list and verifies its length and
// link symmetry against the superblock's bookkeeping.
func (fs *FileSystem) QCheckInT() error {
	sb := &fs.dev.sb

	if sb.IFree == 0 {
		if sb.IHead != NullInode || sb.ITail != NullInode {
			return newErr("QCheckInT", EIUININVAL, nil)
		}
		return nil
	}

	count := uint32(0)
	prev := uint32(NullInode)
	cur := sb.IHead
	for cur != NullInode {
		in, err := fs.getInode(cur)
		if err != nil {
			return err
		}
		if !in.IsFree() {
			return newErr("QCheckInT", EFDININVAL, nil)
		}
		if in.Prev() != prev {
			return newErr("QCheckInT", EFDININVAL, nil)
		}
		count++
		if count > sb.ITotal {
			return newErr("QCheckInT", EFDININVAL, nil)
		}
		prev = cur
		cur = in.Next()
	}
	if prev != sb.ITail {
		return newErr("QCheckInT", EFDININVAL, nil)
	}
	if count != sb.IFree {
		return newErr("QCheckInT", EFDININVAL, nil)
	}
	return nil
}

// QCheckDZ verifies the on-disk free-data-cluster chain's length is
// consistent with dZoneFree once the two caches are accounted for.
func (fs *FileSystem) QCheckDZ() error {
	sb := &fs.dev.sb

	cached := sb.InsertIdx + (DZoneCacheSize - sb.RetrievIdx)
	if cached > sb.DZoneFree {
		return newErr("QCheckDZ", EDCINVAL, nil)
	}
	want := sb.DZoneFree - cached

	count := uint32(0)
	prev := uint32(NullCluster)
	cur := sb.DHead
	for cur != NullCluster {
		h, _, err := fs.getCluster(cur)
		if err != nil {
			return err
		}
		if h.Prev != prev {
			return newErr("QCheckDZ", EDCINVAL, nil)
		}
		count++
		if count > sb.DZoneTotal {
			return newErr("QCheckDZ", EDCINVAL, nil)
		}
		prev = cur
		cur = h.Next
	}
	if prev != sb.DTail {
		return newErr("QCheckDZ", EDCINVAL, nil)
	}
	if count != want {
		return newErr("QCheckDZ", EDCINVAL, nil)
	}
	return nil
}

// QCheckInodeIU checks an in-use inode's own structural consistency.
func (fs *FileSystem) QCheckInodeIU(nInode uint32) error {
	in, err := fs.getInode(nInode)
	if err != nil {
		return err
	}
	if in.IsFree() {
		return newErr("QCheckInodeIU", EIUININVAL, nil)
	}
	switch in.Type() {
	case TypeDir, TypeFile, TypeSymlink:
	default:
		return newErr("QCheckInodeIU", EIUININVAL, nil)
	}
	return nil
}

// QCheckFDInode checks a free-dirty inode: free flag set, cluster
// references not yet cleaned out.
func (fs *FileSystem) QCheckFDInode(nInode uint32) error {
	in, err := fs.getInode(nInode)
	if err != nil {
		return err
	}
	if !in.IsFree() {
		return newErr("QCheckFDInode", EFDININVAL, nil)
	}
	return nil
}

// QCheckFCInode checks a free-clean inode: free flag set and every
// cluster reference cleared.
func (fs *FileSystem) QCheckFCInode(nInode uint32) error {
	in, err := fs.getInode(nInode)
	if err != nil {
		return err
	}
	if !in.IsFree() {
		return newErr("QCheckFCInode", EFININVAL, nil)
	}
	if in.CluCount != 0 || in.Indirect1 != NullCluster || in.Indirect2 != NullCluster {
		return newErr("QCheckFCInode", EFININVAL, nil)
	}
	for _, d := range in.Direct {
		if d != NullCluster {
			return newErr("QCheckFCInode", EFININVAL, nil)
		}
	}
	return nil
}

// QCheckStatDC checks that cluster c's header stat is consistent with
// whichever owning inode (if any) is named owner (pass NullInode when the
// caller believes it to be free).
func (fs *FileSystem) QCheckStatDC(c uint32, owner uint32) error {
	h, _, err := fs.getCluster(c)
	if err != nil {
		return err
	}
	if owner == NullInode {
		return nil // free clusters may carry a stale stat (dirty-free)
	}
	if h.Stat != owner {
		return newErr("QCheckStatDC", EWGINODENB, nil)
	}
	return nil
}

// QCheckDirCont checks that a directory inode's first content cluster
// begins with "." then "..".
func (fs *FileSystem) QCheckDirCont(nInodeDir uint32) error {
	in, err := fs.getInode(nInodeDir)
	if err != nil {
		return err
	}
	if in.IsFree() || in.Type() != TypeDir {
		return newErr("QCheckDirCont", ENOTDIR, nil)
	}

	var c uint32
	if err := fs.HandleFileCluster(nInodeDir, 0, OpGet, &c); err != nil {
		return err
	}
	if c == NullCluster {
		return newErr("QCheckDirCont", EDIRINVAL, nil)
	}
	_, b, err := fs.getCluster(c)
	if err != nil {
		return err
	}
	if entryAt(b, 0).NameString() != "." || entryAt(b, 1).NameString() != ".." {
		return newErr("QCheckDirCont", EDIRINVAL, nil)
	}
	return nil
}

// Check runs every consistency predicate across the whole mounted image:
// the superblock, the free-inode list, the free-data-cluster chain, every
// inode (dispatched to the matching per-state check), and every directory's
// "."/".." content. It returns the first inconsistency found, or nil.
func (fs *FileSystem) Check() error {
	if err := fs.QCheckSuperBlock(); err != nil {
		return err
	}
	if err := fs.QCheckInT(); err != nil {
		return err
	}
	if err := fs.QCheckDZ(); err != nil {
		return err
	}

	sb := &fs.dev.sb
	for n := uint32(0); n < sb.ITotal; n++ {
		in, err := fs.getInode(n)
		if err != nil {
			return err
		}
		if in.IsFree() {
			if in.CluCount != 0 || in.Indirect1 != NullCluster || in.Indirect2 != NullCluster {
				if err := fs.QCheckFDInode(n); err != nil {
					return err
				}
			} else {
				if err := fs.QCheckFCInode(n); err != nil {
					return err
				}
			}
			continue
		}
		if err := fs.QCheckInodeIU(n); err != nil {
			return err
		}
		if in.Type() == TypeDir {
			if err := fs.QCheckDirCont(n); err != nil {
				return err
			}
		}
	}

	return nil
}
