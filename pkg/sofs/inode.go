package sofs

// InodeStatus names the structural state ReadInode/WriteInode expect an
// inode to be in.
type InodeStatus int

const (
	// StatusInUse expects a legal, non-free inode type.
	StatusInUse InodeStatus = iota
	// StatusFreeDirty expects a free inode whose cluster references have
	// not yet been cleaned.
	StatusFreeDirty
)

// AllocInode takes the head of the free-inode list, cleaning it first if it
// is free-dirty, and returns it initialized as a fresh inode of typ.
func (fs *FileSystem) AllocInode(typ InodeType) (uint32, error) {
	if typ != TypeDir && typ != TypeFile && typ != TypeSymlink {
		return 0, newErr("AllocInode", EINVAL, nil)
	}

	sb := &fs.dev.sb
	if sb.IFree == 0 {
		return 0, newErr("AllocInode", ENOSPC, nil)
	}

	n := sb.IHead
	in, err := fs.getInode(n)
	if err != nil {
		return 0, err
	}

	if in.CluCount > 0 || in.Indirect1 != NullCluster || in.Indirect2 != NullCluster {
		if err := fs.CleanInode(n); err != nil {
			return 0, err
		}
		in, err = fs.getInode(n)
		if err != nil {
			return 0, err
		}
	}

	next := in.Next()

	owner, group := fs.Caller.UID, fs.Caller.GID

	in.Mode = uint16(typ)
	in.RefCount = 0
	in.Owner = owner
	in.Group = group
	in.Size = 0
	in.CluCount = 0
	for i := range in.Direct {
		in.Direct[i] = NullCluster
	}
	in.Indirect1 = NullCluster
	in.Indirect2 = NullCluster
	t := now()
	in.SetATime(t)
	in.SetMTime(t)

	if err := fs.putInode(n, in); err != nil {
		return 0, err
	}

	if sb.IFree == 1 {
		sb.IHead = NullInode
		sb.ITail = NullInode
	} else {
		sb.IHead = next
		head, err := fs.getInode(next)
		if err != nil {
			return 0, err
		}
		head.SetPrev(NullInode)
		if err := fs.putInode(next, head); err != nil {
			return 0, err
		}
	}
	sb.IFree--
	fs.dev.markSuperblockDirty()

	return n, nil
}

// FreeInode moves an in-use inode with no remaining references to the tail
// of the free-inode list. The inode becomes free-dirty: its cluster
// references survive until a later CleanInode (explicit, or implicit via
// the next AllocInode to claim this slot).
func (fs *FileSystem) FreeInode(nInode uint32) error {
	if nInode == RootInode {
		return newErr("FreeInode", EPERM, nil)
	}

	in, err := fs.getInode(nInode)
	if err != nil {
		return err
	}
	if in.IsFree() {
		return newErr("FreeInode", EFININVAL, nil)
	}
	if in.RefCount != 0 {
		return newErr("FreeInode", EWGINODENB, nil)
	}

	in.Mode = (in.Mode &^ ModeTypeMask) | InodeFree

	sb := &fs.dev.sb
	if sb.IFree == 0 {
		sb.IHead = nInode
		sb.ITail = nInode
		in.SetPrev(NullInode)
		in.SetNext(NullInode)
	} else {
		oldTail := sb.ITail
		in.SetPrev(oldTail)
		in.SetNext(NullInode)

		tail, err := fs.getInode(oldTail)
		if err != nil {
			return err
		}
		tail.SetNext(nInode)
		if err := fs.putInode(oldTail, tail); err != nil {
			return err
		}
		sb.ITail = nInode
	}

	if err := fs.putInode(nInode, in); err != nil {
		return err
	}
	sb.IFree++
	fs.dev.markSuperblockDirty()
	return nil
}

// CleanInode sweeps every cluster reference out of a free-dirty inode,
// returning it to free-clean.
func (fs *FileSystem) CleanInode(nInode uint32) error {
	if nInode == RootInode {
		return newErr("CleanInode", EPERM, nil)
	}

	in, err := fs.getInode(nInode)
	if err != nil {
		return err
	}
	if !in.IsFree() {
		return newErr("CleanInode", EFDININVAL, nil)
	}

	if err := fs.handleFileClusters(nInode, OpClean, 0); err != nil {
		return err
	}

	in, err = fs.getInode(nInode)
	if err != nil {
		return err
	}
	in.CluCount = 0
	in.Size = 0
	in.Indirect1 = NullCluster
	in.Indirect2 = NullCluster
	for i := range in.Direct {
		in.Direct[i] = NullCluster
	}
	return fs.putInode(nInode, in)
}

// ReadInode copies the on-disk inode nInode after checking its structural
// state matches want; reading an in-use inode updates aTime.
func (fs *FileSystem) ReadInode(nInode uint32, want InodeStatus) (*Inode, error) {
	in, err := fs.getInode(nInode)
	if err != nil {
		return nil, err
	}
	if err := checkInodeStatus(in, want); err != nil {
		return nil, err
	}

	if want == StatusInUse {
		in.SetATime(now())
		if err := fs.putInode(nInode, in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// WriteInode writes in back to nInode after checking its structural state
// matches want; writing an in-use inode updates mTime and aTime.
func (fs *FileSystem) WriteInode(nInode uint32, in *Inode, want InodeStatus) error {
	if err := checkInodeStatus(in, want); err != nil {
		return err
	}
	if want == StatusInUse {
		t := now()
		in.SetATime(t)
		in.SetMTime(t)
	}
	return fs.putInode(nInode, in)
}

func checkInodeStatus(in *Inode, want InodeStatus) error {
	switch want {
	case StatusInUse:
		if in.IsFree() {
			return newErr("checkInodeStatus", EIUININVAL, nil)
		}
		switch in.Type() {
		case TypeDir, TypeFile, TypeSymlink:
		default:
			return newErr("checkInodeStatus", EIUININVAL, nil)
		}
	case StatusFreeDirty:
		if !in.IsFree() {
			return newErr("checkInodeStatus", EFDININVAL, nil)
		}
	}
	return nil
}

// Access mask bits for AccessGranted.
const (
	AccessRead    = 4
	AccessWrite   = 2
	AccessExecute = 1
)

// AccessGranted checks the caller's access against nInode's permission
// bits for the requested, nonzero opMask subset of {R,W,X}.
func (fs *FileSystem) AccessGranted(nInode uint32, opMask uint16) error {
	in, err := fs.getInode(nInode)
	if err != nil {
		return err
	}
	if in.IsFree() {
		return newErr("AccessGranted", EIUININVAL, nil)
	}

	if fs.Caller.IsRoot {
		if opMask&AccessExecute != 0 {
			perms := in.Perms()
			if perms&(InodeExUsr|InodeExGrp|InodeExOth) == 0 {
				return newErr("AccessGranted", EACCES, nil)
			}
		}
		return nil
	}

	perms := in.Perms()
	var triplet uint16
	switch {
	case fs.Caller.UID == in.Owner:
		triplet = (perms >> 6) & permRWX
	case fs.Caller.GID == in.Group:
		triplet = (perms >> 3) & permRWX
	default:
		triplet = perms & permRWX
	}

	if triplet&opMask != opMask {
		return newErr("AccessGranted", EACCES, nil)
	}
	return nil
}
