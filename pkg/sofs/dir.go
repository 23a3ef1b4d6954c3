package sofs

import "strings"

// SymloopMax bounds the number of symlink components GetDirEntryByPath
// will follow before giving up with ELOOP.
const SymloopMax = 16

func validateName(name string) error {
	if name == "" || len(name) > MaxName {
		return newErr("validateName", ENAMETOOLONG, nil)
	}
	if strings.ContainsRune(name, '/') {
		return newErr("validateName", EINVAL, nil)
	}
	return nil
}

func nameBytes(name string) [MaxName + 1]byte {
	var b [MaxName + 1]byte
	copy(b[:], name)
	return b
}

// GetDirEntryByName scans a directory's content in ascending index order
// for name. On success it returns the referenced inode and the entry's
// global slot index. On ENOENT, idx names the first free-and-clean slot
// encountered, or the first not-yet-allocated position if none was free.
func (fs *FileSystem) GetDirEntryByName(nInodeDir uint32, name string) (nInodeEnt uint32, idx int, err error) {
	if err := validateName(name); err != nil {
		return NullInode, 0, err
	}

	in, err := fs.getInode(nInodeDir)
	if err != nil {
		return NullInode, 0, err
	}
	if in.IsFree() || in.Type() != TypeDir {
		return NullInode, 0, newErr("GetDirEntryByName", ENOTDIR, nil)
	}
	if err := fs.AccessGranted(nInodeDir, AccessExecute); err != nil {
		return NullInode, 0, err
	}

	nClusters := int(in.Size) / (DPC * DirEntrySize)
	firstFree := -1

	for k := 0; k < nClusters; k++ {
		var c uint32
		if err := fs.HandleFileCluster(nInodeDir, k, OpGet, &c); err != nil {
			return NullInode, 0, err
		}
		if c == NullCluster {
			continue
		}
		_, b, err := fs.getCluster(c)
		if err != nil {
			return NullInode, 0, err
		}
		for i := 0; i < DPC; i++ {
			e := entryAt(b, i)
			global := k*DPC + i
			if e.IsEmpty() {
				if firstFree < 0 {
					firstFree = global
				}
				continue
			}
			if e.NameString() == name {
				return e.NInode, global, nil
			}
		}
	}

	if firstFree >= 0 {
		idx = firstFree
	} else {
		idx = int(in.CluCount) * DPC
	}
	return NullInode, idx, newErr("GetDirEntryByName", ENOENT, nil)
}

// GetDirEntryByPath resolves an absolute path to the inode of its final
// component and the inode/index of that component's directory entry.
func (fs *FileSystem) GetDirEntryByPath(path string) (nInodeEnt uint32, dirInode uint32, idx int, err error) {
	loops := 0
	return fs.getDirEntryByPath(path, &loops)
}

// getDirEntryByPath resolves path for GetDirEntryByPath; loops counts the
// symlinks followed so far, including those of nested target resolutions.
func (fs *FileSystem) getDirEntryByPath(path string, loops *int) (nInodeEnt uint32, dirInode uint32, idx int, err error) {
	if path == "" {
		return NullInode, NullInode, 0, newErr("GetDirEntryByPath", EINVAL, nil)
	}
	if len(path) > MaxPath {
		return NullInode, NullInode, 0, newErr("GetDirEntryByPath", ENAMETOOLONG, nil)
	}
	if !strings.HasPrefix(path, "/") {
		return NullInode, NullInode, 0, newErr("GetDirEntryByPath", ERELPATH, nil)
	}

	cur := RootInode
	components := strings.Split(strings.Trim(path, "/"), "/")
	if len(components) == 1 && components[0] == "" {
		return RootInode, RootInode, 0, nil
	}

	for i, comp := range components {
		if comp == "" {
			continue
		}
		if err := validateName(comp); err != nil {
			return NullInode, NullInode, 0, err
		}

		nEnt, slot, err := fs.GetDirEntryByName(cur, comp)
		if err != nil {
			return NullInode, NullInode, 0, err
		}

		last := i == len(components)-1
		if !last {
			entIn, err := fs.getInode(nEnt)
			if err != nil {
				return NullInode, NullInode, 0, err
			}
			if entIn.Type() == TypeSymlink {
				*loops++
				if *loops > SymloopMax {
					return NullInode, NullInode, 0, newErr("GetDirEntryByPath", ELOOP, nil)
				}
				target, err := fs.ReadSymlink(nEnt)
				if err != nil {
					return NullInode, NullInode, 0, err
				}
				tEnt, _, _, err := fs.getDirEntryByPath(target, loops)
				if err != nil {
					return NullInode, NullInode, 0, err
				}
				cur = tEnt
				continue
			}
			if entIn.Type() != TypeDir {
				return NullInode, NullInode, 0, newErr("GetDirEntryByPath", ENOTDIR, nil)
			}
			cur = nEnt
			continue
		}

		return nEnt, cur, slot, nil
	}

	return NullInode, NullInode, 0, newErr("GetDirEntryByPath", ENOENT, nil)
}

// allocDirCluster allocates a fresh directory-content cluster at clustInd
// and initializes every slot to free-and-clean.
func (fs *FileSystem) allocDirCluster(nInode uint32, clustInd int) (uint32, error) {
	var c uint32
	if err := fs.HandleFileCluster(nInode, clustInd, OpAlloc, &c); err != nil {
		return 0, err
	}
	_, b, err := fs.getCluster(c)
	if err != nil {
		return 0, err
	}
	empty := &DirEntry{NInode: NullInode}
	for i := 0; i < DPC; i++ {
		putEntryAt(b, i, empty)
	}
	fs.markClusterDirty()
	return c, nil
}

func (fs *FileSystem) writeDirEntrySlot(nInode uint32, idx int, e *DirEntry) error {
	clustInd := idx / DPC
	slot := idx % DPC

	var c uint32
	if err := fs.HandleFileCluster(nInode, clustInd, OpGet, &c); err != nil {
		return err
	}
	if c == NullCluster {
		var err error
		c, err = fs.allocDirCluster(nInode, clustInd)
		if err != nil {
			return err
		}
	}
	_, b, err := fs.getCluster(c)
	if err != nil {
		return err
	}
	putEntryAt(b, slot, e)
	fs.markClusterDirty()
	return nil
}

func (fs *FileSystem) dirEntrySlot(nInode uint32, idx int) (*DirEntry, error) {
	clustInd := idx / DPC
	slot := idx % DPC

	var c uint32
	if err := fs.HandleFileCluster(nInode, clustInd, OpGet, &c); err != nil {
		return nil, err
	}
	if c == NullCluster {
		return &DirEntry{NInode: NullInode}, nil
	}
	_, b, err := fs.getCluster(c)
	if err != nil {
		return nil, err
	}
	return entryAt(b, slot), nil
}

// initDotEntries writes "." and ".." into entIno's own content cluster 0,
// clearing the rest of that cluster's slots. Used both when a fresh
// directory is created (ADD) and when an existing directory subtree is
// regrafted elsewhere (ATTACH).
func (fs *FileSystem) initDotEntries(entIno, selfInode, parentInode uint32, fresh bool) error {
	var c uint32
	var err error
	if fresh {
		c, err = fs.allocDirCluster(entIno, 0)
		if err != nil {
			return err
		}
	} else {
		if err := fs.HandleFileCluster(entIno, 0, OpGet, &c); err != nil {
			return err
		}
		if c == NullCluster {
			return newErr("initDotEntries", EDIRINVAL, nil)
		}
	}

	_, b, err := fs.getCluster(c)
	if err != nil {
		return err
	}
	dot := nameBytes(".")
	dotdot := nameBytes("..")
	putEntryAt(b, 0, &DirEntry{Name: dot, NInode: selfInode})
	putEntryAt(b, 1, &DirEntry{Name: dotdot, NInode: parentInode})
	fs.markClusterDirty()
	return nil
}

// AddAttDirEntry creates (ADD) or regrafts (ATTACH) a directory entry
// nInodeEnt named name within nInodeDir.
func (fs *FileSystem) AddAttDirEntry(nInodeDir uint32, name string, nInodeEnt uint32, op DirOp) error {
	if err := validateName(name); err != nil {
		return err
	}

	dir, err := fs.getInode(nInodeDir)
	if err != nil {
		return err
	}
	if dir.IsFree() || dir.Type() != TypeDir {
		return newErr("AddAttDirEntry", ENOTDIR, nil)
	}
	if err := fs.AccessGranted(nInodeDir, AccessWrite|AccessExecute); err != nil {
		return err
	}

	_, idx, err := fs.GetDirEntryByName(nInodeDir, name)
	if err == nil {
		return newErr("AddAttDirEntry", EEXIST, nil)
	}
	if !IsCode(err, ENOENT) {
		return err
	}

	ent, err := fs.getInode(nInodeEnt)
	if err != nil {
		return err
	}
	if ent.IsFree() {
		return newErr("AddAttDirEntry", EINVAL, nil)
	}

	if ent.Type() == TypeDir {
		if dir.RefCount+1 > 65534 {
			return newErr("AddAttDirEntry", EMLINK, nil)
		}
		if err := fs.initDotEntries(nInodeEnt, nInodeEnt, nInodeDir, op == DirAdd); err != nil {
			return err
		}
	}

	if err := fs.writeDirEntrySlot(nInodeDir, idx, &DirEntry{Name: nameBytes(name), NInode: nInodeEnt}); err != nil {
		return err
	}

	// Allocating a content cluster above updates the inodes on disk; reload
	// them so the writes below keep the new cluster references.
	if dir, err = fs.getInode(nInodeDir); err != nil {
		return err
	}
	if ent, err = fs.getInode(nInodeEnt); err != nil {
		return err
	}
	if ent.Type() == TypeDir {
		ent.RefCount += 2
		dir.RefCount++
		ent.Size = DPC * DirEntrySize
	} else {
		ent.RefCount++
	}

	nClusters := idx/DPC + 1
	if int(dir.Size) < nClusters*DPC*DirEntrySize {
		dir.Size = uint32(nClusters * DPC * DirEntrySize)
	}

	if err := fs.WriteInode(nInodeDir, dir, StatusInUse); err != nil {
		return err
	}
	return fs.WriteInode(nInodeEnt, ent, StatusInUse)
}

// RemDetachDirEntry removes (REM) or detaches (DETACH) the directory entry
// named name within nInodeDir.
func (fs *FileSystem) RemDetachDirEntry(nInodeDir uint32, name string, op DirOp) error {
	if err := validateName(name); err != nil {
		return err
	}

	dir, err := fs.getInode(nInodeDir)
	if err != nil {
		return err
	}
	if dir.IsFree() || dir.Type() != TypeDir {
		return newErr("RemDetachDirEntry", ENOTDIR, nil)
	}
	if err := fs.AccessGranted(nInodeDir, AccessWrite|AccessExecute); err != nil {
		return err
	}

	nInodeEnt, idx, err := fs.GetDirEntryByName(nInodeDir, name)
	if err != nil {
		return err
	}

	ent, err := fs.getInode(nInodeEnt)
	if err != nil {
		return err
	}

	if op == DirRem && ent.Type() == TypeDir {
		empty, err := fs.dirIsEmpty(nInodeEnt)
		if err != nil {
			return err
		}
		if !empty {
			return newErr("RemDetachDirEntry", ENOTEMPTY, nil)
		}
	}

	slot, err := fs.dirEntrySlot(nInodeDir, idx)
	if err != nil {
		return err
	}

	if op == DirRem {
		slot.Name[MaxName] = slot.Name[0]
		slot.Name[0] = 0
	} else {
		slot.Name = [MaxName + 1]byte{}
		slot.NInode = NullInode
	}
	if err := fs.writeDirEntrySlot(nInodeDir, idx, slot); err != nil {
		return err
	}

	if ent.Type() == TypeDir {
		ent.RefCount -= 2
		dir.RefCount--
	} else {
		ent.RefCount--
	}

	if op == DirRem && ent.RefCount == 0 {
		if err := fs.handleFileClusters(nInodeEnt, OpFree, 0); err != nil {
			return err
		}
		if err := fs.WriteInode(nInodeEnt, ent, StatusInUse); err != nil {
			return err
		}
		if err := fs.WriteInode(nInodeDir, dir, StatusInUse); err != nil {
			return err
		}
		return fs.FreeInode(nInodeEnt)
	}

	if err := fs.WriteInode(nInodeEnt, ent, StatusInUse); err != nil {
		return err
	}
	return fs.WriteInode(nInodeDir, dir, StatusInUse)
}

func (fs *FileSystem) dirIsEmpty(nInodeDir uint32) (bool, error) {
	in, err := fs.getInode(nInodeDir)
	if err != nil {
		return false, err
	}
	nClusters := int(in.Size) / (DPC * DirEntrySize)
	for k := 0; k < nClusters; k++ {
		var c uint32
		if err := fs.HandleFileCluster(nInodeDir, k, OpGet, &c); err != nil {
			return false, err
		}
		if c == NullCluster {
			continue
		}
		_, b, err := fs.getCluster(c)
		if err != nil {
			return false, err
		}
		for i := 0; i < DPC; i++ {
			e := entryAt(b, i)
			if e.IsEmpty() {
				continue
			}
			n := e.NameString()
			if k == 0 && (n == "." || n == "..") {
				continue
			}
			if n == "" {
				// REM'd (hidden) entry: still occupies a live reference.
				continue
			}
			return false, nil
		}
	}
	return true, nil
}

// RenameDirEntry renames the entry at oldName to newName in place, without
// touching the referenced inode or its refcounts.
func (fs *FileSystem) RenameDirEntry(nInodeDir uint32, oldName, newName string) error {
	if err := validateName(oldName); err != nil {
		return err
	}
	if err := validateName(newName); err != nil {
		return err
	}

	dir, err := fs.getInode(nInodeDir)
	if err != nil {
		return err
	}
	if dir.IsFree() || dir.Type() != TypeDir {
		return newErr("RenameDirEntry", ENOTDIR, nil)
	}
	if err := fs.AccessGranted(nInodeDir, AccessWrite|AccessExecute); err != nil {
		return err
	}

	_, idx, err := fs.GetDirEntryByName(nInodeDir, oldName)
	if err != nil {
		return err
	}
	if _, _, err := fs.GetDirEntryByName(nInodeDir, newName); err == nil {
		return newErr("RenameDirEntry", EEXIST, nil)
	} else if !IsCode(err, ENOENT) {
		return err
	}

	slot, err := fs.dirEntrySlot(nInodeDir, idx)
	if err != nil {
		return err
	}
	slot.Name = nameBytes(newName)
	if err := fs.writeDirEntrySlot(nInodeDir, idx, slot); err != nil {
		return err
	}

	// Defect resolution: the directory's mTime must be refreshed after a
	// rename, not left stale.
	return fs.WriteInode(nInodeDir, dir, StatusInUse)
}
