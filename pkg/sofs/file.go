package sofs

// ReadFileCluster reads logical position clustInd of a file-like inode
// into out, which must be ClusterPayloadSize bytes. Sparse (unallocated)
// positions read back as zeros.
func (fs *FileSystem) ReadFileCluster(nInode uint32, clustInd int, out []byte) error {
	if len(out) != ClusterPayloadSize {
		return newErr("ReadFileCluster", EINVAL, nil)
	}

	in, err := fs.getInode(nInode)
	if err != nil {
		return err
	}
	if in.IsFree() || (in.Type() != TypeFile && in.Type() != TypeSymlink) {
		return newErr("ReadFileCluster", EFININVAL, nil)
	}

	var c uint32
	if err := fs.HandleFileCluster(nInode, clustInd, OpGet, &c); err != nil {
		return err
	}
	if c == NullCluster {
		for i := range out {
			out[i] = 0
		}
		return nil
	}

	_, b, err := fs.getCluster(c)
	if err != nil {
		return err
	}
	copy(out, clusterPayload(b))
	return nil
}

// WriteFileCluster overwrites logical position clustInd of a file-like
// inode with payload, allocating the position first if it is sparse.
func (fs *FileSystem) WriteFileCluster(nInode uint32, clustInd int, payload []byte) error {
	if len(payload) != ClusterPayloadSize {
		return newErr("WriteFileCluster", EINVAL, nil)
	}

	in, err := fs.getInode(nInode)
	if err != nil {
		return err
	}
	if in.IsFree() || (in.Type() != TypeFile && in.Type() != TypeSymlink) {
		return newErr("WriteFileCluster", EFININVAL, nil)
	}

	var c uint32
	if err := fs.HandleFileCluster(nInode, clustInd, OpGet, &c); err != nil {
		return err
	}
	if c == NullCluster {
		if err := fs.HandleFileCluster(nInode, clustInd, OpAlloc, &c); err != nil {
			return err
		}
	}

	_, b, err := fs.getCluster(c)
	if err != nil {
		return err
	}
	copy(clusterPayload(b), payload)
	fs.markClusterDirty()
	return nil
}

// maxSymlinkClusters is the number of content clusters a symlink target
// occupies: ReadSymlink/WriteSymlink use cluster 0 only, and WriteSymlink
// rejects targets longer than one cluster's payload rather than truncating
// them.
const maxSymlinkClusters = 1

// ReadSymlink returns a symlink inode's target path.
func (fs *FileSystem) ReadSymlink(nInode uint32) (string, error) {
	in, err := fs.getInode(nInode)
	if err != nil {
		return "", err
	}
	if in.IsFree() || in.Type() != TypeSymlink {
		return "", newErr("ReadSymlink", EFININVAL, nil)
	}

	buf := make([]byte, ClusterPayloadSize)
	if err := fs.ReadFileCluster(nInode, 0, buf); err != nil {
		return "", err
	}

	n := int(in.Size)
	if n > len(buf) {
		n = len(buf)
	}
	return string(buf[:n]), nil
}

// WriteSymlink sets a symlink inode's target path, which must fit within
// one cluster's payload.
func (fs *FileSystem) WriteSymlink(nInode uint32, target string) error {
	if len(target) > ClusterPayloadSize {
		return newErr("WriteSymlink", ENAMETOOLONG, nil)
	}

	in, err := fs.getInode(nInode)
	if err != nil {
		return err
	}
	if in.IsFree() || in.Type() != TypeSymlink {
		return newErr("WriteSymlink", EFININVAL, nil)
	}

	buf := make([]byte, ClusterPayloadSize)
	copy(buf, target)
	if err := fs.WriteFileCluster(nInode, 0, buf); err != nil {
		return err
	}

	in, err = fs.getInode(nInode)
	if err != nil {
		return err
	}
	in.Size = uint32(len(target))
	return fs.WriteInode(nInode, in, StatusInUse)
}
