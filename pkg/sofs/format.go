package sofs

import (
	"github.com/google/uuid"

	"github.com/sofs-go/gosofs/pkg/elog"
)

// FormatOptions controls a Format call.
type FormatOptions struct {
	// Name is the volume name. Empty means DefaultVolumeName.
	Name string
	// NumInodes requests an inode count, rounded up to a multiple of IPB.
	// Zero means nTotal/8.
	NumInodes uint32
	// Zero requests the payload of every free cluster be zeroed during
	// formatting (mkfs's -z flag).
	Zero bool
}

// Format lays out a fresh SOFS image over bd, which must already be exactly
// sizeBytes long and a multiple of BlockSize. The image is committed (magic
// flipped from "formatting" to MagicNumber) only once every structure below
// it has been written, so an interrupted format is detectable by a
// subsequent Open.
func Format(bd BlockDevice, sizeBytes int64, opts FormatOptions, caller Caller, log elog.Logger) (*FileSystem, error) {
	if log == nil {
		log = elog.NewNop()
	}
	if sizeBytes <= 0 || sizeBytes%BlockSize != 0 {
		return nil, newErr("Format", EINVAL, nil)
	}

	nTotal := uint32(sizeBytes / BlockSize)

	numInodes := opts.NumInodes
	if numInodes == 0 {
		numInodes = nTotal / 8
	}
	numInodes = ((numInodes + IPB - 1) / IPB) * IPB
	if numInodes == 0 {
		numInodes = IPB
	}

	iTableSize := numInodes / IPB
	if uint32(1)+iTableSize >= nTotal {
		return nil, newErr("Format", ENOSPC, nil)
	}
	dZoneTotal := (nTotal - 1 - iTableSize) / BlocksPerCluster
	if dZoneTotal < 1 {
		return nil, newErr("Format", ENOSPC, nil)
	}
	iTotal := iTableSize * IPB
	dZoneStart := 1 + iTableSize

	name := opts.Name
	if name == "" {
		name = DefaultVolumeName
	}
	if len(name) >= PartitionNameSize {
		return nil, newErr("Format", ENAMETOOLONG, nil)
	}

	d := openDevice(bd)
	d.sb = Superblock{
		Magic:       MagicFormatting,
		Version:     VersionNumber,
		NTotal:      nTotal,
		MStat:       MStatPRU,
		ITableStart: 1,
		ITableSize:  iTableSize,
		ITotal:      iTotal,
		IFree:       iTotal - 1,
		IHead:       1,
		ITail:       iTotal - 1,
		DZoneStart:  dZoneStart,
		DZoneTotal:  dZoneTotal,
		DZoneFree:   dZoneTotal - 1,
		DHead:       1,
		DTail:       dZoneTotal - 1,
		RetrievIdx:  DZoneCacheSize,
		InsertIdx:   0,
	}
	copy(d.sb.Name[:], name)
	volID := uuid.New()
	copy(d.sb.UUID[:], volID[:])
	for i := range d.sb.RetrievCache {
		d.sb.RetrievCache[i] = NullCluster
	}
	for i := range d.sb.InsertCache {
		d.sb.InsertCache[i] = NullCluster
	}
	d.markSuperblockDirty()
	if err := d.flushSuperblock(); err != nil {
		return nil, err
	}

	fs := &FileSystem{dev: d, log: log, Caller: caller}

	var reporter elog.ProgressReporter = elog.NewNop()
	if pr, ok := log.(elog.ProgressReporter); ok {
		reporter = pr
	}

	inodeProgress := reporter.NewProgress("inode table", "count", int64(iTotal))
	if err := fs.formatInodeTable(caller, inodeProgress); err != nil {
		inodeProgress.Finish(false)
		return nil, err
	}
	inodeProgress.Finish(true)

	if err := fs.formatRootDir(caller); err != nil {
		return nil, err
	}

	clusterProgress := reporter.NewProgress("free clusters", "count", int64(dZoneTotal))
	if err := fs.formatFreeClusterChain(opts.Zero, clusterProgress); err != nil {
		clusterProgress.Finish(false)
		return nil, err
	}
	clusterProgress.Finish(true)

	d.sb.Magic = MagicNumber
	d.markSuperblockDirty()
	if err := d.flushAll(); err != nil {
		return nil, err
	}

	log.Infof("sofs: formatted volume %q: %d blocks, %d inodes, %d data clusters",
		name, nTotal, iTotal, dZoneTotal)

	return fs, nil
}

// formatInodeTable marks every inode free and threads the free-inode list
// {1, ..., iTotal-1} in ascending order; inode 0 is left untouched here (it
// is initialized separately as the root directory by formatRootDir).
//
// The original free-inode list setup this is grounded on had an off-by-one
// in how the list's last node's "next" link was written; here the head's
// prev and the tail's next are always NULL_INODE, unconditionally.
func (fs *FileSystem) formatInodeTable(caller Caller, progress elog.Progress) error {
	sb := &fs.dev.sb

	for n := uint32(1); n < sb.ITotal; n++ {
		in := &Inode{Mode: InodeFree, Indirect1: NullCluster, Indirect2: NullCluster}
		for i := range in.Direct {
			in.Direct[i] = NullCluster
		}
		switch {
		case sb.ITotal == 2:
			in.SetPrev(NullInode)
			in.SetNext(NullInode)
		case n == 1:
			in.SetPrev(NullInode)
			in.SetNext(n + 1)
		case n == sb.ITotal-1:
			in.SetPrev(n - 1)
			in.SetNext(NullInode)
		default:
			in.SetPrev(n - 1)
			in.SetNext(n + 1)
		}
		if err := fs.putInode(n, in); err != nil {
			return err
		}
		progress.Increment(1)
	}
	return nil
}

// formatRootDir initializes inode 0 and cluster 0 as the root directory.
func (fs *FileSystem) formatRootDir(caller Caller) error {
	root := &Inode{
		Mode:     InodeDir | DefaultDirPerms,
		RefCount: 2,
		Owner:    caller.UID,
		Group:    caller.GID,
		Size:     DPC * DirEntrySize,
		CluCount: 1,
	}
	for i := range root.Direct {
		root.Direct[i] = NullCluster
	}
	root.Direct[0] = RootCluster
	root.Indirect1 = NullCluster
	root.Indirect2 = NullCluster
	t := now()
	root.SetATime(t)
	root.SetMTime(t)
	if err := fs.putInode(RootInode, root); err != nil {
		return err
	}

	h, b, err := fs.getCluster(RootCluster)
	if err != nil {
		return err
	}
	h.Prev = NullCluster
	h.Next = NullCluster
	h.Stat = RootInode
	if err := fs.putClusterHeader(RootCluster, h); err != nil {
		return err
	}
	_, b, err = fs.getCluster(RootCluster)
	if err != nil {
		return err
	}
	empty := &DirEntry{NInode: NullInode}
	for i := 0; i < DPC; i++ {
		putEntryAt(b, i, empty)
	}
	putEntryAt(b, 0, &DirEntry{Name: nameBytes("."), NInode: RootInode})
	putEntryAt(b, 1, &DirEntry{Name: nameBytes(".."), NInode: RootInode})
	fs.markClusterDirty()
	return nil
}

// formatFreeClusterChain lays out the initial free-cluster chain over
// logical clusters 1 .. dZoneTotal-1, in ascending order.
func (fs *FileSystem) formatFreeClusterChain(zero bool, progress elog.Progress) error {
	sb := &fs.dev.sb

	for c := uint32(1); c < sb.DZoneTotal; c++ {
		_, b, err := fs.getCluster(c)
		if err != nil {
			return err
		}
		h := &clusterHeader{Stat: NullInode}
		switch {
		case sb.DZoneTotal == 2:
			h.Prev = NullCluster
			h.Next = NullCluster
		case c == 1:
			h.Prev = NullCluster
			h.Next = c + 1
		case c == sb.DZoneTotal-1:
			h.Prev = c - 1
			h.Next = NullCluster
		default:
			h.Prev = c - 1
			h.Next = c + 1
		}
		if err := fs.putClusterHeader(c, h); err != nil {
			return err
		}
		if zero {
			payload := clusterPayload(b)
			for i := range payload {
				payload[i] = 0
			}
			fs.markClusterDirty()
		}
		progress.Increment(1)
	}
	return nil
}
