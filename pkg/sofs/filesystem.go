package sofs

import (
	"time"

	"github.com/sofs-go/gosofs/pkg/elog"
)

// Caller identifies the principal on whose behalf a FileSystem operation
// runs, for AccessGranted and for stamping newly allocated inodes'
// owner/group.
type Caller struct {
	UID    uint16
	GID    uint16
	IsRoot bool
}

// FileSystem is a handle on an open SOFS image: the backing device, its
// cached superblock/inode-block/data-cluster, and the caller identity used
// for permission checks. It is single-threaded and non-reentrant, per
// spec.md's concurrency model -- do not share a *FileSystem across
// goroutines without external synchronization.
type FileSystem struct {
	dev    *device
	log    elog.Logger
	Caller Caller
}

// Open mounts an already-formatted image: it reads and validates the
// superblock and marks the mount dirty (mStat) until Close runs cleanly.
func Open(bd BlockDevice, caller Caller, log elog.Logger) (*FileSystem, error) {
	if log == nil {
		log = elog.NewNop()
	}

	d := openDevice(bd)
	if err := d.loadSuperblock(); err != nil {
		return nil, err
	}

	if d.sb.Magic == MagicFormatting {
		return nil, newErr("Open", ELIBBAD, nil)
	}
	if d.sb.Magic != MagicNumber {
		return nil, newErr("Open", EBADF, nil)
	}

	d.sb.MStat = MStatDirty
	d.markSuperblockDirty()
	if err := d.flushSuperblock(); err != nil {
		return nil, err
	}

	log.Debugf("sofs: mounted volume %q (%d blocks, %d inodes)",
		nameString(d.sb.Name), d.sb.NTotal, d.sb.ITotal)

	return &FileSystem{dev: d, log: log, Caller: caller}, nil
}

// Close marks the volume properly unmounted and flushes every dirty cache.
func (fs *FileSystem) Close() error {
	fs.dev.sb.MStat = MStatPRU
	fs.dev.markSuperblockDirty()
	return fs.dev.close()
}

// Superblock returns a copy of the current in-memory superblock, for
// read-only inspection (e.g. by fsck.Check or tests).
func (fs *FileSystem) Superblock() Superblock {
	return fs.dev.sb
}

func nameString(b [PartitionNameSize]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func now() uint32 {
	return uint32(time.Now().Unix())
}

// getInode loads the inode table block containing n and decodes the inode
// record at its slot.
func (fs *FileSystem) getInode(n uint32) (*Inode, error) {
	blockNo, slot := fs.inodeAddr(n)
	if err := fs.dev.loadInodeBlock(blockNo); err != nil {
		return nil, err
	}
	return decodeInode(fs.dev.inoBlock[slot*InodeSize : (slot+1)*InodeSize]), nil
}

// putInode encodes in into the cached inode block at n's slot and marks the
// block dirty. The caller is responsible for eventually flushing (directly
// or via a later cache switch / Close).
func (fs *FileSystem) putInode(n uint32, in *Inode) error {
	blockNo, slot := fs.inodeAddr(n)
	if err := fs.dev.loadInodeBlock(blockNo); err != nil {
		return err
	}
	copy(fs.dev.inoBlock[slot*InodeSize:(slot+1)*InodeSize], encodeInode(in))
	fs.dev.markInodeBlockDirty()
	return nil
}

func (fs *FileSystem) inodeAddr(n uint32) (blockNo int64, slot int) {
	blockNo = int64(fs.dev.sb.ITableStart) + int64(n)/IPB
	slot = int(int64(n) % IPB)
	return
}

// getCluster loads logical cluster c into the cache and returns its header
// and raw bytes (header + payload). Mutations to the returned slice must be
// followed by markClusterDirty.
func (fs *FileSystem) getCluster(c uint32) (*clusterHeader, []byte, error) {
	if err := fs.dev.loadCluster(c); err != nil {
		return nil, nil, err
	}
	return decodeClusterHeader(fs.dev.cluBlock), fs.dev.cluBlock, nil
}

func (fs *FileSystem) markClusterDirty() {
	fs.dev.markClusterDirty()
}

// putClusterHeader rewrites just the header of the cached cluster c.
func (fs *FileSystem) putClusterHeader(c uint32, h *clusterHeader) error {
	if err := fs.dev.loadCluster(c); err != nil {
		return err
	}
	copy(fs.dev.cluBlock[:clusterHeaderSize], encodeClusterHeader(h, nil)[:clusterHeaderSize])
	fs.dev.markClusterDirty()
	return nil
}

// zeroClusterPayload overwrites the payload (not the header) of logical
// cluster c with zero bytes.
func (fs *FileSystem) zeroClusterPayload(c uint32) error {
	if err := fs.dev.loadCluster(c); err != nil {
		return err
	}
	payload := clusterPayload(fs.dev.cluBlock)
	for i := range payload {
		payload[i] = 0
	}
	fs.dev.markClusterDirty()
	return nil
}
