package sofs

import (
	"io"
)

// BlockDevice is the minimal random-access surface the core needs from a
// backing store. *os.File satisfies it directly.
type BlockDevice interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

// device is the buffer cache spec.md treats as an external collaborator: it
// holds exactly one cached superblock, one cached inode block, and one
// cached data cluster, and is the sole path through which the core touches
// the backing store.
type device struct {
	bd BlockDevice

	sb      Superblock
	sbDirty bool

	inoBlockNo    int64
	inoBlockValid bool
	inoBlockDirty bool
	inoBlock      []byte

	cluNo      uint32
	cluValid   bool
	cluDirty   bool
	cluBlock   []byte
}

func openDevice(bd BlockDevice) *device {
	return &device{bd: bd}
}

func (d *device) readBlock(blockNo int64, buf []byte) error {
	_, err := d.bd.ReadAt(buf, blockNo*BlockSize)
	if err != nil {
		return newErr("readBlock", EIO, err)
	}
	return nil
}

func (d *device) writeBlock(blockNo int64, buf []byte) error {
	_, err := d.bd.WriteAt(buf, blockNo*BlockSize)
	if err != nil {
		return newErr("writeBlock", EIO, err)
	}
	return nil
}

// loadSuperblock reads block 0 into the cache, discarding any prior dirty
// state. Used only by Open.
func (d *device) loadSuperblock() error {
	buf := make([]byte, BlockSize)
	if err := d.readBlock(0, buf); err != nil {
		return err
	}
	d.sb = *decodeSuperblock(buf)
	d.sbDirty = false
	return nil
}

func (d *device) markSuperblockDirty() {
	d.sbDirty = true
}

// flushSuperblock commits the in-memory superblock to block 0. Per the
// ordering rule in spec.md's concurrency model, callers must flush any
// dirty inode/cluster content before calling this so a crash never leaves
// the superblock more generous than reality.
func (d *device) flushSuperblock() error {
	if !d.sbDirty {
		return nil
	}
	if err := d.writeBlock(0, d.sb.encode()); err != nil {
		return err
	}
	d.sbDirty = false
	return nil
}

// loadInodeBlock ensures the block containing inode n is the cached inode
// block, flushing the previously cached one first if it is dirty and
// different.
func (d *device) loadInodeBlock(blockNo int64) error {
	if d.inoBlockValid && d.inoBlockNo == blockNo {
		return nil
	}
	if err := d.flushInodeBlock(); err != nil {
		return err
	}
	buf := make([]byte, BlockSize)
	if err := d.readBlock(blockNo, buf); err != nil {
		return err
	}
	d.inoBlock = buf
	d.inoBlockNo = blockNo
	d.inoBlockValid = true
	d.inoBlockDirty = false
	return nil
}

func (d *device) flushInodeBlock() error {
	if !d.inoBlockValid || !d.inoBlockDirty {
		return nil
	}
	if err := d.writeBlock(d.inoBlockNo, d.inoBlock); err != nil {
		return err
	}
	d.inoBlockDirty = false
	return nil
}

func (d *device) markInodeBlockDirty() {
	d.inoBlockDirty = true
}

func (d *device) clusterBlockNo(c uint32) int64 {
	return int64(d.sb.DZoneStart) + int64(c)*BlocksPerCluster
}

// loadCluster ensures logical cluster c is the cached data cluster,
// flushing the previously cached one first if it is dirty and different.
func (d *device) loadCluster(c uint32) error {
	if d.cluValid && d.cluNo == c {
		return nil
	}
	if err := d.flushCluster(); err != nil {
		return err
	}
	buf := make([]byte, ClusterSize)
	if err := d.readBlock(d.clusterBlockNo(c), buf); err != nil {
		return err
	}
	d.cluBlock = buf
	d.cluNo = c
	d.cluValid = true
	d.cluDirty = false
	return nil
}

func (d *device) flushCluster() error {
	if !d.cluValid || !d.cluDirty {
		return nil
	}
	if err := d.writeBlock(d.clusterBlockNo(d.cluNo), d.cluBlock); err != nil {
		return err
	}
	d.cluDirty = false
	return nil
}

func (d *device) markClusterDirty() {
	d.cluDirty = true
}

// flushAll writes back every dirty cache, per-block content before the
// superblock.
func (d *device) flushAll() error {
	if err := d.flushInodeBlock(); err != nil {
		return err
	}
	if err := d.flushCluster(); err != nil {
		return err
	}
	return d.flushSuperblock()
}

func (d *device) close() error {
	if err := d.flushAll(); err != nil {
		_ = d.bd.Close()
		return err
	}
	return d.bd.Close()
}
