package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

// Device geometry. SOFS addresses the device as an array of fixed-size
// blocks grouped into clusters. These are compile-time constants rather
// than per-image parameters: only the inode count and total block count
// vary between formatted images (see Format).
const (
	// BlockSize is the minimal I/O unit, in bytes.
	BlockSize = 512

	// BlocksPerCluster is the number of contiguous blocks that make up a
	// single data cluster.
	BlocksPerCluster = 4

	// ClusterSize is the size, in bytes, of a data cluster.
	ClusterSize = BlockSize * BlocksPerCluster

	// clusterHeaderSize is the size, in bytes, of the prev/next/stat header
	// every data cluster carries regardless of its current role.
	clusterHeaderSize = 12

	// ClusterPayloadSize is the number of bytes available to a cluster's
	// role-specific payload (file content, directory entries, or
	// cluster-reference array) once the header is accounted for.
	ClusterPayloadSize = ClusterSize - clusterHeaderSize

	// InodeSize is the on-disk size, in bytes, of a single inode record.
	InodeSize = 64

	// IPB is the number of inodes that fit in one block of the inode table.
	IPB = BlockSize / InodeSize

	// NDirect is the number of direct cluster references carried in every
	// inode.
	NDirect = 8

	// RPC is the number of logical cluster references that fit in one
	// single/double-indirect reference cluster.
	RPC = ClusterPayloadSize / 4

	// DPC is the number of directory entries that fit in one directory
	// content cluster. ClusterPayloadSize is not required to be an exact
	// multiple of DirEntrySize; any remainder is unused padding at the end
	// of each directory cluster, the same way real on-disk filesystems
	// leave slack at block boundaries.
	DPC = ClusterPayloadSize / DirEntrySize

	// MaxFileClusters bounds the clustInd argument accepted by
	// HandleFileCluster/HandleFileClusters: the total addressable content
	// positions of a file via direct, single-indirect and double-indirect
	// references.
	MaxFileClusters = NDirect + RPC + RPC*RPC

	// MaxName is the maximum length, in bytes, of a single path component.
	MaxName = 59

	// DirEntrySize is the on-disk size, in bytes, of one directory entry
	// (MaxName+1 name bytes, NUL-padded, plus a 4-byte inode number).
	DirEntrySize = MaxName + 1 + 4

	// MaxPath is the maximum length, in bytes, of an absolute path accepted
	// by GetDirEntryByPath.
	MaxPath = 1024

	// DZoneCacheSize is the capacity, in entries, of each of the
	// superblock's two bounded free-cluster caches.
	DZoneCacheSize = 48

	// PartitionNameSize is the on-disk size, in bytes, of the volume name
	// field (NUL-terminated, NUL-padded).
	PartitionNameSize = 20

	// VersionNumber is written into every freshly formatted superblock.
	VersionNumber = 1

	// MagicNumber marks a cleanly formatted, committed image.
	MagicNumber = 0x534F4653 // "SOFS" read as a big-endian uint32 (the little-endian bytes on disk read "SFOS")

	// MagicFormatting marks an image for which formatting is still in
	// progress; a reader observing this value knows the previous mkfs run
	// was interrupted.
	MagicFormatting = 0xFFFF

	// DefaultVolumeName is used by mkfs when the caller doesn't supply -n.
	DefaultVolumeName = "SOFS14"
)

// mStat values.
const (
	MStatPRU   uint8 = 0 // properly unmounted / clean
	MStatDirty uint8 = 1 // mounted, or unmounted uncleanly
)

// NullInode and NullCluster are the sentinel "not a reference" markers: the
// all-ones 32-bit word, distinct from a valid index 0.
const (
	NullInode   uint32 = 0xFFFFFFFF
	NullCluster uint32 = 0xFFFFFFFF
)

// RootInode is inode 0, the filesystem root directory. It is created at
// format time and never freed.
const RootInode uint32 = 0

// RootCluster is logical cluster 0, the root directory's content cluster.
// It is created at format time and never freed.
const RootCluster uint32 = 0

// Inode mode bit layout: bits [11:9] classify the inode's type (0 means the
// free-inode flag is set -- the "fourth" mutually exclusive state named in
// the data model), bits [8:0] are rwx permissions for user/group/other.
const (
	modeTypeShift = 9
	ModeTypeMask  = 0x7 << modeTypeShift

	InodeFree     = 0 << modeTypeShift
	InodeDir      = 1 << modeTypeShift
	InodeFile     = 2 << modeTypeShift
	InodeSymlink  = 3 << modeTypeShift
	ModePermsMask = 0x1FF

	InodeRdUsr = 0x100
	InodeWrUsr = 0x080
	InodeExUsr = 0x040
	InodeRdGrp = 0x020
	InodeWrGrp = 0x010
	InodeExGrp = 0x008
	InodeRdOth = 0x004
	InodeWrOth = 0x002
	InodeExOth = 0x001

	permRWX = 0x7

	// DefaultDirPerms is granted to the root directory at format time.
	DefaultDirPerms = InodeRdUsr | InodeWrUsr | InodeExUsr |
		InodeRdGrp | InodeWrGrp | InodeExGrp |
		InodeRdOth | InodeWrOth | InodeExOth
)

// InodeType identifies one of the three inode kinds AllocInode can create.
type InodeType uint16

// The three allocatable inode types. The zero value of InodeType is not a
// legal argument to AllocInode.
const (
	TypeDir     InodeType = InodeDir
	TypeFile    InodeType = InodeFile
	TypeSymlink InodeType = InodeSymlink
)

// Op identifies one of the five HandleFileCluster/HandleFileClusters
// operations.
type Op int

// The five HandleFileCluster/HandleFileClusters operations.
const (
	OpGet Op = iota
	OpAlloc
	OpFree
	OpFreeClean
	OpClean
)

// DirOp identifies whether AddAttDirEntry/RemDetachDirEntry is creating a
// fresh entry or grafting/detaching an existing subtree.
type DirOp int

// AddAttDirEntry operations.
const (
	DirAdd DirOp = iota
	DirAttach
)

// RemDetachDirEntry operations.
const (
	DirRem DirOp = iota
	DirDetach
)

func divide(x, y int64) int64 {
	return (x + y - 1) / y
}
