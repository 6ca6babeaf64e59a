package ext4

import (
	"encoding/binary"
	"time"
)

// File type bits of the inode mode field.
const (
	modeTypeMask = 0xF000
	modeFIFO     = 0x1000
	modeCharDev  = 0x2000
	modeDir      = 0x4000
	modeBlockDev = 0x6000
	modeRegular  = 0x8000
	modeSymlink  = 0xA000
	modeSocket   = 0xC000

	// Owner permission bits checked on open.
	permOwnerRead  = 0o400
	permOwnerWrite = 0o200
)

// Inode flags.
const (
	inodeFlagExtents = 0x00080000
)

// RootInode is the well-known inode number of the root directory.
const RootInode = 2

// Inode is one filesystem object's metadata, decoded from its on-disk
// record. An Inode is owned exclusively by the File that loaded it.
type Inode struct {
	Mode       uint16
	UID        uint16
	GID        uint16
	LinksCount uint16
	Flags      uint32

	size     uint64
	blocksLo uint32 // on-disk space in 512-byte units

	atime  uint32
	ctime  uint32
	mtime  uint32
	crtime uint32

	// Block map root: an extent tree header plus entries for extent
	// inodes, legacy block pointers otherwise.
	block [60]byte
}

// parseInode decodes an inode record of the size advertised by the
// superblock. Records can be 128 bytes (rev 0) or larger; the creation
// time only exists in the extended area.
func parseInode(data []byte) (*Inode, error) {
	if len(data) < 128 {
		return nil, errCorruptf("short inode record (%d bytes)", len(data))
	}
	ino := &Inode{
		Mode:       binary.LittleEndian.Uint16(data[0x00:0x02]),
		UID:        binary.LittleEndian.Uint16(data[0x02:0x04]),
		GID:        binary.LittleEndian.Uint16(data[0x18:0x1A]),
		LinksCount: binary.LittleEndian.Uint16(data[0x1A:0x1C]),
		Flags:      binary.LittleEndian.Uint32(data[0x20:0x24]),
		size:       uint64(binary.LittleEndian.Uint32(data[0x04:0x08])),
		blocksLo:   binary.LittleEndian.Uint32(data[0x1C:0x20]),
		atime:      binary.LittleEndian.Uint32(data[0x08:0x0C]),
		ctime:      binary.LittleEndian.Uint32(data[0x0C:0x10]),
		mtime:      binary.LittleEndian.Uint32(data[0x10:0x14]),
	}
	copy(ino.block[:], data[0x28:0x64])

	// The high size word is only meaningful for regular files and
	// directories; for other types the field historically held dir_acl.
	if ino.IsRegular() || ino.IsDir() {
		ino.size |= uint64(binary.LittleEndian.Uint32(data[0x6C:0x70])) << 32
	}

	if len(data) >= 0x94 {
		ino.crtime = binary.LittleEndian.Uint32(data[0x90:0x94])
	}
	return ino, nil
}

// Size returns the object's logical size in bytes.
func (ino *Inode) Size() uint64 { return ino.size }

// PhysicalSize returns the on-disk space consumed by the object.
func (ino *Inode) PhysicalSize() uint64 { return uint64(ino.blocksLo) * 512 }

// IsDir reports whether the inode is a directory.
func (ino *Inode) IsDir() bool { return ino.Mode&modeTypeMask == modeDir }

// IsRegular reports whether the inode is a regular file.
func (ino *Inode) IsRegular() bool { return ino.Mode&modeTypeMask == modeRegular }

// isOpenable reports whether the driver can hand out a handle for this
// object. Symlinks and special files are outside this driver's scope.
func (ino *Inode) isOpenable() bool { return ino.IsDir() || ino.IsRegular() }

// usesExtents reports whether the inode's block map is an extent tree.
// Legacy direct/indirect block pointers are not supported.
func (ino *Inode) usesExtents() bool { return ino.Flags&inodeFlagExtents != 0 }

// AccessTime returns the last access timestamp.
func (ino *Inode) AccessTime() time.Time { return time.Unix(int64(ino.atime), 0).UTC() }

// ModifyTime returns the last data modification timestamp.
func (ino *Inode) ModifyTime() time.Time { return time.Unix(int64(ino.mtime), 0).UTC() }

// ChangeTime returns the last inode change timestamp.
func (ino *Inode) ChangeTime() time.Time { return time.Unix(int64(ino.ctime), 0).UTC() }

// CreateTime returns the creation timestamp. Zero on volumes whose
// inode records predate the extended inode area.
func (ino *Inode) CreateTime() time.Time { return time.Unix(int64(ino.crtime), 0).UTC() }

// grants reports whether the inode's owner permission bits allow every
// capability requested by mode.
func (ino *Inode) grants(mode OpenMode) bool {
	var needed uint16
	if mode&ModeRead != 0 {
		needed |= permOwnerRead
	}
	if mode&ModeWrite != 0 {
		needed |= permOwnerWrite
	}
	return ino.Mode&needed == needed
}
