package ext4

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// SuperblockOffset is the fixed byte offset of the superblock from
	// the start of the volume, regardless of block size.
	SuperblockOffset = 1024

	superblockSize = 1024
	extMagic       = 0xEF53

	// Block size is 1024 << s_log_block_size; cap the exponent so a
	// corrupt superblock cannot make us allocate absurd block buffers.
	maxLogBlockSize = 6 // 64 KiB
)

// CompatFlags is the s_feature_compat bitset. Unknown compat bits never
// affect a reader.
type CompatFlags uint32

// IncompatFlags is the s_feature_incompat bitset. Any bit here that the
// driver does not understand makes the volume unreadable.
type IncompatFlags uint32

// RoCompatFlags is the s_feature_ro_compat bitset. Unknown bits force
// read-only mounting, which is the only mode this driver has.
type RoCompatFlags uint32

const (
	CompatHasJournal CompatFlags = 0x0004
	CompatExtAttr    CompatFlags = 0x0008
	CompatDirIndex   CompatFlags = 0x0020
)

const (
	IncompatFiletype IncompatFlags = 0x0002
	IncompatRecover  IncompatFlags = 0x0004
	IncompatExtents  IncompatFlags = 0x0040
	Incompat64Bit    IncompatFlags = 0x0080
	IncompatFlexBG   IncompatFlags = 0x0200
	IncompatInline   IncompatFlags = 0x8000
	IncompatEncrypt  IncompatFlags = 0x10000
)

const (
	RoCompatSparseSuper  RoCompatFlags = 0x0001
	RoCompatLargeFile    RoCompatFlags = 0x0002
	RoCompatHugeFile     RoCompatFlags = 0x0008
	RoCompatGDTCsum      RoCompatFlags = 0x0010
	RoCompatDirNlink     RoCompatFlags = 0x0020
	RoCompatExtraIsize   RoCompatFlags = 0x0040
	RoCompatMetadataCsum RoCompatFlags = 0x0400
)

// incompatSupported is the set of required-to-understand features this
// driver can interpret safely. Extents and the directory file-type byte
// are what the mapper and directory scanner are written against; 64-bit
// widens block numbers; flex_bg only changes where the allocator put
// metadata, which a reader follows through the group descriptors anyway.
const incompatSupported = IncompatFiletype | IncompatExtents | Incompat64Bit | IncompatFlexBG

// Superblock holds the volume-wide metadata read once at mount time.
// It is immutable for the lifetime of the Partition.
type Superblock struct {
	InodesCount    uint32
	BlocksCount    uint64
	FirstDataBlock uint32
	LogBlockSize   uint32
	BlocksPerGroup uint32
	InodesPerGroup uint32
	Magic          uint16
	State          uint16
	RevLevel       uint32
	FirstInode     uint32
	InodeSize      uint16
	FeatureCompat  CompatFlags
	FeatureIncompat IncompatFlags
	FeatureRoCompat RoCompatFlags
	DescSize       uint16

	uuid       [16]byte
	volumeName [16]byte
}

// parseSuperblock decodes and validates the 1024-byte superblock record.
func parseSuperblock(data []byte) (*Superblock, error) {
	if len(data) < superblockSize {
		return nil, fmt.Errorf("%w: short superblock read (%d bytes)", ErrCorrupt, len(data))
	}

	sb := &Superblock{
		InodesCount:     binary.LittleEndian.Uint32(data[0x00:0x04]),
		BlocksCount:     uint64(binary.LittleEndian.Uint32(data[0x04:0x08])),
		FirstDataBlock:  binary.LittleEndian.Uint32(data[0x14:0x18]),
		LogBlockSize:    binary.LittleEndian.Uint32(data[0x18:0x1C]),
		BlocksPerGroup:  binary.LittleEndian.Uint32(data[0x20:0x24]),
		InodesPerGroup:  binary.LittleEndian.Uint32(data[0x28:0x2C]),
		Magic:           binary.LittleEndian.Uint16(data[0x38:0x3A]),
		State:           binary.LittleEndian.Uint16(data[0x3A:0x3C]),
		RevLevel:        binary.LittleEndian.Uint32(data[0x4C:0x50]),
		FirstInode:      binary.LittleEndian.Uint32(data[0x54:0x58]),
		InodeSize:       binary.LittleEndian.Uint16(data[0x58:0x5A]),
		FeatureCompat:   CompatFlags(binary.LittleEndian.Uint32(data[0x5C:0x60])),
		FeatureIncompat: IncompatFlags(binary.LittleEndian.Uint32(data[0x60:0x64])),
		FeatureRoCompat: RoCompatFlags(binary.LittleEndian.Uint32(data[0x64:0x68])),
	}
	copy(sb.uuid[:], data[0x68:0x78])
	copy(sb.volumeName[:], data[0x78:0x88])

	if sb.Magic != extMagic {
		return nil, fmt.Errorf("%w: superblock magic %#04x, want %#04x", ErrCorrupt, sb.Magic, extMagic)
	}
	if sb.LogBlockSize > maxLogBlockSize {
		return nil, fmt.Errorf("%w: log block size %d exceeds maximum %d",
			ErrCorrupt, sb.LogBlockSize, maxLogBlockSize)
	}
	if sb.BlocksPerGroup == 0 || sb.InodesPerGroup == 0 {
		return nil, fmt.Errorf("%w: zero blocks-per-group or inodes-per-group", ErrCorrupt)
	}

	// Revision 0 volumes have a fixed inode record size and no
	// s_inode_size field worth trusting.
	if sb.RevLevel == 0 {
		sb.InodeSize = 128
	}
	if sb.InodeSize < 128 || uint32(sb.InodeSize) > sb.BlockSize() {
		return nil, fmt.Errorf("%w: inode record size %d", ErrCorrupt, sb.InodeSize)
	}

	if sb.FeatureIncompat&Incompat64Bit != 0 {
		sb.DescSize = binary.LittleEndian.Uint16(data[0xFE:0x100])
		if sb.DescSize == 0 {
			sb.DescSize = 64
		}
		high := binary.LittleEndian.Uint32(data[0x150:0x154])
		sb.BlocksCount |= uint64(high) << 32
	} else {
		sb.DescSize = 32
	}
	if sb.DescSize < 32 {
		return nil, fmt.Errorf("%w: group descriptor size %d", ErrCorrupt, sb.DescSize)
	}

	if unknown := sb.FeatureIncompat &^ incompatSupported; unknown != 0 {
		return nil, fmt.Errorf("%w: required features %s not implemented", ErrUnsupported, IncompatFlags(unknown))
	}
	if sb.FeatureIncompat&IncompatExtents == 0 {
		return nil, fmt.Errorf("%w: volume without the extents feature", ErrUnsupported)
	}

	return sb, nil
}

// BlockSize returns the volume block size in bytes.
func (sb *Superblock) BlockSize() uint32 {
	return 1024 << sb.LogBlockSize
}

// GroupCount returns the number of block groups on the volume.
func (sb *Superblock) GroupCount() uint32 {
	return uint32((sb.BlocksCount - uint64(sb.FirstDataBlock) + uint64(sb.BlocksPerGroup) - 1) /
		uint64(sb.BlocksPerGroup))
}

// UUID returns the volume UUID.
func (sb *Superblock) UUID() uuid.UUID {
	id, err := uuid.FromBytes(sb.uuid[:])
	if err != nil {
		return uuid.UUID{}
	}
	return id
}

// VolumeName returns the volume label, if set.
func (sb *Superblock) VolumeName() string {
	name := sb.volumeName[:]
	if i := strings.IndexByte(string(name), 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

func (f CompatFlags) String() string {
	return flagString(uint32(f), []flagName{
		{uint32(CompatHasJournal), "has_journal"},
		{uint32(CompatExtAttr), "ext_attr"},
		{uint32(CompatDirIndex), "dir_index"},
	})
}

func (f IncompatFlags) String() string {
	return flagString(uint32(f), []flagName{
		{uint32(IncompatFiletype), "filetype"},
		{uint32(IncompatRecover), "recover"},
		{uint32(IncompatExtents), "extents"},
		{uint32(Incompat64Bit), "64bit"},
		{uint32(IncompatFlexBG), "flex_bg"},
		{uint32(IncompatInline), "inline_data"},
		{uint32(IncompatEncrypt), "encrypt"},
	})
}

func (f RoCompatFlags) String() string {
	return flagString(uint32(f), []flagName{
		{uint32(RoCompatSparseSuper), "sparse_super"},
		{uint32(RoCompatLargeFile), "large_file"},
		{uint32(RoCompatHugeFile), "huge_file"},
		{uint32(RoCompatGDTCsum), "uninit_bg"},
		{uint32(RoCompatDirNlink), "dir_nlink"},
		{uint32(RoCompatExtraIsize), "extra_isize"},
		{uint32(RoCompatMetadataCsum), "metadata_csum"},
	})
}

type flagName struct {
	bit  uint32
	name string
}

func flagString(v uint32, names []flagName) string {
	var parts []string
	for _, n := range names {
		if v&n.bit != 0 {
			parts = append(parts, n.name)
			v &^= n.bit
		}
	}
	if v != 0 {
		parts = append(parts, fmt.Sprintf("%#x", v))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
