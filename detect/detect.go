// Package detect identifies ext volumes and partition tables from the
// first bytes of a disk image.
package detect

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/kelpiefs/extdrv/blockdev"
)

// Type is the detected content of a device.
type Type int

const (
	Unknown Type = iota
	Ext2
	Ext3
	Ext4
	MBR // Master Boot Record partition table
	GPT // GUID Partition Table
)

func (t Type) String() string {
	switch t {
	case Ext2:
		return "ext2"
	case Ext3:
		return "ext3"
	case Ext4:
		return "ext4"
	case MBR:
		return "MBR"
	case GPT:
		return "GPT"
	default:
		return "unknown"
	}
}

// IsExt reports whether the type is any ext variant.
func (t Type) IsExt() bool {
	return t == Ext2 || t == Ext3 || t == Ext4
}

// IsPartitionTable reports whether the type is a partition table format.
func (t Type) IsPartitionTable() bool {
	return t == MBR || t == GPT
}

// Feature bits that separate the ext generations. A journal marks ext3;
// any of the ext4 incompat features marks ext4.
const (
	compatHasJournal = 0x0004

	incompatExtents = 0x0040
	incompat64Bit   = 0x0080
	incompatFlexBG  = 0x0200
)

// Detect reads the first 2 KiB of dev and identifies what is on it.
// The ext superblock magic wins over the boot-sector signature: an ext
// volume may carry leftover boot-sector bytes, but a partition table
// never carries the superblock magic at offset 1080.
func Detect(dev blockdev.Device) (Type, error) {
	header := make([]byte, 2048)
	if dev.Size() < int64(len(header)) {
		return Unknown, fmt.Errorf("device of %d bytes is too small to identify", dev.Size())
	}
	if err := dev.ReadAt(header, 0); err != nil {
		return Unknown, fmt.Errorf("reading device header: %w", err)
	}

	// ext superblock magic at offset 1080 (superblock at 1024 + 0x38).
	if binary.LittleEndian.Uint16(header[0x438:0x43A]) == 0xEF53 {
		return extGeneration(header[1024:2048]), nil
	}

	// GPT header signature at LBA 1.
	if bytes.Equal(header[512:520], []byte("EFI PART")) {
		return GPT, nil
	}

	// Boot sector signature plus at least one plausible partition entry.
	if header[510] == 0x55 && header[511] == 0xAA && hasPartitionEntry(header) {
		return MBR, nil
	}

	return Unknown, nil
}

// extGeneration tells the ext generations apart from the superblock's
// feature bits.
func extGeneration(sb []byte) Type {
	featureCompat := binary.LittleEndian.Uint32(sb[0x5C:0x60])
	featureIncompat := binary.LittleEndian.Uint32(sb[0x60:0x64])

	if featureIncompat&(incompatExtents|incompat64Bit|incompatFlexBG) != 0 {
		return Ext4
	}
	if featureCompat&compatHasJournal != 0 {
		return Ext3
	}
	return Ext2
}

// hasPartitionEntry scans the four MBR slots for one used entry with a
// valid boot flag and a non-zero extent.
func hasPartitionEntry(header []byte) bool {
	for i := 0; i < 4; i++ {
		entry := header[446+i*16 : 446+(i+1)*16]
		if entry[0] != 0x00 && entry[0] != 0x80 {
			continue
		}
		if entry[4] == 0x00 {
			continue
		}
		start := binary.LittleEndian.Uint32(entry[8:12])
		size := binary.LittleEndian.Uint32(entry[12:16])
		if start > 0 && size > 0 {
			return true
		}
	}
	return false
}
