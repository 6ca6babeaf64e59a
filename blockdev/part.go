package blockdev

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/rekby/mbr"
)

const sectorSize = 512

// MBR partition types we care about when auto-selecting a partition.
const (
	PartTypeLinux         = 0x83
	PartTypeGPTProtective = 0xEE
)

// Partition describes one entry of an MBR or GPT partition table,
// normalized to byte offsets.
type Partition struct {
	Index    int    // table slot, 0-based
	Type     byte   // MBR partition type, 0 for GPT entries
	TypeGUID string // GPT type GUID, empty for MBR entries
	Start    int64  // byte offset of the first sector
	Size     int64  // length in bytes
	Label    string // GPT partition label, if any
}

// Linux reports whether the partition looks like a Linux data partition.
func (p Partition) Linux() bool {
	if p.Type != 0 {
		return p.Type == PartTypeLinux
	}
	return p.TypeGUID == "0FC63DAF-8483-4772-8E79-3D69D8477DE4"
}

// Partitions parses the partition table at the start of dev. It handles
// MBR and GPT (a protective MBR is followed into the GPT). An empty
// slice means the device has a recognizable table with no used entries.
func Partitions(dev Device) ([]Partition, error) {
	table, err := mbr.Read(&reader{dev: dev})
	if err != nil {
		return nil, fmt.Errorf("%w: reading partition table: %v", ErrDevice, err)
	}
	if err := table.Check(); err != nil {
		return nil, fmt.Errorf("%w: bad partition table: %v", ErrDevice, err)
	}

	var parts []Partition
	for i, p := range table.GetAllPartitions() {
		if p.IsEmpty() {
			continue
		}
		if byte(p.GetType()) == PartTypeGPTProtective {
			return gptPartitions(dev)
		}
		parts = append(parts, Partition{
			Index: i,
			Type:  byte(p.GetType()),
			Start: int64(p.GetLBAStart()) * sectorSize,
			Size:  int64(p.GetLBALen()) * sectorSize,
		})
	}
	return parts, nil
}

// OpenPartition returns a Section device over the index'th used
// partition of dev.
func OpenPartition(dev Device, index int) (*Section, error) {
	parts, err := Partitions(dev)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		if p.Index == index {
			return NewSection(dev, p.Start, p.Size)
		}
	}
	return nil, fmt.Errorf("%w: no partition at index %d", ErrDevice, index)
}

// gptPartitions parses a GPT header at LBA 1 and its entry array.
func gptPartitions(dev Device) ([]Partition, error) {
	header := make([]byte, sectorSize)
	if err := dev.ReadAt(header, sectorSize); err != nil {
		return nil, err
	}
	if string(header[0:8]) != "EFI PART" {
		return nil, fmt.Errorf("%w: missing GPT signature behind protective MBR", ErrDevice)
	}

	entryLBA := binary.LittleEndian.Uint64(header[72:80])
	numEntries := binary.LittleEndian.Uint32(header[80:84])
	entrySize := binary.LittleEndian.Uint32(header[84:88])
	if entrySize < 128 {
		return nil, fmt.Errorf("%w: GPT entry size %d too small", ErrDevice, entrySize)
	}

	var parts []Partition
	entry := make([]byte, entrySize)
	base := int64(entryLBA) * sectorSize
	for i := uint32(0); i < numEntries; i++ {
		if err := dev.ReadAt(entry, base+int64(i)*int64(entrySize)); err != nil {
			break
		}
		var typeGUID [16]byte
		copy(typeGUID[:], entry[0:16])
		if typeGUID == ([16]byte{}) {
			continue
		}
		startLBA := binary.LittleEndian.Uint64(entry[32:40])
		endLBA := binary.LittleEndian.Uint64(entry[40:48])
		parts = append(parts, Partition{
			Index:    int(i),
			TypeGUID: formatGUID(typeGUID),
			Start:    int64(startLBA) * sectorSize,
			Size:     int64(endLBA-startLBA+1) * sectorSize,
			Label:    decodeUTF16LE(entry[56:128]),
		})
	}
	return parts, nil
}

// GUIDs are stored mixed-endian: the first three groups little-endian,
// the rest big-endian.
func formatGUID(guid [16]byte) string {
	return fmt.Sprintf("%08X-%04X-%04X-%02X%02X-%02X%02X%02X%02X%02X%02X",
		binary.LittleEndian.Uint32(guid[0:4]),
		binary.LittleEndian.Uint16(guid[4:6]),
		binary.LittleEndian.Uint16(guid[6:8]),
		guid[8], guid[9],
		guid[10], guid[11], guid[12], guid[13], guid[14], guid[15])
}

func decodeUTF16LE(data []byte) string {
	u16s := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		v := binary.LittleEndian.Uint16(data[i : i+2])
		if v == 0 {
			break
		}
		u16s = append(u16s, v)
	}
	return string(utf16.Decode(u16s))
}
