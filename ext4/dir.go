package ext4

import "encoding/binary"

const (
	direntHeaderSize = 8

	// The checksum tail pseudo-entry at the end of a directory block:
	// inode 0, record length 12, name length 0, and the reserved
	// file-type value below. It must be skipped, never matched.
	direntTailSize     = 12
	direntTailFileType = 0xDE
)

// FileType is the type tag stored in a directory entry.
type FileType uint8

const (
	TypeUnknown FileType = iota
	TypeRegular
	TypeDirectory
	TypeCharDevice
	TypeBlockDevice
	TypeFIFO
	TypeSocket
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeCharDevice:
		return "chardev"
	case TypeBlockDevice:
		return "blockdev"
	case TypeFIFO:
		return "fifo"
	case TypeSocket:
		return "socket"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// DirEntry is one live directory entry.
type DirEntry struct {
	Inode uint32
	Type  FileType
	Name  string
}

// iterateDir scans the directory's data blocks in on-disk order,
// invoking fn for every live entry. fn returning false stops the scan.
// Holes inside a directory are corruption: directory blocks are always
// allocated.
func (p *Partition) iterateDir(dir *Inode, fn func(DirEntry) bool) error {
	if !dir.IsDir() {
		return errCorruptf("directory scan of non-directory inode")
	}

	blockSize := uint64(p.blockSize)
	size := dir.Size()
	if size%blockSize != 0 {
		return errCorruptf("directory size %d not a multiple of the block size", size)
	}

	for logical := uint64(0); logical < size/blockSize; logical++ {
		physical, mapped, err := p.mapBlock(dir, uint32(logical))
		if err != nil {
			return err
		}
		if !mapped {
			return errCorruptf("hole at directory block %d", logical)
		}
		block, err := p.readBlock(physical)
		if err != nil {
			return err
		}
		more, err := p.scanDirBlock(block, fn)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// scanDirBlock walks the variable-length records packed into one
// directory block. Every record must fit in the block and the cursor
// must land exactly on the block boundary.
func (p *Partition) scanDirBlock(block []byte, fn func(DirEntry) bool) (bool, error) {
	for offset := 0; offset < len(block); {
		if offset+direntHeaderSize > len(block) {
			return false, errCorruptf("directory record header crosses block boundary at %d", offset)
		}

		inode := binary.LittleEndian.Uint32(block[offset : offset+4])
		recLen := int(binary.LittleEndian.Uint16(block[offset+4 : offset+6]))
		nameLen := int(block[offset+6])
		fileType := FileType(block[offset+7])

		if recLen < direntHeaderSize || offset+recLen > len(block) {
			return false, errCorruptf("directory record length %d at offset %d", recLen, offset)
		}
		if direntHeaderSize+nameLen > recLen {
			return false, errCorruptf("directory name of %d bytes in a %d-byte record", nameLen, recLen)
		}

		tail := inode == 0 && recLen == direntTailSize &&
			nameLen == 0 && fileType == direntTailFileType
		if inode != 0 && nameLen > 0 && !tail {
			entry := DirEntry{
				Inode: inode,
				Type:  fileType,
				Name:  string(block[offset+direntHeaderSize : offset+direntHeaderSize+nameLen]),
			}
			if !fn(entry) {
				return false, nil
			}
		}

		offset += recLen
	}
	return true, nil
}

// findEntry looks name up in the directory by linear scan, comparing
// with the partition's collator. The first match in scan order wins.
func (p *Partition) findEntry(dir *Inode, name string) (DirEntry, error) {
	var (
		match DirEntry
		found bool
	)
	err := p.iterateDir(dir, func(e DirEntry) bool {
		if p.collator.Equal(e.Name, name) {
			match = e
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return DirEntry{}, err
	}
	if !found {
		return DirEntry{}, errNotFoundf(name)
	}
	return match, nil
}
