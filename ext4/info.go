package ext4

import (
	"encoding/binary"
	"time"
)

// FileInfo describes an open handle's inode.
type FileInfo struct {
	Name         string
	Size         uint64
	PhysicalSize uint64
	Mode         uint16
	Dir          bool
	AccessTime   time.Time
	ModifyTime   time.Time
	CreateTime   time.Time
}

// infoFixedSize is the encoded size of everything but the name: size,
// physical size, three timestamps, mode, directory flag and name length.
const infoFixedSize = 8 + 8 + 8 + 8 + 8 + 2 + 1 + 2

// Info returns the handle's metadata.
func (f *File) Info() (FileInfo, error) {
	if err := f.live(); err != nil {
		return FileInfo{}, err
	}
	ino := f.inode
	return FileInfo{
		Name:         f.name,
		Size:         ino.Size(),
		PhysicalSize: ino.PhysicalSize(),
		Mode:         ino.Mode,
		Dir:          ino.IsDir(),
		AccessTime:   ino.AccessTime(),
		ModifyTime:   ino.ModifyTime(),
		CreateTime:   ino.CreateTime(),
	}, nil
}

// InfoSize returns the buffer size InfoInto requires for this handle.
func (f *File) InfoSize() int {
	return infoFixedSize + len(f.name)
}

// InfoInto encodes the handle's metadata into buf as a little-endian
// record: size, physical size, access, modify and create times as Unix
// seconds, mode, a directory flag, then the length-prefixed name. A
// short buffer fails with the required size in the error, so a caller
// can retry with InfoSize bytes.
func (f *File) InfoInto(buf []byte) (int, error) {
	if err := f.live(); err != nil {
		return 0, err
	}
	need := f.InfoSize()
	if len(buf) < need {
		return 0, errBufferTooSmallf(need, len(buf))
	}

	ino := f.inode
	le := binary.LittleEndian
	le.PutUint64(buf[0:], ino.Size())
	le.PutUint64(buf[8:], ino.PhysicalSize())
	le.PutUint64(buf[16:], uint64(ino.AccessTime().Unix()))
	le.PutUint64(buf[24:], uint64(ino.ModifyTime().Unix()))
	le.PutUint64(buf[32:], uint64(ino.CreateTime().Unix()))
	le.PutUint16(buf[40:], ino.Mode)
	buf[42] = 0
	if ino.IsDir() {
		buf[42] = 1
	}
	le.PutUint16(buf[43:], uint16(len(f.name)))
	copy(buf[infoFixedSize:], f.name)
	return need, nil
}
