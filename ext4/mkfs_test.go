package ext4

import (
	"encoding/binary"
	"testing"

	"github.com/kelpiefs/extdrv/blockdev"
)

// Test volumes are built by hand: 1 KiB blocks, a single block group,
// and a fixed layout so every test can address blocks directly.
//
//	block 0        boot area, superblock at byte 1024
//	block 2        group descriptor table
//	block 5..      inode table (64 inodes of 256 bytes)
//	block 21..     file and directory data
const (
	testBlockSize  = 1024
	testInodeSize  = 256
	testInodeCount = 64
	testInodeTable = 5
	testFirstData  = 21
)

var testUUID = [16]byte{
	0x7e, 0x8a, 0x10, 0x53, 0x5d, 0x1c, 0x4a, 0xb2,
	0x9a, 0x61, 0x0f, 0x27, 0x33, 0xc1, 0x44, 0x90,
}

type imageBuilder struct {
	t    *testing.T
	data []byte
}

func newImage(t *testing.T, blocks uint64) *imageBuilder {
	t.Helper()
	b := &imageBuilder{t: t, data: make([]byte, blocks*testBlockSize)}
	le := binary.LittleEndian

	sb := b.data[1024:2048]
	le.PutUint32(sb[0x00:], testInodeCount)
	le.PutUint32(sb[0x04:], uint32(blocks))
	le.PutUint32(sb[0x14:], 1) // first data block
	le.PutUint32(sb[0x18:], 0) // log block size: 1 KiB
	le.PutUint32(sb[0x20:], 8192)
	le.PutUint32(sb[0x28:], testInodeCount)
	le.PutUint16(sb[0x38:], extMagic)
	le.PutUint32(sb[0x4C:], 1) // dynamic revision
	le.PutUint32(sb[0x54:], 11)
	le.PutUint16(sb[0x58:], testInodeSize)
	le.PutUint32(sb[0x60:], uint32(IncompatFiletype|IncompatExtents))
	copy(sb[0x68:0x78], testUUID[:])
	copy(sb[0x78:0x88], "scratch")

	// Group descriptor 0: only the inode table location matters here.
	le.PutUint32(b.data[2*testBlockSize+0x08:], testInodeTable)
	return b
}

func (b *imageBuilder) dev() blockdev.Device { return blockdev.NewMem(b.data) }

func (b *imageBuilder) superblock() []byte { return b.data[1024:2048] }

func (b *imageBuilder) block(n uint64) []byte {
	return b.data[n*testBlockSize : (n+1)*testBlockSize]
}

func (b *imageBuilder) inodeRaw(num uint32) []byte {
	off := testInodeTable*testBlockSize + (int(num)-1)*testInodeSize
	return b.data[off : off+testInodeSize]
}

// putInode writes the fields the driver reads. The block map area stays
// zero; callers fill it with putLeafRoot, putIndexRoot or raw bytes.
func (b *imageBuilder) putInode(num uint32, mode uint16, size uint64) []byte {
	raw := b.inodeRaw(num)
	le := binary.LittleEndian
	le.PutUint16(raw[0x00:], mode)
	le.PutUint32(raw[0x04:], uint32(size))
	le.PutUint32(raw[0x08:], 1700000001) // atime
	le.PutUint32(raw[0x0C:], 1700000002) // ctime
	le.PutUint32(raw[0x10:], 1700000003) // mtime
	le.PutUint16(raw[0x1A:], 1)          // links
	le.PutUint32(raw[0x1C:], uint32((size+testBlockSize-1)/testBlockSize)*2)
	le.PutUint32(raw[0x20:], inodeFlagExtents)
	le.PutUint32(raw[0x6C:], uint32(size>>32))
	le.PutUint32(raw[0x90:], 1700000000) // crtime
	return raw
}

type extent struct {
	first  uint32
	length uint16
	start  uint64
}

type index struct {
	first uint32
	child uint64
}

func putExtentHeader(node []byte, entries, depth uint16) {
	le := binary.LittleEndian
	le.PutUint16(node[0:], extentTreeMagic)
	le.PutUint16(node[2:], entries)
	le.PutUint16(node[4:], uint16((len(node)-extentHeaderSize)/extentEntrySize))
	le.PutUint16(node[6:], depth)
}

func putLeafEntries(node []byte, extents []extent) {
	putExtentHeader(node, uint16(len(extents)), 0)
	le := binary.LittleEndian
	for i, e := range extents {
		raw := node[extentHeaderSize+i*extentEntrySize:]
		le.PutUint32(raw[0:], e.first)
		le.PutUint16(raw[4:], e.length)
		le.PutUint16(raw[6:], uint16(e.start>>32))
		le.PutUint32(raw[8:], uint32(e.start))
	}
}

func putIndexEntries(node []byte, depth uint16, indexes []index) {
	putExtentHeader(node, uint16(len(indexes)), depth)
	le := binary.LittleEndian
	for i, x := range indexes {
		raw := node[extentHeaderSize+i*extentEntrySize:]
		le.PutUint32(raw[0:], x.first)
		le.PutUint32(raw[4:], uint32(x.child))
		le.PutUint16(raw[8:], uint16(x.child>>32))
	}
}

// putLeafRoot gives an inode a depth-0 extent tree rooted in the inode.
func (b *imageBuilder) putLeafRoot(num uint32, extents ...extent) {
	putLeafEntries(b.inodeRaw(num)[0x28:0x64], extents)
}

// putIndexRoot gives an inode an index root pointing at tree blocks.
func (b *imageBuilder) putIndexRoot(num uint32, depth uint16, indexes ...index) {
	putIndexEntries(b.inodeRaw(num)[0x28:0x64], depth, indexes)
}

type dirent struct {
	inode uint32
	ftype FileType
	name  string
}

// putDir lays entries out in one directory block: minimal 4-byte
// aligned records, the last one stretched to leave exactly room for a
// checksum tail, which is always written.
func (b *imageBuilder) putDir(block uint64, entries ...dirent) {
	raw := b.block(block)
	le := binary.LittleEndian
	off := 0
	for i, e := range entries {
		recLen := (direntHeaderSize + len(e.name) + 3) &^ 3
		if i == len(entries)-1 {
			recLen = len(raw) - direntTailSize - off
		}
		le.PutUint32(raw[off:], e.inode)
		le.PutUint16(raw[off+4:], uint16(recLen))
		raw[off+6] = byte(len(e.name))
		raw[off+7] = byte(e.ftype)
		copy(raw[off+direntHeaderSize:], e.name)
		off += recLen
	}
	le.PutUint32(raw[off:], 0)
	le.PutUint16(raw[off+4:], direntTailSize)
	raw[off+6] = 0
	raw[off+7] = direntTailFileType
}

// putFile creates a regular inode whose contents live in consecutive
// blocks starting at block.
func (b *imageBuilder) putFile(num uint32, mode uint16, block uint64, content []byte) {
	b.putInode(num, modeRegular|mode, uint64(len(content)))
	blocks := uint16((len(content) + testBlockSize - 1) / testBlockSize)
	if blocks == 0 {
		blocks = 1
	}
	b.putLeafRoot(num, extent{first: 0, length: blocks, start: block})
	copy(b.data[block*testBlockSize:], content)
}

// newTestVolume builds the standard fixture most tests mount:
//
//	\               inode 2
//	\lost+found     inode 11, empty dir
//	\etc            inode 12, dir at block 22
//	\etc\passwd     inode 16, contents at block 23
//	\hello.txt      inode 13, contents at block 24
//	\secret         inode 14, no permission bits at all
//	\liblink        inode 15, symlink
func newTestVolume(t *testing.T) *imageBuilder {
	t.Helper()
	b := newImage(t, 64)

	b.putInode(RootInode, modeDir|0o755, testBlockSize)
	b.putLeafRoot(RootInode, extent{first: 0, length: 1, start: 21})
	b.putDir(21,
		dirent{RootInode, TypeDirectory, "."},
		dirent{RootInode, TypeDirectory, ".."},
		dirent{11, TypeDirectory, "lost+found"},
		dirent{12, TypeDirectory, "etc"},
		dirent{13, TypeRegular, "hello.txt"},
		dirent{14, TypeRegular, "secret"},
		dirent{15, TypeSymlink, "liblink"},
	)

	b.putInode(11, modeDir|0o700, testBlockSize)
	b.putLeafRoot(11, extent{first: 0, length: 1, start: 25})
	b.putDir(25,
		dirent{11, TypeDirectory, "."},
		dirent{RootInode, TypeDirectory, ".."},
	)

	b.putInode(12, modeDir|0o755, testBlockSize)
	b.putLeafRoot(12, extent{first: 0, length: 1, start: 22})
	b.putDir(22,
		dirent{12, TypeDirectory, "."},
		dirent{RootInode, TypeDirectory, ".."},
		dirent{16, TypeRegular, "passwd"},
	)

	b.putFile(16, 0o644, 23, []byte("root:x:0:0:root:/root:/bin/sh\n"))
	b.putFile(13, 0o644, 24, []byte("hello, world\n"))
	b.putFile(14, 0o000, 26, []byte("keep out\n"))
	b.putInode(15, modeSymlink|0o777, 9)

	return b
}

func mountVolume(t *testing.T, b *imageBuilder, opts ...MountOption) *Partition {
	t.Helper()
	p, err := Mount(b.dev(), opts...)
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	return p
}
