package ext4

import "encoding/binary"

const (
	extentTreeMagic  = 0xF30A
	extentHeaderSize = 12
	extentEntrySize  = 12

	// A logical block number is 32 bits and each tree level multiplies
	// fan-out by at least (blockSize-12)/12, so no valid tree is deeper
	// than 5 levels.
	extentMaxDepth = 5

	// Extent lengths above this mark the run uninitialized; the real
	// length is the value with the bit cleared. For reading, an
	// uninitialized extent maps like any other.
	extentUninitBit = 0x8000
)

type extentHeader struct {
	entries uint16
	depth   uint16
}

// parseExtentHeader validates the node header of an extent-tree node
// held in data (an inode's 60-byte map area or a full tree block).
func parseExtentHeader(data []byte) (extentHeader, error) {
	if len(data) < extentHeaderSize {
		return extentHeader{}, errCorruptf("extent node of %d bytes", len(data))
	}
	magic := binary.LittleEndian.Uint16(data[0:2])
	if magic != extentTreeMagic {
		return extentHeader{}, errCorruptf("extent header magic %#04x, want %#04x", magic, extentTreeMagic)
	}
	hdr := extentHeader{
		entries: binary.LittleEndian.Uint16(data[2:4]),
		depth:   binary.LittleEndian.Uint16(data[6:8]),
	}
	if extentHeaderSize+int(hdr.entries)*extentEntrySize > len(data) {
		return extentHeader{}, errCorruptf("extent node with %d entries in %d bytes", hdr.entries, len(data))
	}
	return hdr, nil
}

func extentEntry(data []byte, i int) []byte {
	off := extentHeaderSize + i*extentEntrySize
	return data[off : off+extentEntrySize]
}

// mapBlock resolves one logical block of an extent-mapped inode to its
// physical block. The second return value is false when the block is a
// hole (sparse, reads as zero).
//
// Descent is bounded by the root header's depth carried as an explicit
// counter: a child node must report exactly the decremented depth, so a
// corrupt block that points back into the tree fails instead of looping,
// and at most depth+1 tree nodes are ever read per lookup.
func (p *Partition) mapBlock(ino *Inode, logical uint32) (uint64, bool, error) {
	if !ino.usesExtents() {
		return 0, false, errUnsupportedf("inode with legacy block map")
	}

	node := ino.block[:]
	hdr, err := parseExtentHeader(node)
	if err != nil {
		return 0, false, err
	}
	if hdr.depth > extentMaxDepth {
		return 0, false, errCorruptf("extent tree depth %d exceeds maximum %d", hdr.depth, extentMaxDepth)
	}

	for want := hdr.depth; ; want-- {
		if hdr.depth != want {
			return 0, false, errCorruptf("extent node depth %d, want %d", hdr.depth, want)
		}

		if hdr.depth == 0 {
			return mapLeaf(node, hdr, logical)
		}

		child, ok := findIndex(node, hdr, logical)
		if !ok {
			// Logical block below the first index entry: unmapped.
			return 0, false, nil
		}
		if child >= p.sb.BlocksCount {
			return 0, false, errCorruptf("extent index points at block %d of %d", child, p.sb.BlocksCount)
		}
		if node, err = p.readBlock(child); err != nil {
			return 0, false, err
		}
		if hdr, err = parseExtentHeader(node); err != nil {
			return 0, false, err
		}
	}
}

// mapLeaf scans a leaf node for the extent covering logical.
func mapLeaf(node []byte, hdr extentHeader, logical uint32) (uint64, bool, error) {
	for i := 0; i < int(hdr.entries); i++ {
		e := extentEntry(node, i)
		first := binary.LittleEndian.Uint32(e[0:4])
		length := binary.LittleEndian.Uint16(e[4:6])
		if length > extentUninitBit {
			length -= extentUninitBit
		}
		if length == 0 {
			return 0, false, errCorruptf("zero-length extent at logical block %d", first)
		}
		if logical < first {
			// Entries are sorted ascending; we passed the spot.
			break
		}
		if uint64(logical) < uint64(first)+uint64(length) {
			start := uint64(binary.LittleEndian.Uint32(e[8:12])) |
				uint64(binary.LittleEndian.Uint16(e[6:8]))<<32
			return start + uint64(logical-first), true, nil
		}
	}
	return 0, false, nil
}

// findIndex picks the child of an index node for logical: the entry with
// the greatest starting block that is still <= logical.
func findIndex(node []byte, hdr extentHeader, logical uint32) (uint64, bool) {
	var (
		child uint64
		found bool
	)
	for i := 0; i < int(hdr.entries); i++ {
		e := extentEntry(node, i)
		first := binary.LittleEndian.Uint32(e[0:4])
		if first > logical {
			break
		}
		child = uint64(binary.LittleEndian.Uint32(e[4:8])) |
			uint64(binary.LittleEndian.Uint16(e[8:10]))<<32
		found = true
	}
	return child, found
}
