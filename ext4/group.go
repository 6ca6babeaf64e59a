package ext4

import "encoding/binary"

// groupDescriptor is the slice of the on-disk group descriptor the
// read path needs: where the group's inode table starts.
type groupDescriptor struct {
	inodeTable uint64
}

// groupDescriptor reads the descriptor for one block group. The
// descriptor table starts in the block after the superblock's block.
func (p *Partition) groupDescriptor(group uint32) (groupDescriptor, error) {
	if group >= p.sb.GroupCount() {
		return groupDescriptor{}, errCorruptf("block group %d of %d", group, p.sb.GroupCount())
	}

	descSize := int64(p.sb.DescSize)
	tableStart := int64(p.sb.FirstDataBlock+1) * int64(p.blockSize)
	raw := make([]byte, descSize)
	if err := p.dev.ReadAt(raw, tableStart+int64(group)*descSize); err != nil {
		return groupDescriptor{}, err
	}

	desc := groupDescriptor{
		inodeTable: uint64(binary.LittleEndian.Uint32(raw[0x08:0x0C])),
	}
	if p.sb.FeatureIncompat&Incompat64Bit != 0 && p.sb.DescSize >= 64 {
		desc.inodeTable |= uint64(binary.LittleEndian.Uint32(raw[0x28:0x2C])) << 32
	}
	if desc.inodeTable == 0 || desc.inodeTable >= p.sb.BlocksCount {
		return groupDescriptor{}, errCorruptf("group %d inode table at block %d", group, desc.inodeTable)
	}
	return desc, nil
}

// loadInode reads one inode record by its 1-based number and returns an
// owned in-memory Inode.
func (p *Partition) loadInode(number uint32) (*Inode, error) {
	if number == 0 || number > p.sb.InodesCount {
		return nil, errCorruptf("inode number %d of %d", number, p.sb.InodesCount)
	}

	group := (number - 1) / p.sb.InodesPerGroup
	index := (number - 1) % p.sb.InodesPerGroup

	desc, err := p.groupDescriptor(group)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, p.sb.InodeSize)
	offset := int64(desc.inodeTable)*int64(p.blockSize) + int64(index)*int64(p.sb.InodeSize)
	if err := p.dev.ReadAt(raw, offset); err != nil {
		return nil, err
	}
	return parseInode(raw)
}
