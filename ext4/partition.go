// Package ext4 implements read-only access to ext2/3/4 volumes that use
// extent-mapped files. It is written for a firmware-like environment:
// every operation is synchronous, the volume is never written, and all
// on-disk metadata is validated before use so a corrupt or hostile image
// cannot cause out-of-bounds access or unbounded work.
package ext4

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/kelpiefs/extdrv/blockdev"
	"github.com/kelpiefs/extdrv/collate"
)

// Partition is a mounted volume. It owns the validated superblock, the
// derived geometry, and the root directory handle, which lives as long
// as the partition and is never released by Close.
type Partition struct {
	dev       blockdev.Device
	sb        *Superblock
	blockSize uint32
	collator  collate.Collator
	log       logrus.FieldLogger
	root      *File
}

// MountOption configures a Partition at mount time.
type MountOption func(*Partition)

// WithCollator selects the name collation used for path resolution.
// The default matches names byte for byte.
func WithCollator(c collate.Collator) MountOption {
	return func(p *Partition) { p.collator = c }
}

// WithLogger attaches a logger for mount and open diagnostics. The
// default discards everything.
func WithLogger(log logrus.FieldLogger) MountOption {
	return func(p *Partition) { p.log = log }
}

// Mount validates the volume on dev and returns a live Partition.
// The volume is rejected with ErrCorrupt on a bad superblock and with
// ErrUnsupported when it requires features this driver cannot interpret.
func Mount(dev blockdev.Device, opts ...MountOption) (*Partition, error) {
	p := &Partition{
		dev:      dev,
		collator: collate.Binary(),
		log:      discardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	raw := make([]byte, superblockSize)
	if err := dev.ReadAt(raw, SuperblockOffset); err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	sb, err := parseSuperblock(raw)
	if err != nil {
		return nil, err
	}
	p.sb = sb
	p.blockSize = sb.BlockSize()

	if unknown := sb.FeatureRoCompat &^ (RoCompatSparseSuper | RoCompatLargeFile |
		RoCompatHugeFile | RoCompatGDTCsum | RoCompatDirNlink |
		RoCompatExtraIsize | RoCompatMetadataCsum); unknown != 0 {
		// Unknown ro_compat bits would only block writing.
		p.log.WithField("features", RoCompatFlags(unknown)).
			Warn("unrecognized ro_compat features; mounting read-only regardless")
	}

	root, err := p.openInode(RootInode, ModeRead, "\\")
	if err != nil {
		return nil, fmt.Errorf("loading root directory: %w", err)
	}
	if !root.inode.IsDir() {
		return nil, errCorruptf("root inode is not a directory (mode %#o)", root.inode.Mode)
	}
	p.root = root

	p.log.WithFields(logrus.Fields{
		"block_size": p.blockSize,
		"blocks":     sb.BlocksCount,
		"inodes":     sb.InodesCount,
		"groups":     sb.GroupCount(),
		"incompat":   sb.FeatureIncompat,
		"collation":  p.collator.Name(),
	}).Debug("mounted volume")

	return p, nil
}

// Root returns the partition's root directory handle. Closing it is a
// no-op; it belongs to the Partition.
func (p *Partition) Root() *File { return p.root }

// Superblock returns the validated superblock.
func (p *Partition) Superblock() *Superblock { return p.sb }

// BlockSize returns the volume block size in bytes.
func (p *Partition) BlockSize() uint32 { return p.blockSize }

// readBlock reads one whole filesystem block.
func (p *Partition) readBlock(block uint64) ([]byte, error) {
	buf := make([]byte, p.blockSize)
	if err := p.dev.ReadAt(buf, int64(block)*int64(p.blockSize)); err != nil {
		return nil, err
	}
	return buf, nil
}

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
