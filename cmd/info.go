package cmd

import (
	"fmt"
	"io"

	"github.com/kelpiefs/extdrv/ext4"
)

// Info prints the mounted volume's superblock summary.
func Info(p *ext4.Partition, out io.Writer) error {
	sb := p.Superblock()

	fmt.Fprintf(out, "     Label: %q\n", sb.VolumeName())
	fmt.Fprintf(out, "      UUID: %s\n", sb.UUID())
	fmt.Fprintf(out, "Block size: %d\n", p.BlockSize())
	fmt.Fprintf(out, "    Blocks: %d\n", sb.BlocksCount)
	fmt.Fprintf(out, "    Inodes: %d (%d bytes each)\n", sb.InodesCount, sb.InodeSize)
	fmt.Fprintf(out, "    Groups: %d\n", sb.GroupCount())
	fmt.Fprintf(out, "    Compat: %s\n", sb.FeatureCompat)
	fmt.Fprintf(out, "  Incompat: %s\n", sb.FeatureIncompat)
	fmt.Fprintf(out, " RO compat: %s\n", sb.FeatureRoCompat)
	return nil
}
