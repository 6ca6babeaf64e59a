// extcat - read files out of ext2/3/4 disk images and partitions
//
// Usage:
//
//	extcat [-p n] [-icase] [-v] <image> ls [-l] [path]
//	extcat [-p n] [-icase] [-v] <image> cat <path>
//	extcat [-p n] [-icase] [-v] <image> stat <path>
//	extcat [-p n] [-icase] [-v] <image> info
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/kelpiefs/extdrv/blockdev"
	"github.com/kelpiefs/extdrv/cmd"
	"github.com/kelpiefs/extdrv/collate"
	"github.com/kelpiefs/extdrv/detect"
	"github.com/kelpiefs/extdrv/ext4"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "extcat: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("extcat", flag.ContinueOnError)
	flags.SetOutput(stderr)
	part := flags.Int("p", -1, "partition index (default: first Linux partition)")
	icase := flags.Bool("icase", false, "case-insensitive path lookup")
	verbose := flags.Bool("v", false, "verbose logging")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 2 {
		return fmt.Errorf("usage: extcat [-p n] [-icase] [-v] <image> <command> [options] [path]")
	}

	imagePath := flags.Arg(0)
	command := flags.Arg(1)
	cmdArgs := flags.Args()[2:]

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetLevel(logrus.WarnLevel)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	dev, err := blockdev.OpenFile(imagePath)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer dev.Close()

	volume, fsType, err := findVolume(dev, *part, log)
	if err != nil {
		return err
	}

	opts := []ext4.MountOption{ext4.WithLogger(log)}
	if *icase {
		opts = append(opts, ext4.WithCollator(collate.CaseInsensitive()))
	}
	p, err := ext4.Mount(volume, opts...)
	if err != nil {
		return fmt.Errorf("mounting %s volume: %w", fsType, err)
	}

	switch command {
	case "ls":
		return runLs(p, cmdArgs, stdout)
	case "cat":
		if len(cmdArgs) < 1 {
			return fmt.Errorf("cat requires a path argument")
		}
		return cmd.Cat(p, cmdArgs[0], stdout)
	case "stat":
		if len(cmdArgs) < 1 {
			return fmt.Errorf("stat requires a path argument")
		}
		return cmd.Stat(p, cmdArgs[0], stdout)
	case "info":
		return cmd.Info(p, stdout)
	default:
		return fmt.Errorf("unknown command: %s (use ls, cat, stat, or info)", command)
	}
}

// findVolume locates the ext volume on dev: the whole device when it
// carries a bare filesystem, otherwise the selected (or first Linux)
// partition of its partition table.
func findVolume(dev blockdev.Device, part int, log logrus.FieldLogger) (blockdev.Device, detect.Type, error) {
	fsType, err := detect.Detect(dev)
	if err != nil {
		return nil, fsType, err
	}

	if fsType.IsExt() {
		if part >= 0 {
			return nil, fsType, fmt.Errorf("-p given but %s is a bare filesystem image", fsType)
		}
		return dev, fsType, nil
	}
	if !fsType.IsPartitionTable() {
		return nil, fsType, fmt.Errorf("no ext filesystem or partition table found")
	}

	parts, err := blockdev.Partitions(dev)
	if err != nil {
		return nil, fsType, err
	}
	if part < 0 {
		part = -1
		for _, p := range parts {
			if p.Linux() {
				part = p.Index
				break
			}
		}
		if part < 0 {
			return nil, fsType, fmt.Errorf("%s table has no Linux partition; select one with -p", fsType)
		}
	}
	log.WithFields(logrus.Fields{"table": fsType, "partition": part}).Debug("descending into partition")

	section, err := blockdev.OpenPartition(dev, part)
	if err != nil {
		return nil, fsType, err
	}

	inner, err := detect.Detect(section)
	if err != nil {
		return nil, fsType, err
	}
	if !inner.IsExt() {
		return nil, inner, fmt.Errorf("partition %d does not hold an ext filesystem", part)
	}
	return section, inner, nil
}

func runLs(p *ext4.Partition, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	long := flags.Bool("l", false, "use long listing format")
	if err := flags.Parse(args); err != nil {
		return err
	}
	path := "."
	if flags.NArg() > 0 {
		path = flags.Arg(0)
	}
	return cmd.Ls(p, path, out, cmd.LsOptions{Long: *long})
}
