//go:build ignore

// Generates real disk images for manual testing of extcat:
//
//	go run testdata/mkdisk.go
//
// Produces ext4.img (a bare filesystem) and mbr-disk.img (an MBR table
// with one ext4 partition). Requires mkfs.ext4; the images are
// populated with mkfs -d so no mounting is needed.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const sectorSize = 512

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	tree, err := sampleTree()
	if err != nil {
		return err
	}
	defer os.RemoveAll(tree)

	if err := mkext4("testdata/ext4.img", 16*1024*1024, tree); err != nil {
		return fmt.Errorf("ext4.img: %w", err)
	}
	if err := mkMBRDisk("testdata/mbr-disk.img", tree); err != nil {
		return fmt.Errorf("mbr-disk.img: %w", err)
	}
	return nil
}

// sampleTree builds the directory tree baked into the images.
func sampleTree() (string, error) {
	dir, err := os.MkdirTemp("", "mkdisk")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(dir, "etc"), 0o755); err != nil {
		return "", err
	}
	files := map[string]string{
		"hello.txt":  "hello, world\n",
		"etc/passwd": "root:x:0:0:root:/root:/bin/sh\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func mkext4(path string, size int64, tree string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	f.Close()

	out, err := exec.Command("mkfs.ext4", "-q", "-L", "scratch", "-d", tree, path).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mkfs.ext4: %v: %s", err, out)
	}
	return nil
}

// mkMBRDisk wraps an ext4 filesystem in a single-partition MBR image.
func mkMBRDisk(path, tree string) error {
	const (
		partStart = 2048 // sectors
		partLen   = 32768
	)

	inner := path + ".part"
	if err := mkext4(inner, partLen*sectorSize, tree); err != nil {
		return err
	}
	defer os.Remove(inner)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Truncate((partStart + partLen) * sectorSize); err != nil {
		return err
	}

	mbr := make([]byte, sectorSize)
	entry := mbr[446:]
	entry[0] = 0x80
	entry[4] = 0x83 // Linux
	binary.LittleEndian.PutUint32(entry[8:], partStart)
	binary.LittleEndian.PutUint32(entry[12:], partLen)
	mbr[510] = 0x55
	mbr[511] = 0xAA
	if _, err := f.WriteAt(mbr, 0); err != nil {
		return err
	}

	data, err := os.ReadFile(inner)
	if err != nil {
		return err
	}
	_, err = f.WriteAt(data, partStart*sectorSize)
	return err
}
