package cmd

import (
	"fmt"
	"io"
	"io/fs"
)

// Cat copies a file's contents to out.
func Cat(fsys fs.FS, fsPath string, out io.Writer) error {
	fsPath = normalizePath(fsPath)

	info, err := fs.Stat(fsys, fsPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: is a directory", fsPath)
	}

	file, err := fsys.Open(fsPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(out, file)
	return err
}

// Stat prints detailed information about one file or directory.
func Stat(fsys fs.FS, fsPath string, out io.Writer) error {
	fsPath = normalizePath(fsPath)

	info, err := fs.Stat(fsys, fsPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "   File: %s\n", info.Name())
	fmt.Fprintf(out, "   Size: %d\n", info.Size())
	fmt.Fprintf(out, "   Mode: %s\n", info.Mode())
	fmt.Fprintf(out, "ModTime: %s\n", info.ModTime().UTC())
	if in, ok := info.(inoder); ok {
		fmt.Fprintf(out, "  Inode: %d\n", in.Inode())
	}
	return nil
}
