// Package cmd implements the extcat commands over the io/fs view of a
// mounted volume.
package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
)

// LsOptions controls ls behavior.
type LsOptions struct {
	Long bool // long format (-l)
}

// inoder is implemented by directory entries and file infos that know
// their inode number.
type inoder interface {
	Inode() uint64
}

// Ls lists a directory's contents, or shows a single file's line when
// the path names a file.
func Ls(fsys fs.FS, fsPath string, out io.Writer, opts LsOptions) error {
	fsPath = normalizePath(fsPath)

	info, err := fs.Stat(fsys, fsPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		printEntry(info, info, out, opts.Long)
		return nil
	}

	entries, err := fs.ReadDir(fsys, fsPath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if opts.Long {
			info, err := entry.Info()
			if err != nil {
				fmt.Fprintf(out, "?????????? %s\n", entry.Name())
				continue
			}
			printEntry(info, entry, out, true)
			continue
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		fmt.Fprintln(out, name)
	}
	return nil
}

// normalizePath maps user-supplied paths onto io/fs names.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return path.Clean(p)
}

func printEntry(info fs.FileInfo, src any, out io.Writer, long bool) {
	if !long {
		fmt.Fprintln(out, info.Name())
		return
	}
	var inode string
	if in, ok := src.(inoder); ok {
		inode = fmt.Sprintf("%8d ", in.Inode())
	}
	fmt.Fprintf(out, "%s%s %12d %s %s\n",
		inode, info.Mode(), info.Size(),
		info.ModTime().UTC().Format("Jan _2 2006 15:04"), info.Name())
}
