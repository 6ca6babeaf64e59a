package ext4

import (
	"errors"
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// Partition implements fs.FS, fs.ReadDirFS and fs.StatFS over the
// native handle surface, so the volume works with fs.WalkDir, testing
// helpers and anything else speaking io/fs. Slash-separated io/fs names
// are translated to the native separator on the way in.

var (
	_ fs.FS        = (*Partition)(nil)
	_ fs.ReadDirFS = (*Partition)(nil)
	_ fs.StatFS    = (*Partition)(nil)
)

// Open opens the named file for reading.
func (p *Partition) Open(name string) (fs.File, error) {
	f, err := p.openFS("open", name)
	if err != nil {
		return nil, err
	}
	return &fsFile{f: f}, nil
}

// ReadDir reads the named directory and returns its entries sorted by
// filename, as fs.ReadDirFS requires.
func (p *Partition) ReadDir(name string) ([]fs.DirEntry, error) {
	f, err := p.openFS("readdir", name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	native, err := f.ReadDir()
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fsErr(err)}
	}
	entries := make([]fs.DirEntry, len(native))
	for i, e := range native {
		entries[i] = &fsDirEntry{p: p, e: e}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// Stat returns metadata for the named file.
func (p *Partition) Stat(name string) (fs.FileInfo, error) {
	f, err := p.openFS("stat", name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fsStat(f)
}

func (p *Partition) openFS(op, name string) (*File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	native := "\\"
	if name != "." {
		native += strings.ReplaceAll(name, "/", "\\")
	}
	f, err := p.root.Open(native, ModeRead)
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: fsErr(err)}
	}
	return f, nil
}

// fsErr maps the native error taxonomy onto the io/fs sentinels.
func fsErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fs.ErrNotExist
	case errors.Is(err, ErrAccessDenied):
		return fs.ErrPermission
	case errors.Is(err, ErrUnsupported):
		return fs.ErrInvalid
	}
	return err
}

func fsStat(f *File) (fs.FileInfo, error) {
	info, err := f.Info()
	if err != nil {
		return nil, fsErr(err)
	}
	return &fsFileInfo{info: info, inode: uint64(f.InodeNumber())}, nil
}

// fsFile adapts a native handle to fs.File and fs.ReadDirFile.
type fsFile struct {
	f       *File
	entries []fs.DirEntry // remaining directory entries for paged ReadDir
	listed  bool
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return fsStat(f.f) }

func (f *fsFile) Close() error { return f.f.Close() }

// Read reports io.EOF at end of file, where the native handle reads
// zero bytes without error.
func (f *fsFile) Read(p []byte) (int, error) {
	n, err := f.f.Read(p)
	if err != nil {
		return n, fsErr(err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (f *fsFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if !f.listed {
		native, err := f.f.ReadDir()
		if err != nil {
			return nil, fsErr(err)
		}
		f.entries = make([]fs.DirEntry, len(native))
		for i, e := range native {
			f.entries[i] = &fsDirEntry{p: f.f.p, e: e}
		}
		sort.Slice(f.entries, func(i, j int) bool { return f.entries[i].Name() < f.entries[j].Name() })
		f.listed = true
	}
	if n <= 0 {
		out := f.entries
		f.entries = nil
		return out, nil
	}
	if len(f.entries) == 0 {
		return nil, io.EOF
	}
	if n > len(f.entries) {
		n = len(f.entries)
	}
	out := f.entries[:n]
	f.entries = f.entries[n:]
	return out, nil
}

// fsDirEntry adapts a native directory entry to fs.DirEntry. Info loads
// the entry's inode on demand.
type fsDirEntry struct {
	p *Partition
	e DirEntry
}

func (d *fsDirEntry) Name() string { return d.e.Name }

func (d *fsDirEntry) IsDir() bool { return d.e.Type == TypeDirectory }

func (d *fsDirEntry) Type() fs.FileMode { return fsTypeMode(d.e.Type) }

func (d *fsDirEntry) Info() (fs.FileInfo, error) {
	f, err := d.p.openInode(d.e.Inode, ModeRead, d.e.Name)
	if err != nil {
		return nil, fsErr(err)
	}
	defer f.Close()
	return fsStat(f)
}

// Inode returns the entry's inode number.
func (d *fsDirEntry) Inode() uint64 { return uint64(d.e.Inode) }

type fsFileInfo struct {
	info  FileInfo
	inode uint64
}

func (i *fsFileInfo) Name() string       { return i.info.Name }
func (i *fsFileInfo) Size() int64        { return int64(i.info.Size) }
func (i *fsFileInfo) ModTime() time.Time { return i.info.ModifyTime }
func (i *fsFileInfo) IsDir() bool        { return i.info.Dir }
func (i *fsFileInfo) Sys() any           { return i.info }

// Inode returns the file's inode number.
func (i *fsFileInfo) Inode() uint64 { return i.inode }

func (i *fsFileInfo) Mode() fs.FileMode {
	mode := fs.FileMode(i.info.Mode & 0o777)
	switch i.info.Mode & modeTypeMask {
	case modeDir:
		mode |= fs.ModeDir
	case modeSymlink:
		mode |= fs.ModeSymlink
	case modeCharDev:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case modeBlockDev:
		mode |= fs.ModeDevice
	case modeFIFO:
		mode |= fs.ModeNamedPipe
	case modeSocket:
		mode |= fs.ModeSocket
	}
	return mode
}

func fsTypeMode(t FileType) fs.FileMode {
	switch t {
	case TypeDirectory:
		return fs.ModeDir
	case TypeSymlink:
		return fs.ModeSymlink
	case TypeCharDevice:
		return fs.ModeDevice | fs.ModeCharDevice
	case TypeBlockDevice:
		return fs.ModeDevice
	case TypeFIFO:
		return fs.ModeNamedPipe
	case TypeSocket:
		return fs.ModeSocket
	}
	return 0
}
