package ext4

import "strings"

// OpenMode is the set of capabilities requested when opening a handle.
type OpenMode uint8

const (
	ModeRead  OpenMode = 1 << iota // read file contents
	ModeWrite                      // granted only by permission bits; writes still fail
)

const (
	// PathSeparator separates path components on the handle surface.
	PathSeparator = '\\'

	// NameMax is the maximum length of one path component.
	NameMax = 255
)

// SeekEnd is the sentinel position meaning "seek to end of file".
const SeekEnd = ^uint64(0)

// File is an open handle: an exclusively owned Inode plus a byte
// position and the open mode that was granted. Handles are not shared;
// every successful Open returns a distinct File.
type File struct {
	p        *Partition
	inodeNum uint32
	inode    *Inode
	name     string
	pos      uint64
	mode     OpenMode
	closed   bool
}

// openInode loads an inode and wraps it in a fresh handle.
func (p *Partition) openInode(number uint32, mode OpenMode, name string) (*File, error) {
	ino, err := p.loadInode(number)
	if err != nil {
		return nil, err
	}
	return &File{p: p, inodeNum: number, inode: ino, name: name, mode: mode}, nil
}

// Open resolves path relative to f and returns a new handle. A leading
// separator rebases the walk at the partition root. Each component is
// resolved by a linear directory scan under the partition's collator;
// the final inode must grant every capability in mode via its owner
// permission bits, and only regular files and directories are openable.
func (f *File) Open(path string, mode OpenMode) (*File, error) {
	if err := f.live(); err != nil {
		return nil, err
	}
	p := f.p

	current := f
	if strings.HasPrefix(path, string(PathSeparator)) {
		current = p.root
	}

	level := 0
	for path != "" {
		for len(path) > 0 && path[0] == PathSeparator {
			path = path[1:]
		}

		end := strings.IndexByte(path, PathSeparator)
		if end < 0 {
			end = len(path)
		}
		component := path[:end]
		path = path[end:]

		if component == "" {
			break
		}
		if len(component) > NameMax {
			releaseAbove(current, level)
			return nil, errNameTooLongf(component)
		}
		if !current.inode.IsDir() {
			releaseAbove(current, level)
			return nil, errNotFoundf(component)
		}

		entry, err := p.findEntry(current.inode, component)
		if err != nil {
			releaseAbove(current, level)
			return nil, err
		}

		next, err := p.openInode(entry.Inode, ModeRead, component)
		if err != nil {
			releaseAbove(current, level)
			return nil, err
		}
		if !next.inode.isOpenable() {
			next.release()
			releaseAbove(current, level)
			return nil, errAccessDeniedf("%s is a %s", component, entry.Type)
		}

		releaseAbove(current, level)
		current = next
		level++

		p.log.WithField("component", component).Debug("resolved path component")
	}

	// An empty path (or bare separators) resolves to the base itself;
	// hand out a fresh handle so ownership stays one inode per File.
	if level == 0 {
		dup, err := p.openInode(current.inodeNum, mode, current.name)
		if err != nil {
			return nil, err
		}
		current = dup
	}

	if !current.inode.grants(mode) {
		modeBits := current.inode.Mode
		current.release()
		return nil, errAccessDeniedf("mode %02b not granted by permissions %#o", mode, modeBits)
	}
	current.mode = mode
	current.pos = 0
	return current, nil
}

// releaseAbove closes an intermediate handle created during the walk.
// The caller-supplied base (level 0) is never released.
func releaseAbove(current *File, level int) {
	if level > 0 {
		current.release()
	}
}

// Close releases the handle and its inode. Closing the partition's root
// handle is a no-op, and closing twice is safe.
func (f *File) Close() error {
	if f == f.p.root {
		return nil
	}
	f.release()
	return nil
}

// Delete closes the handle. There is no write path, so the delete
// itself always reports failure.
func (f *File) Delete() error {
	_ = f.Close()
	return errUnsupportedf("delete: volume is read-only")
}

func (f *File) release() {
	if f.closed {
		return
	}
	f.closed = true
	f.inode = nil
}

func (f *File) live() error {
	if f.closed {
		return errAccessDeniedf("handle is closed")
	}
	return nil
}

// Read fills buf from the current position, clamped to the file size,
// and advances the position. At or past end of file it reads zero bytes
// without error. Directories cannot be read through this path.
func (f *File) Read(buf []byte) (int, error) {
	if err := f.live(); err != nil {
		return 0, err
	}
	if f.inode.IsDir() {
		return 0, errUnsupportedf("byte read of a directory")
	}

	size := f.inode.Size()
	if f.pos >= size {
		return 0, nil
	}
	n := uint64(len(buf))
	if f.pos+n > size {
		n = size - f.pos
	}
	if err := f.p.readRange(f.inode, f.pos, buf[:n]); err != nil {
		return 0, err
	}
	f.pos += n
	return int(n), nil
}

// Write always fails: there is no write path.
func (f *File) Write([]byte) (int, error) {
	return 0, errUnsupportedf("write: volume is read-only")
}

// Position returns the current byte position. Directory handles have no
// readable position.
func (f *File) Position() (uint64, error) {
	if err := f.live(); err != nil {
		return 0, err
	}
	if f.inode.IsDir() {
		return 0, errUnsupportedf("position of a directory handle")
	}
	return f.pos, nil
}

// SetPosition moves the byte position. SeekEnd seeks to the file size.
// A directory handle accepts only position 0, which resets enumeration.
func (f *File) SetPosition(pos uint64) error {
	if err := f.live(); err != nil {
		return err
	}
	if f.inode.IsDir() && pos != 0 {
		return errUnsupportedf("directory position %d; only 0 resets a directory", pos)
	}
	if pos == SeekEnd {
		pos = f.inode.Size()
	}
	f.pos = pos
	return nil
}

// Name returns the last path component the handle was opened with.
func (f *File) Name() string { return f.name }

// InodeNumber returns the handle's inode number.
func (f *File) InodeNumber() uint32 { return f.inodeNum }

// Size returns the object's size in bytes.
func (f *File) Size() uint64 { return f.inode.Size() }

// IsDir reports whether the handle is a directory.
func (f *File) IsDir() bool { return f.inode.IsDir() }

// Mode returns the inode mode bits (type and permissions).
func (f *File) Mode() uint16 { return f.inode.Mode }

// ReadDir returns the directory's live entries in on-disk scan order,
// without the "." and ".." entries.
func (f *File) ReadDir() ([]DirEntry, error) {
	if err := f.live(); err != nil {
		return nil, err
	}
	if !f.inode.IsDir() {
		return nil, errUnsupportedf("directory listing of a regular file")
	}
	var entries []DirEntry
	err := f.p.iterateDir(f.inode, func(e DirEntry) bool {
		if e.Name != "." && e.Name != ".." {
			entries = append(entries, e)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
