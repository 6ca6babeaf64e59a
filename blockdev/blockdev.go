// Package blockdev abstracts the synchronous block device a filesystem
// driver reads from. Devices have no short-read contract: a read either
// fills the caller's buffer completely or fails, and every failure can be
// classified with errors.Is(err, ErrDevice).
package blockdev

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrDevice marks any I/O failure of the underlying transport. The core
// never retries; retry policy, if any, belongs below this interface.
var ErrDevice = errors.New("device error")

// Device is a fixed-size volume readable at arbitrary byte offsets.
// All reads are synchronous and blocking.
type Device interface {
	// ReadAt fills p with len(p) bytes starting at byte offset off.
	// Either p is filled completely or an error wrapping ErrDevice
	// is returned.
	ReadAt(p []byte, off int64) error

	// Size returns the device size in bytes.
	Size() int64
}

// File is a Device backed by a regular file or a raw device node.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens path read-only as a block device.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	return &File{f: f, size: info.Size()}, nil
}

func (d *File) ReadAt(p []byte, off int64) error {
	if err := checkRange(off, len(p), d.size); err != nil {
		return err
	}
	if _, err := io.ReadFull(io.NewSectionReader(d.f, off, int64(len(p))), p); err != nil {
		return fmt.Errorf("%w: read %d bytes at %d: %v", ErrDevice, len(p), off, err)
	}
	return nil
}

func (d *File) Size() int64 { return d.size }

// Close releases the underlying file handle.
func (d *File) Close() error { return d.f.Close() }

// Mem is a Device over an in-memory byte slice.
type Mem struct {
	data []byte
}

// NewMem wraps data as a Device. The slice is not copied.
func NewMem(data []byte) *Mem { return &Mem{data: data} }

func (d *Mem) ReadAt(p []byte, off int64) error {
	if err := checkRange(off, len(p), int64(len(d.data))); err != nil {
		return err
	}
	copy(p, d.data[off:])
	return nil
}

func (d *Mem) Size() int64 { return int64(len(d.data)) }

// Section exposes a byte window [off, off+size) of a parent device,
// typically one partition of a whole-disk image.
type Section struct {
	parent Device
	off    int64
	size   int64
}

// NewSection creates a window into parent. The window must lie entirely
// within the parent device.
func NewSection(parent Device, off, size int64) (*Section, error) {
	if off < 0 || size < 0 || off+size > parent.Size() {
		return nil, fmt.Errorf("%w: section [%d,%d) outside device of %d bytes",
			ErrDevice, off, off+size, parent.Size())
	}
	return &Section{parent: parent, off: off, size: size}, nil
}

func (d *Section) ReadAt(p []byte, off int64) error {
	if err := checkRange(off, len(p), d.size); err != nil {
		return err
	}
	return d.parent.ReadAt(p, d.off+off)
}

func (d *Section) Size() int64 { return d.size }

func checkRange(off int64, n int, size int64) error {
	if off < 0 || off+int64(n) > size {
		return fmt.Errorf("%w: read [%d,%d) outside device of %d bytes",
			ErrDevice, off, off+int64(n), size)
	}
	return nil
}

// reader adapts a Device to io.Reader for parsers that want a stream.
type reader struct {
	dev Device
	off int64
}

func (r *reader) Read(p []byte) (int, error) {
	left := r.dev.Size() - r.off
	if left <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > left {
		p = p[:left]
	}
	if err := r.dev.ReadAt(p, r.off); err != nil {
		return 0, err
	}
	r.off += int64(len(p))
	return len(p), nil
}
