package ext4

import (
	"errors"
	"fmt"
)

// Error taxonomy of the driver. Every failure surfaced by this package
// wraps exactly one of these sentinels (or blockdev.ErrDevice for I/O
// failures, which are propagated verbatim and never retried), so callers
// classify with errors.Is.
var (
	// ErrCorrupt means on-disk metadata failed validation: bad magic,
	// out-of-range record lengths, extent depth mismatches, inode
	// numbers outside the volume. Never retried.
	ErrCorrupt = errors.New("corrupt filesystem")

	// ErrUnsupported means the volume or the operation requires a
	// capability this driver does not implement: an unknown required
	// feature bit, a legacy block-mapped inode, writing, deleting,
	// or reading a directory through the byte-read path.
	ErrUnsupported = errors.New("unsupported")

	// ErrAccessDenied means an open-mode permission check failed or
	// path resolution hit an object type that cannot be opened here
	// (symlink, device node, fifo, socket).
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound means a path component does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNameTooLong means a path component exceeds NameMax.
	ErrNameTooLong = errors.New("name too long")

	// ErrBufferTooSmall means a caller-supplied buffer cannot hold the
	// result; the error text reports the required size.
	ErrBufferTooSmall = errors.New("buffer too small")
)

func errCorruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

func errUnsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

func errAccessDeniedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, fmt.Sprintf(format, args...))
}

func errNotFoundf(name string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

func errBufferTooSmallf(need, have int) error {
	return fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, need, have)
}

func errNameTooLongf(name string) error {
	return fmt.Errorf("%w: %d-byte component", ErrNameTooLong, len(name))
}
