package ext4

import (
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSReadFile(t *testing.T) {
	p := mountVolume(t, newTestVolume(t))

	data, err := fs.ReadFile(p, "etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "root:x:0:0:root:/root:/bin/sh\n", string(data))
}

func TestFSOpenErrors(t *testing.T) {
	p := mountVolume(t, newTestVolume(t))

	_, err := p.Open("etc/shadow")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = p.Open("secret")
	assert.ErrorIs(t, err, fs.ErrPermission)

	_, err = p.Open("/abs/path")
	assert.ErrorIs(t, err, fs.ErrInvalid)

	var pathErr *fs.PathError
	_, err = p.Open("liblink")
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "liblink", pathErr.Path)
}

func TestFSReadDirSorted(t *testing.T) {
	p := mountVolume(t, newTestVolume(t))

	entries, err := p.ReadDir(".")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"etc", "hello.txt", "liblink", "lost+found", "secret"}, names)
}

func TestFSReadDirPaged(t *testing.T) {
	p := mountVolume(t, newTestVolume(t))

	f, err := p.Open(".")
	require.NoError(t, err)
	defer f.Close()

	dir, ok := f.(fs.ReadDirFile)
	require.True(t, ok)

	first, err := dir.ReadDir(2)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	rest, err := dir.ReadDir(10)
	require.NoError(t, err)
	assert.Len(t, rest, 3)

	_, err = dir.ReadDir(1)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFSStat(t *testing.T) {
	p := mountVolume(t, newTestVolume(t))

	info, err := p.Stat("etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "passwd", info.Name())
	assert.Equal(t, int64(30), info.Size())
	assert.Equal(t, fs.FileMode(0o644), info.Mode())
	assert.False(t, info.IsDir())

	in, ok := info.(interface{ Inode() uint64 })
	require.True(t, ok)
	assert.Equal(t, uint64(16), in.Inode())

	dirInfo, err := p.Stat("etc")
	require.NoError(t, err)
	assert.True(t, dirInfo.IsDir())
	assert.Equal(t, fs.ModeDir|0o755, dirInfo.Mode())
}

func TestFSFileReadEOF(t *testing.T) {
	p := mountVolume(t, newTestVolume(t))

	f, err := p.Open("hello.txt")
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello, world\n", string(data))

	n, err := f.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFSWalkDir(t *testing.T) {
	p := mountVolume(t, newTestVolume(t))

	var visited []string
	err := fs.WalkDir(p, ".", func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		visited = append(visited, path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		".", "etc", "etc/passwd", "hello.txt", "liblink",
		"lost+found", "secret",
	}, visited)
}

func TestFSDirEntryInfo(t *testing.T) {
	p := mountVolume(t, newTestVolume(t))

	entries, err := p.ReadDir("etc")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "passwd", e.Name())
	assert.False(t, e.IsDir())
	info, err := e.Info()
	require.NoError(t, err)
	assert.Equal(t, int64(30), info.Size())
}
