package motion

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// boxHeader is the start of a typical embedded MP4.
var boxHeader = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}

// motionPhoto builds a size-byte file with a video box at boxAt. A negative
// boxAt produces a file without any box.
func motionPhoto(size, boxAt int) []byte {
	data := bytes.Repeat([]byte{0x5a}, size)
	data[0], data[1] = 0xff, 0xd8
	if boxAt >= 0 {
		copy(data[boxAt:], boxHeader)
	}
	return data
}

func writeFile(t *testing.T, fsys afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, data, 0o644))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(fsys afero.Fs, opts ...Option) *Engine {
	opts = append([]Option{WithFs(fsys), WithLogger(quietLogger())}, opts...)
	return New(opts...)
}

// countingFs records how many times files are opened.
type countingFs struct {
	afero.Fs
	opens atomic.Int32
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.opens.Add(1)
	return c.Fs.Open(name)
}

func (c *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	c.opens.Add(1)
	return c.Fs.OpenFile(name, flag, perm)
}

var errDisk = errors.New("disk failure")

// faultyFs wraps every opened file so that reads at or past failReadAt and
// writes beyond failWriteAfter bytes fail with errDisk. A negative limit
// disables that fault.
type faultyFs struct {
	afero.Fs
	failReadAt     int64
	failWriteAfter int64
}

func (f *faultyFs) Open(name string) (afero.File, error) {
	file, err := f.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f}, nil
}

func (f *faultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f}, nil
}

type faultyFile struct {
	afero.File
	fs      *faultyFs
	pos     int64
	written int64
}

func (f *faultyFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.File.Seek(offset, whence)
	if err == nil {
		f.pos = pos
	}
	return pos, err
}

func (f *faultyFile) Read(p []byte) (int, error) {
	limit := f.fs.failReadAt
	if limit >= 0 {
		if f.pos >= limit {
			return 0, errDisk
		}
		if rest := limit - f.pos; int64(len(p)) > rest {
			p = p[:rest]
		}
	}
	n, err := f.File.Read(p)
	f.pos += int64(n)
	return n, err
}

func (f *faultyFile) Write(p []byte) (int, error) {
	limit := f.fs.failWriteAfter
	if limit < 0 {
		return f.File.Write(p)
	}
	rest := max(limit-f.written, 0)
	short := int64(len(p)) > rest
	if short {
		p = p[:rest]
	}
	n, err := f.File.Write(p)
	f.written += int64(n)
	if err == nil && short {
		err = errDisk
	}
	return n, err
}
