package motion

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
)

// probeResult is the outcome of the single midpoint probe.
type probeResult struct {
	size   int64
	offset int64 // absolute start of the video box
	found  bool
	depth  int64 // bytes examined past the midpoint
}

// Detect reports whether path is a motion photo. Missing files return
// ErrNotFound; files with the wrong extension or below MinContainerSize are
// rejected without being opened.
//
// Only the window starting at the midpoint is searched, so a photo whose
// still image fills more than half the file reports false.
func (e *Engine) Detect(path string) (bool, error) {
	p, err := e.probe(path)
	if err != nil {
		return false, err
	}
	return p.found, nil
}

// probe reads at most one window starting at the midpoint of the file and
// searches it for the video box.
func (e *Engine) probe(path string) (probeResult, error) {
	size, ok, err := e.candidate(path)
	if err != nil || !ok {
		return probeResult{size: size}, err
	}

	f, err := e.fs.Open(path)
	if err != nil {
		return probeResult{size: size}, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer func() { _ = f.Close() }()

	mid := size / 2
	buf, err := readAt(f, mid, min(size-mid, e.limits.window))
	if err != nil {
		return probeResult{size: size}, fmt.Errorf("%w: probe %s: %w", ErrIO, path, err)
	}

	res := probeResult{size: size, depth: int64(len(buf))}
	if i, found := LocateBox(buf); found {
		res.offset = mid + int64(i)
		res.found = true
	}

	e.logger.Debug("probed",
		slog.String("path", path),
		slog.Int64("size", size),
		slog.Int64("probe_start", mid),
		slog.Int64("probe_len", res.depth),
		slog.Bool("found", res.found),
	)
	return res, nil
}

// readAt reads exactly n bytes at off, or fewer if the file ends first.
func readAt(f afero.File, off, n int64) ([]byte, error) {
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read: %w", err)
	}
	return buf[:read], nil
}
