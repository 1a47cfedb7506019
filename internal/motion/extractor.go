package motion

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
)

// ExtractionResult describes a written video.
type ExtractionResult struct {
	// OutputPath is where the video was written.
	OutputPath string `json:"output_path"`
	// VideoStartOffset is the offset in the source where the video begins.
	VideoStartOffset int64 `json:"video_start_offset"`
	// BytesWritten is the size of the written video.
	BytesWritten int64 `json:"bytes_written"`
}

// splitSource finds the split offset in a source and copies everything
// after it. The in-memory and windowed tiers differ only in how they read.
type splitSource interface {
	// findSplit returns the absolute offset of the first video box at or after from.
	findSplit(from int64) (int64, bool, error)
	// copyTail writes every byte from offset to the end of the source into dst.
	copyTail(dst io.Writer, offset int64) (int64, error)
}

// Extract writes the video embedded in path to OutputPath(path), or a
// renamed sibling under CollisionRename. It returns nil and no error when
// no video is found. Partial output is left in place when a copy fails.
func (e *Engine) Extract(path string) (*ExtractionResult, error) {
	size, ok, err := e.candidate(path)
	if err != nil || !ok {
		return nil, err
	}

	f, err := e.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer func() { _ = f.Close() }()

	src, tier, err := e.sourceFor(f, size)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}

	offset, found, err := src.findSplit(size / 2)
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %w", ErrIO, path, err)
	}
	if !found {
		e.logger.Debug("no embedded video",
			slog.String("path", path),
			slog.String("tier", tier),
		)
		return nil, nil
	}

	out, w, err := e.createOutput(path)
	if err != nil {
		return nil, err
	}

	n, err := src.copyTail(w, offset)
	if closeErr := w.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close: %w", closeErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: copy %s to %s: %w", ErrIO, path, out, err)
	}

	e.logger.Debug("extracted embedded video",
		slog.String("path", path),
		slog.String("output", out),
		slog.String("tier", tier),
		slog.Int64("offset", offset),
		slog.Int64("bytes", n),
	)

	return &ExtractionResult{
		OutputPath:       out,
		VideoStartOffset: offset,
		BytesWritten:     n,
	}, nil
}

// sourceFor picks the extraction tier by file size.
func (e *Engine) sourceFor(f afero.File, size int64) (splitSource, string, error) {
	if size > e.limits.largeSize {
		return &windowedSource{
			f:       f,
			size:    size,
			window:  e.limits.window,
			step:    e.limits.step,
			copyBuf: e.limits.copyBuf,
		}, "windowed", nil
	}

	buf, err := readAt(f, 0, size)
	if err != nil {
		return nil, "", err
	}
	return memorySource(buf), "memory", nil
}

// memorySource holds the whole file.
type memorySource []byte

func (m memorySource) findSplit(from int64) (int64, bool, error) {
	if from >= int64(len(m)) {
		return 0, false, nil
	}
	i, ok := LocateBox(m[from:])
	if !ok {
		return 0, false, nil
	}
	return from + int64(i), true, nil
}

func (m memorySource) copyTail(dst io.Writer, offset int64) (int64, error) {
	n, err := dst.Write(m[offset:])
	if err != nil {
		return int64(n), fmt.Errorf("write: %w", err)
	}
	return int64(n), nil
}

// windowedSource scans overlapping windows and streams the tail, so memory
// stays bounded by the window and copy buffer sizes.
type windowedSource struct {
	f       afero.File
	size    int64
	window  int64
	step    int64
	copyBuf int
}

// findSplit scans windows [pos, pos+window) with pos advancing by step. A box
// header is 8 bytes and step leaves window-step >= 8 bytes of overlap, so a
// header is never split across every window that touches it.
func (w *windowedSource) findSplit(from int64) (int64, bool, error) {
	buf := make([]byte, w.window)
	for pos := from; pos < w.size; pos += w.step {
		if _, err := w.f.Seek(pos, io.SeekStart); err != nil {
			return 0, false, fmt.Errorf("seek: %w", err)
		}
		n, err := io.ReadFull(w.f, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return 0, false, fmt.Errorf("read: %w", err)
		}
		if i, ok := LocateBox(buf[:n]); ok {
			return pos + int64(i), true, nil
		}
		if pos+int64(n) >= w.size {
			break
		}
	}
	return 0, false, nil
}

func (w *windowedSource) copyTail(dst io.Writer, offset int64) (int64, error) {
	if _, err := w.f.Seek(offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek: %w", err)
	}

	buf := make([]byte, w.copyBuf)
	var written int64
	for {
		n, rerr := w.f.Read(buf)
		if n > 0 {
			m, werr := dst.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, fmt.Errorf("write: %w", werr)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("read: %w", rerr)
		}
	}
}
