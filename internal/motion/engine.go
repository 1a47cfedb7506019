// Package motion detects motion photos (a still image immediately followed
// by an MP4 payload), reports their segment layout, and extracts the
// embedded video into a standalone file.
//
// The split point is not recorded anywhere in the file. It is found by
// searching for the video's file-type box starting at the middle of the
// file, which skips container-like bytes in the still's own metadata and
// thumbnail. Files whose still segment is larger than half the file are
// reported as having no video.
package motion

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Fixed thresholds.
const (
	// MinContainerSize is the smallest file considered a motion photo.
	MinContainerSize = 100 * 1024
	// LargeFileThreshold separates the in-memory and windowed extraction tiers.
	LargeFileThreshold = 50 * 1024 * 1024
	// ProbeSize bounds the detection read and the extraction window.
	ProbeSize = 1024 * 1024
	// WindowStep is how far each extraction window advances.
	WindowStep = ProbeSize / 2
	// CopyBufferSize bounds memory while copying the video tail.
	CopyBufferSize = 1024 * 1024
)

// Static errors for engine operations.
var (
	// ErrNotFound is returned when the source path does not exist.
	ErrNotFound = errors.New("motion: source not found")
	// ErrIO wraps read and write failures while probing, scanning or copying.
	ErrIO = errors.New("motion: i/o failure")
	// ErrOutputExists is returned under CollisionFail when the output exists.
	ErrOutputExists = errors.New("motion: output already exists")
	// ErrNoMetadata is returned when the still segment carries no EXIF.
	ErrNoMetadata = errors.New("motion: no still metadata")
)

// supportedExtensions lists the still-image extensions a motion photo can carry.
var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

// IsSupported reports whether path has a motion photo extension.
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// limits groups the size thresholds used by one Engine.
type limits struct {
	minSize   int64
	largeSize int64
	window    int64
	step      int64
	copyBuf   int
}

func defaultLimits() limits {
	return limits{
		minSize:   MinContainerSize,
		largeSize: LargeFileThreshold,
		window:    ProbeSize,
		step:      WindowStep,
		copyBuf:   CopyBufferSize,
	}
}

// Engine runs detection, reporting and extraction. It keeps no state
// between calls and may be shared, but concurrent calls on the same source
// path are not coordinated.
type Engine struct {
	fs        afero.Fs
	logger    *slog.Logger
	collision CollisionPolicy
	limits    limits
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs sets the filesystem the engine reads and writes. Defaults to the OS.
func WithFs(fsys afero.Fs) Option {
	return func(e *Engine) {
		if fsys != nil {
			e.fs = fsys
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCollisionPolicy sets what Extract does when the output name is taken.
func WithCollisionPolicy(p CollisionPolicy) Option {
	return func(e *Engine) {
		if p.IsValid() {
			e.collision = p
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		fs:        afero.NewOsFs(),
		logger:    slog.Default(),
		collision: CollisionOverwrite,
		limits:    defaultLimits(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fs returns the filesystem the engine operates on.
func (e *Engine) Fs() afero.Fs {
	return e.fs
}

// candidate stats path and applies the cheap rejections shared by every
// operation. ok is false when the file cannot be a motion photo.
func (e *Engine) candidate(path string) (size int64, ok bool, err error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return 0, false, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	if info.IsDir() || !IsSupported(path) {
		return info.Size(), false, nil
	}
	if info.Size() < e.limits.minSize {
		return info.Size(), false, nil
	}
	return info.Size(), true, nil
}
