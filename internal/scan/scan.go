// Package scan classifies every photo under a directory and optionally
// extracts the embedded videos, using a bounded worker pool.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/maauso/motionphoto/internal/motion"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 4

// ErrNotDirectory is returned when the scan root is a file.
var ErrNotDirectory = errors.New("not a directory")

// Engine is the part of *motion.Engine a scan needs.
type Engine interface {
	Detect(path string) (bool, error)
	Extract(path string) (*motion.ExtractionResult, error)
}

// Result is the classification of one file.
type Result struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	IsContainer bool   `json:"is_container"`
	Err         error  `json:"-"`
}

// Extraction is the outcome of extracting one container.
type Extraction struct {
	Path   string
	Result *motion.ExtractionResult
	Err    error
}

// Scanner walks directories on an afero filesystem.
type Scanner struct {
	fs      afero.Fs
	engine  Engine
	workers int
	logger  *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers sets how many files are processed at once. Values below 1
// are ignored.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scanner. The engine must read from the same filesystem.
func New(fsys afero.Fs, engine Engine, opts ...Option) *Scanner {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	s := &Scanner{
		fs:      fsys,
		engine:  engine,
		workers: DefaultWorkers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan classifies every supported photo under root. Per-file failures are
// reported in Result.Err; the returned error covers the walk itself and
// cancellation. Results are sorted by path.
func (s *Scanner) Scan(ctx context.Context, root string, recursive bool) ([]Result, error) {
	files, err := s.collect(root, recursive)
	if err != nil {
		return nil, err
	}

	s.logger.Info("scanning directory",
		slog.String("root", root),
		slog.Bool("recursive", recursive),
		slog.Int("files", len(files)),
		slog.Int("workers", s.workers),
	)

	p := pool.NewWithResults[Result]().WithMaxGoroutines(s.workers)
	for _, f := range files {
		p.Go(func() Result {
			if ctx.Err() != nil {
				return Result{Path: f.path, Size: f.size, Err: ctx.Err()}
			}
			ok, err := s.engine.Detect(f.path)
			return Result{Path: f.path, Size: f.size, IsContainer: ok, Err: err}
		})
	}
	results := p.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// ExtractAll extracts every container in results. Failures are reported
// per file; cancellation stops files that have not started yet.
func (s *Scanner) ExtractAll(ctx context.Context, results []Result) ([]Extraction, error) {
	p := pool.NewWithResults[Extraction]().WithMaxGoroutines(s.workers)
	for _, r := range results {
		if !r.IsContainer {
			continue
		}
		p.Go(func() Extraction {
			if ctx.Err() != nil {
				return Extraction{Path: r.Path, Err: ctx.Err()}
			}
			res, err := s.engine.Extract(r.Path)
			if err != nil {
				s.logger.Warn("extraction failed",
					slog.String("path", r.Path),
					slog.String("error", err.Error()),
				)
			}
			return Extraction{Path: r.Path, Result: res, Err: err}
		})
	}
	out := p.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

type candidate struct {
	path string
	size int64
}

func (s *Scanner) collect(root string, recursive bool) ([]candidate, error) {
	info, err := s.fs.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", motion.ErrNotFound, root)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", motion.ErrIO, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var files []candidate
	err = afero.Walk(s.fs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable entry",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if info.IsDir() {
			if !recursive && filepath.Clean(path) != filepath.Clean(root) {
				return filepath.SkipDir
			}
			return nil
		}
		if !motion.IsSupported(path) {
			return nil
		}
		files = append(files, candidate{path: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", motion.ErrIO, root, err)
	}
	return files, nil
}
