package motion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	// OutputSuffix is inserted between the source base name and the extension.
	OutputSuffix = "_motion"
	// OutputExt is the extension of extracted videos.
	OutputExt = ".mp4"
)

// maxRenameAttempts bounds the search for a free name under CollisionRename.
const maxRenameAttempts = 10000

// CollisionPolicy decides what happens when the output name already exists.
type CollisionPolicy string

const (
	// CollisionOverwrite replaces an existing output.
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionFail returns ErrOutputExists.
	CollisionFail CollisionPolicy = "fail"
	// CollisionRename picks <base>_motion_1.mp4, <base>_motion_2.mp4, ...
	CollisionRename CollisionPolicy = "rename"
)

// IsValid returns true if the policy is known.
func (p CollisionPolicy) IsValid() bool {
	return p == CollisionOverwrite || p == CollisionFail || p == CollisionRename
}

// ParseCollisionPolicy converts a string into a CollisionPolicy.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	p := CollisionPolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown collision policy %q", s)
	}
	return p, nil
}

// OutputPath returns <dir>/<base>_motion.mp4 for a source path.
func OutputPath(src string) string {
	dir := filepath.Dir(src)
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(dir, base+OutputSuffix+OutputExt)
}

// IsOutputName reports whether path looks like a file produced by Extract.
func IsOutputName(path string) bool {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if !strings.EqualFold(filepath.Ext(path), OutputExt) {
		return false
	}
	if strings.HasSuffix(base, OutputSuffix) {
		return true
	}
	i := strings.LastIndex(base, OutputSuffix+"_")
	return i >= 0 && isDigits(base[i+len(OutputSuffix)+1:])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// createOutput opens the output file for src according to the collision policy.
func (e *Engine) createOutput(src string) (string, afero.File, error) {
	out := OutputPath(src)

	switch e.collision {
	case CollisionFail:
		f, err := e.fs.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				return "", nil, fmt.Errorf("%w: %s", ErrOutputExists, out)
			}
			return "", nil, fmt.Errorf("%w: create %s: %w", ErrIO, out, err)
		}
		return out, f, nil

	case CollisionRename:
		base := strings.TrimSuffix(out, OutputExt)
		candidate := out
		for n := 1; n <= maxRenameAttempts; n++ {
			f, err := e.fs.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
			if err == nil {
				return candidate, f, nil
			}
			if !errors.Is(err, fs.ErrExist) {
				return "", nil, fmt.Errorf("%w: create %s: %w", ErrIO, candidate, err)
			}
			candidate = fmt.Sprintf("%s_%d%s", base, n, OutputExt)
		}
		return "", nil, fmt.Errorf("%w: no free name for %s", ErrOutputExists, out)

	default:
		f, err := e.fs.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return "", nil, fmt.Errorf("%w: create %s: %w", ErrIO, out, err)
		}
		return out, f, nil
	}
}
