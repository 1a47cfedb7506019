package motion

import (
	"fmt"
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// StillMetadata is the EXIF summary of the still segment.
type StillMetadata struct {
	Make      string     `json:"make,omitempty"`
	Model     string     `json:"model,omitempty"`
	DateTaken *time.Time `json:"date_taken,omitempty"`
	Width     int        `json:"width,omitempty"`
	Height    int        `json:"height,omitempty"`
	ISO       int        `json:"iso,omitempty"`
}

// StillMetadata decodes EXIF from the still segment of path. Only bytes
// before the detected video are read. Returns ErrNoMetadata when the still
// carries no EXIF block.
func (e *Engine) StillMetadata(path string) (*StillMetadata, error) {
	p, err := e.probe(path)
	if err != nil {
		return nil, err
	}
	limit := p.size
	if p.found {
		limit = p.offset
	}

	f, err := e.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer func() { _ = f.Close() }()

	x, err := exif.Decode(io.NewSectionReader(f, 0, limit))
	if x == nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoMetadata, path, err)
	}

	meta := &StillMetadata{
		Make:   stringTag(x, exif.Make),
		Model:  stringTag(x, exif.Model),
		Width:  intTag(x, exif.PixelXDimension),
		Height: intTag(x, exif.PixelYDimension),
		ISO:    intTag(x, exif.ISOSpeedRatings),
	}
	if t, err := x.DateTime(); err == nil {
		meta.DateTaken = &t
	}
	return meta, nil
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return s
}

func intTag(x *exif.Exif, name exif.FieldName) int {
	tag, err := x.Get(name)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}
