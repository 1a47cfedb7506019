package motion

import (
	"github.com/maauso/motionphoto/internal/format"
)

// ContainerInfo describes the layout of a file as seen by the midpoint probe.
//
// When HasVideo is true, VideoStartOffset+VideoSegmentSize == TotalSize and
// ImageSegmentSize == VideoStartOffset. SearchDepth is how many bytes past
// the midpoint the probe examined; Extract may search further on files
// larger than ProbeSize*2 and can therefore find a video Info does not.
type ContainerInfo struct {
	Path             string `json:"path"`
	HasVideo         bool   `json:"has_video"`
	TotalSize        int64  `json:"total_size"`
	ImageSegmentSize int64  `json:"image_segment_size"`
	VideoSegmentSize int64  `json:"video_segment_size"`
	VideoStartOffset int64  `json:"video_start_offset"`
	SearchDepth      int64  `json:"search_depth"`
}

// ReadableTotalSize returns TotalSize for display.
func (c *ContainerInfo) ReadableTotalSize() string { return format.HumanBytes(c.TotalSize) }

// ReadableImageSize returns ImageSegmentSize for display.
func (c *ContainerInfo) ReadableImageSize() string { return format.HumanBytes(c.ImageSegmentSize) }

// ReadableVideoSize returns VideoSegmentSize for display.
func (c *ContainerInfo) ReadableVideoSize() string { return format.HumanBytes(c.VideoSegmentSize) }

// Info reports segment sizes using the same bounded probe as Detect.
// Files without a detected video are reported with the whole file as image.
func (e *Engine) Info(path string) (*ContainerInfo, error) {
	p, err := e.probe(path)
	if err != nil {
		return nil, err
	}

	info := &ContainerInfo{
		Path:             path,
		TotalSize:        p.size,
		ImageSegmentSize: p.size,
		SearchDepth:      p.depth,
	}
	if p.found {
		info.HasVideo = true
		info.VideoStartOffset = p.offset
		info.ImageSegmentSize = p.offset
		info.VideoSegmentSize = p.size - p.offset
	}
	return info, nil
}
