// Package server provides the HTTP server for the motion photo API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/motionphoto/internal/motion"
)

// PathRequest is the HTTP request body for POST /detect.
type PathRequest struct {
	// Path is the photo to inspect, resolved against the media root.
	Path string `json:"path" validate:"required"`
}

// DetectResponse is the HTTP response for POST /detect.
type DetectResponse struct {
	Path        string `json:"path"`
	IsContainer bool   `json:"is_container"`
}

// InfoRequest is the HTTP request body for POST /info.
type InfoRequest struct {
	// Path is the photo to inspect, resolved against the media root.
	Path string `json:"path" validate:"required"`
	// WithExif adds the still's EXIF summary to the response.
	WithExif bool `json:"with_exif"`
}

// InfoResponse is the HTTP response for POST /info.
type InfoResponse struct {
	*motion.ContainerInfo
	ReadableTotalSize string               `json:"readable_total_size"`
	ReadableImageSize string               `json:"readable_image_size"`
	ReadableVideoSize string               `json:"readable_video_size"`
	Still             *motion.StillMetadata `json:"still,omitempty"`
}

// CreateJobRequest is the HTTP request body for creating a new job.
// Exactly one of Path and ImageBase64 is expected.
type CreateJobRequest struct {
	// Path is a photo already on the server.
	Path string `json:"path" validate:"required_without=ImageBase64,excluded_with=ImageBase64"`
	// ImageBase64 is the base64-encoded photo.
	ImageBase64 string `json:"image_base64" validate:"omitempty,base64"`
	// Filename names the uploaded photo; its extension must be supported.
	Filename string `json:"filename" validate:"required_with=ImageBase64"`
	// PushToS3 indicates whether to upload the extracted video to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID               string                `json:"id"`
	Status           string                `json:"status"`
	Progress         int                   `json:"progress"`
	Error            string                `json:"error,omitempty"`
	SourcePath       string                `json:"source_path"`
	HasVideo         bool                  `json:"has_video"`
	OutputPath       string                `json:"output_path,omitempty"`
	VideoStartOffset int64                 `json:"video_start_offset,omitempty"`
	BytesWritten     int64                 `json:"bytes_written,omitempty"`
	VideoURL         string                `json:"video_url,omitempty"`
	Info             *motion.ContainerInfo `json:"info,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
}

// ListJobsResponse is the HTTP response for GET /jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ScanRequest is the HTTP request body for POST /scan.
type ScanRequest struct {
	// Dir is the directory to scan, resolved against the media root.
	Dir string `json:"dir" validate:"required"`
	// Recursive includes subdirectories.
	Recursive bool `json:"recursive"`
}

// ScanEntry is one file in a ScanResponse.
type ScanEntry struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	IsContainer bool   `json:"is_container"`
	Error       string `json:"error,omitempty"`
}

// ScanResponse is the HTTP response for POST /scan.
type ScanResponse struct {
	Dir        string      `json:"dir"`
	Files      []ScanEntry `json:"files"`
	Containers int         `json:"containers"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
