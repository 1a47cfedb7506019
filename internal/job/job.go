// Package job provides the Job aggregate for background motion photo
// extractions, with a validated status state machine, a repository port,
// and the ExtractService use case that drives the engine.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/motionphoto/internal/job/id"
	"github.com/maauso/motionphoto/internal/motion"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job was accepted and not started yet.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates detection or extraction is in progress.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished. HasVideo tells whether a
	// video was written.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates an I/O or upload error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled before it started.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// A running extraction cannot be interrupted, so RUNNING cannot be cancelled.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one extraction request.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// SourcePath is the photo being processed.
	SourcePath string
	// Uploaded is true when SourcePath was saved from a request body and is
	// owned by the service.
	Uploaded bool
	// PushToS3 indicates whether to upload the extracted video to S3.
	PushToS3 bool
	// Info is the probe-depth layout reported before extraction.
	Info *motion.ContainerInfo
	// HasVideo is true when a video was extracted.
	HasVideo bool
	// OutputPath is the extracted video.
	OutputPath string
	// VideoStartOffset is where extraction found the video.
	VideoStartOffset int64
	// BytesWritten is the size of the extracted video.
	BytesWritten int64
	// VideoURL is the S3 URL if PushToS3 was true.
	VideoURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New(sourcePath string) *Job {
	return NewWithID(id.Generate(), sourcePath)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID, sourcePath string) *Job {
	now := time.Now()
	return &Job{
		ID:         jobID,
		Status:     StatusInQueue,
		SourcePath: sourcePath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED and sets progress to 100.
func (j *Job) Complete() error {
	if err := j.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	j.UpdateProgress(100)
	return nil
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// SetInfo records the probe-depth layout.
func (j *Job) SetInfo(info *motion.ContainerInfo) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if info != nil {
		c := *info
		j.Info = &c
	} else {
		j.Info = nil
	}
	j.UpdatedAt = time.Now()
}

// SetResult records a successful extraction.
func (j *Job) SetResult(res *motion.ExtractionResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if res == nil {
		j.HasVideo = false
		j.OutputPath = ""
		j.VideoStartOffset = 0
		j.BytesWritten = 0
	} else {
		j.HasVideo = true
		j.OutputPath = res.OutputPath
		j.VideoStartOffset = res.VideoStartOffset
		j.BytesWritten = res.BytesWritten
	}
	j.UpdatedAt = time.Now()
}

// SetVideoURL records where the video was published.
func (j *Job) SetVideoURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.VideoURL = url
	j.UpdatedAt = time.Now()
}

// OwnedFiles returns the files the job created or owns: the extracted video
// and, for uploads, the source photo.
func (j *Job) OwnedFiles() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var paths []string
	if j.OutputPath != "" {
		paths = append(paths, j.OutputPath)
	}
	if j.Uploaded && j.SourcePath != "" {
		paths = append(paths, j.SourcePath)
	}
	return paths
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var info *motion.ContainerInfo
	if j.Info != nil {
		c := *j.Info
		info = &c
	}

	return &Job{
		ID:               j.ID,
		Status:           j.Status,
		Progress:         j.Progress,
		Error:            j.Error,
		SourcePath:       j.SourcePath,
		Uploaded:         j.Uploaded,
		PushToS3:         j.PushToS3,
		Info:             info,
		HasVideo:         j.HasVideo,
		OutputPath:       j.OutputPath,
		VideoStartOffset: j.VideoStartOffset,
		BytesWritten:     j.BytesWritten,
		VideoURL:         j.VideoURL,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
}
