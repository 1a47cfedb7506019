package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/maauso/motionphoto/internal/motion"
	"github.com/maauso/motionphoto/internal/storage"
)

// ErrJobRunning is returned when deleting a job that is still running.
var ErrJobRunning = errors.New("job is running")

// Engine is the subset of *motion.Engine the service drives.
type Engine interface {
	Detect(path string) (bool, error)
	Info(path string) (*motion.ContainerInfo, error)
	Extract(path string) (*motion.ExtractionResult, error)
	StillMetadata(path string) (*motion.StillMetadata, error)
}

// Compile-time check that the engine satisfies the port.
var _ Engine = (*motion.Engine)(nil)

// ExtractInput describes a new extraction request.
type ExtractInput struct {
	// SourcePath is a photo already on disk. Ignored when Upload is set.
	SourcePath string
	// Upload is the photo content sent by the client.
	Upload io.Reader
	// UploadName is the client's file name for Upload; its extension matters.
	UploadName string
	// PushToS3 indicates whether to publish the extracted video.
	PushToS3 bool
}

// InfoOutput is the result of a synchronous info request.
type InfoOutput struct {
	Info  *motion.ContainerInfo
	Still *motion.StillMetadata
}

// ExtractService runs extractions as jobs. Engine calls are synchronous;
// callers decide whether ProcessExistingJob runs in the background.
type ExtractService struct {
	repo     Repository
	engine   Engine
	store    storage.Storage
	logger   *slog.Logger
	s3Prefix string
}

// ServiceOption configures an ExtractService.
type ServiceOption func(*ExtractService)

// WithS3KeyPrefix prefixes every published object key.
func WithS3KeyPrefix(prefix string) ServiceOption {
	return func(s *ExtractService) {
		s.s3Prefix = prefix
	}
}

// NewExtractService creates a new ExtractService.
func NewExtractService(repo Repository, engine Engine, store storage.Storage, logger *slog.Logger, opts ...ServiceOption) *ExtractService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExtractService{
		repo:   repo,
		engine: engine,
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob stores the upload, if any, and persists a job in IN_QUEUE status.
func (s *ExtractService) CreateJob(ctx context.Context, input ExtractInput) (*Job, error) {
	source := input.SourcePath
	uploaded := false
	if input.Upload != nil {
		path, err := s.store.SaveTemp(ctx, input.UploadName, input.Upload)
		if err != nil {
			return nil, fmt.Errorf("save upload: %w", err)
		}
		source = path
		uploaded = true
	}

	job := New(source)
	job.Uploaded = uploaded
	job.PushToS3 = input.PushToS3

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("source", source),
		slog.Bool("uploaded", uploaded),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// Process creates a job and runs it to completion.
func (s *ExtractService) Process(ctx context.Context, input ExtractInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID)
}

// ProcessExistingJob detects, reports and extracts for a queued job, then
// publishes the video when requested. A photo without video completes with
// HasVideo false. The returned error is the one recorded on the job.
func (s *ExtractService) ProcessExistingJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.repo.Update(ctx, jobID, func(j *Job) error { return j.Start() })
	if err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	logger := s.logger.With(slog.String("job_id", jobID), slog.String("source", job.SourcePath))

	isContainer, err := s.engine.Detect(job.SourcePath)
	if err != nil {
		return s.fail(ctx, jobID, logger, fmt.Errorf("detect: %w", err))
	}
	s.progress(ctx, jobID, 20)

	if !isContainer {
		logger.Info("no embedded video")
		return s.complete(ctx, jobID, nil, nil)
	}

	info, err := s.engine.Info(job.SourcePath)
	if err != nil {
		return s.fail(ctx, jobID, logger, fmt.Errorf("info: %w", err))
	}
	s.progress(ctx, jobID, 40)

	res, err := s.engine.Extract(job.SourcePath)
	if err != nil {
		return s.fail(ctx, jobID, logger, fmt.Errorf("extract: %w", err))
	}
	if res == nil {
		logger.Info("no embedded video found during extraction")
		return s.complete(ctx, jobID, info, nil)
	}
	if info.HasVideo && info.VideoStartOffset != res.VideoStartOffset {
		logger.Warn("reported and extracted offsets differ",
			slog.Int64("reported_offset", info.VideoStartOffset),
			slog.Int64("extracted_offset", res.VideoStartOffset),
		)
	}
	logger.Info("video extracted",
		slog.String("output", res.OutputPath),
		slog.Int64("offset", res.VideoStartOffset),
		slog.Int64("bytes", res.BytesWritten),
	)

	if job.PushToS3 {
		// Record the output first so DeleteJob can clean it up if publication fails.
		_, _ = s.repo.Update(ctx, jobID, func(j *Job) error {
			j.SetResult(res)
			j.UpdateProgress(80)
			return nil
		})
		url, err := s.publish(ctx, jobID, res.OutputPath)
		if err != nil {
			return s.fail(ctx, jobID, logger, err)
		}
		_, _ = s.repo.Update(ctx, jobID, func(j *Job) error {
			j.SetVideoURL(url)
			return nil
		})
		logger.Info("video published", slog.String("url", url))
	}

	return s.complete(ctx, jobID, info, res)
}

// publish uploads the extracted video to S3.
func (s *ExtractService) publish(ctx context.Context, jobID, path string) (string, error) {
	rc, err := s.store.LoadTemp(ctx, path)
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = rc.Close() }()

	key := s.s3Prefix + jobID + "/" + filepath.Base(path)
	url, err := s.store.UploadToS3(ctx, key, rc)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	return url, nil
}

func (s *ExtractService) progress(ctx context.Context, jobID string, pct int) {
	_, _ = s.repo.Update(ctx, jobID, func(j *Job) error {
		j.UpdateProgress(pct)
		return nil
	})
}

func (s *ExtractService) complete(ctx context.Context, jobID string, info *motion.ContainerInfo, res *motion.ExtractionResult) (*Job, error) {
	return s.repo.Update(ctx, jobID, func(j *Job) error {
		j.SetInfo(info)
		j.SetResult(res)
		return j.Complete()
	})
}

func (s *ExtractService) fail(ctx context.Context, jobID string, logger *slog.Logger, cause error) (*Job, error) {
	logger.Error("job failed", slog.String("error", cause.Error()))
	job, err := s.repo.Update(ctx, jobID, func(j *Job) error {
		return j.Fail(cause.Error())
	})
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return job, cause
}

// GetJob retrieves a job by ID.
func (s *ExtractService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, newest first.
func (s *ExtractService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// DeleteJob removes a finished or queued job together with the files it
// owns. Running jobs return ErrJobRunning.
func (s *ExtractService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if job.GetStatus() == StatusRunning {
		return ErrJobRunning
	}

	if err := s.store.CleanupTemp(ctx, job.OwnedFiles()); err != nil {
		s.logger.Warn("failed to remove job files",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
	}

	return s.repo.Delete(ctx, id)
}

// Detect runs the classifier synchronously.
func (s *ExtractService) Detect(_ context.Context, path string) (bool, error) {
	return s.engine.Detect(path)
}

// Info reports the probe-depth layout of path and, when withStill is set,
// the still's EXIF summary. Missing EXIF is not an error.
func (s *ExtractService) Info(_ context.Context, path string, withStill bool) (*InfoOutput, error) {
	info, err := s.engine.Info(path)
	if err != nil {
		return nil, err
	}
	out := &InfoOutput{Info: info}
	if !withStill {
		return out, nil
	}

	still, err := s.engine.StillMetadata(path)
	switch {
	case err == nil:
		out.Still = still
	case errors.Is(err, motion.ErrNoMetadata):
	default:
		return nil, err
	}
	return out, nil
}
