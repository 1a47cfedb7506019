package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/motionphoto/internal/job"
	"github.com/maauso/motionphoto/internal/motion"
	"github.com/maauso/motionphoto/internal/scan"
	"github.com/maauso/motionphoto/internal/storage"
)

// errPathForbidden is returned when a request path escapes the media root.
var errPathForbidden = errors.New("path outside media root")

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.ExtractService
	scanner            *scan.Scanner
	store              storage.Storage
	validator          *validator.Validate
	logger             *slog.Logger
	mediaRoot          string
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithMediaRoot confines every path in a request to root. Relative paths
// are resolved against it.
func WithMediaRoot(root string) HandlerOption {
	return func(h *Handlers) {
		if root != "" {
			h.mediaRoot = filepath.Clean(root)
		}
	}
}

// WithScanner enables POST /scan.
func WithScanner(s *scan.Scanner) HandlerOption {
	return func(h *Handlers) {
		h.scanner = s
	}
}

// NewHandlers creates a new Handlers instance. store serves extracted
// videos for GET /jobs/{id}/video.
func NewHandlers(service *job.ExtractService, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		store:              store,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Detect handles POST /detect requests.
func (h *Handlers) Detect(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !h.decode(w, r, &req) {
		return
	}
	path, ok := h.resolve(w, req.Path)
	if !ok {
		return
	}

	isContainer, err := h.service.Detect(r.Context(), path)
	if err != nil {
		h.writeEngineError(w, path, err)
		return
	}

	writeJSON(w, http.StatusOK, DetectResponse{Path: path, IsContainer: isContainer})
}

// Info handles POST /info requests.
func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	var req InfoRequest
	if !h.decode(w, r, &req) {
		return
	}
	path, ok := h.resolve(w, req.Path)
	if !ok {
		return
	}

	out, err := h.service.Info(r.Context(), path, req.WithExif)
	if err != nil {
		h.writeEngineError(w, path, err)
		return
	}

	writeJSON(w, http.StatusOK, InfoResponse{
		ContainerInfo:     out.Info,
		ReadableTotalSize: out.Info.ReadableTotalSize(),
		ReadableImageSize: out.Info.ReadableImageSize(),
		ReadableVideoSize: out.Info.ReadableVideoSize(),
		Still:             out.Still,
	})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := job.ExtractInput{PushToS3: req.PushToS3}
	name := req.Path
	if req.ImageBase64 != "" {
		name = req.Filename
	}
	if !motion.IsSupported(name) {
		writeError(w, http.StatusBadRequest, "photo must end in .jpg or .jpeg", "UNSUPPORTED_FILE")
		return
	}
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid base64 image", "INVALID_IMAGE")
			return
		}
		input.Upload = bytes.NewReader(data)
		input.UploadName = req.Filename
	} else {
		path, ok := h.resolve(w, req.Path)
		if !ok {
			return
		}
		input.SourcePath = path
	}

	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Detach from the request so processing outlives it.
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if _, processErr := h.service.ProcessExistingJob(ctx, jobID); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("source", createdJob.SourcePath),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// GetJobVideo handles GET /jobs/{id}/video requests by streaming the
// extracted video.
func (h *Handlers) GetJobVideo(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	if foundJob.Status != job.StatusCompleted || !foundJob.HasVideo {
		writeError(w, http.StatusNotFound, "job has no extracted video", "VIDEO_NOT_AVAILABLE")
		return
	}

	rc, err := h.store.LoadTemp(r.Context(), foundJob.OutputPath)
	if err != nil {
		h.logger.Error("failed to open output video",
			slog.String("job_id", foundJob.ID),
			slog.String("path", foundJob.OutputPath),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusNotFound, "extracted video is gone", "VIDEO_NOT_AVAILABLE")
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(foundJob.OutputPath)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("video stream interrupted",
			slog.String("job_id", foundJob.ID),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteJob handles DELETE /jobs/{id} requests.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	err := h.service.DeleteJob(r.Context(), jobID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrJobRunning):
		writeError(w, http.StatusConflict, "job is running", "JOB_RUNNING")
	default:
		h.logger.Error("failed to delete job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
	}
}

// Scan handles POST /scan requests.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	if h.scanner == nil {
		writeError(w, http.StatusNotImplemented, "scanning is not enabled", "SCAN_DISABLED")
		return
	}

	var req ScanRequest
	if !h.decode(w, r, &req) {
		return
	}
	dir, ok := h.resolve(w, req.Dir)
	if !ok {
		return
	}

	results, err := h.scanner.Scan(r.Context(), dir, req.Recursive)
	if err != nil {
		if errors.Is(err, scan.ErrNotDirectory) {
			writeError(w, http.StatusBadRequest, err.Error(), "NOT_A_DIRECTORY")
			return
		}
		h.writeEngineError(w, dir, err)
		return
	}

	resp := ScanResponse{Dir: dir, Files: make([]ScanEntry, 0, len(results))}
	for _, res := range results {
		entry := ScanEntry{Path: res.Path, Size: res.Size, IsContainer: res.IsContainer}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		if res.IsContainer {
			resp.Containers++
		}
		resp.Files = append(resp.Files, entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) lookupJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return foundJob, true
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// resolve cleans p and confines it to the media root when one is set.
func (h *Handlers) resolve(w http.ResponseWriter, p string) (string, bool) {
	path, err := resolvePath(h.mediaRoot, p)
	if err != nil {
		h.logger.Warn("rejected path", slog.String("path", p))
		writeError(w, http.StatusForbidden, err.Error(), "PATH_FORBIDDEN")
		return "", false
	}
	return path, true
}

func resolvePath(root, p string) (string, error) {
	if root == "" {
		return filepath.Clean(p), nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errPathForbidden
	}
	return p, nil
}

func (h *Handlers) writeEngineError(w http.ResponseWriter, path string, err error) {
	if errors.Is(err, motion.ErrNotFound) {
		writeError(w, http.StatusNotFound, "file not found", "FILE_NOT_FOUND")
		return
	}
	h.logger.Error("engine failure",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "I/O failure", "IO_FAILURE")
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:               j.ID,
		Status:           string(j.Status),
		Progress:         j.Progress,
		Error:            j.Error,
		SourcePath:       j.SourcePath,
		HasVideo:         j.HasVideo,
		OutputPath:       j.OutputPath,
		VideoStartOffset: j.VideoStartOffset,
		BytesWritten:     j.BytesWritten,
		VideoURL:         j.VideoURL,
		Info:             j.Info,
		CreatedAt:        j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
