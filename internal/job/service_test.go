package job

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/motionphoto/internal/motion"
	"github.com/maauso/motionphoto/internal/storage"
)

var boxHeader = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}

func motionPhoto(size, boxAt int) []byte {
	data := bytes.Repeat([]byte{0x5a}, size)
	data[0], data[1] = 0xff, 0xd8
	if boxAt >= 0 {
		copy(data[boxAt:], boxHeader)
	}
	return data
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// publishingStorage uses local storage for working files and a mock for S3.
type publishingStorage struct {
	*storage.LocalStorage
	mock.Mock
}

func (m *publishingStorage) UploadToS3(ctx context.Context, key string, data io.Reader) (string, error) {
	body, _ := io.ReadAll(data)
	args := m.Called(ctx, key, len(body))
	return args.String(0), args.Error(1)
}

// mockEngine implements Engine for testing.
type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Detect(path string) (bool, error) {
	args := m.Called(path)
	return args.Bool(0), args.Error(1)
}

func (m *mockEngine) Info(path string) (*motion.ContainerInfo, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*motion.ContainerInfo), args.Error(1)
}

func (m *mockEngine) Extract(path string) (*motion.ExtractionResult, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*motion.ExtractionResult), args.Error(1)
}

func (m *mockEngine) StillMetadata(path string) (*motion.StillMetadata, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*motion.StillMetadata), args.Error(1)
}

type fixture struct {
	fs    afero.Fs
	local *storage.LocalStorage
	repo  *MemoryRepository
	svc   *ExtractService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fsys := afero.NewMemMapFs()
	local, err := storage.NewLocalStorage(fsys, "/work")
	require.NoError(t, err)
	engine := motion.New(motion.WithFs(fsys), motion.WithLogger(quietLogger()))
	repo := NewMemoryRepository()
	return &fixture{
		fs:    fsys,
		local: local,
		repo:  repo,
		svc:   NewExtractService(repo, engine, local, quietLogger()),
	}
}

func TestExtractService_ProcessPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(f.fs, "/photos/IMG_0001.jpg", motionPhoto(200_000, 150_000), 0o644))

	job, err := f.svc.Process(ctx, ExtractInput{SourcePath: "/photos/IMG_0001.jpg"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.True(t, job.HasVideo)
	assert.Equal(t, "/photos/IMG_0001_motion.mp4", job.OutputPath)
	assert.Equal(t, int64(150_000), job.VideoStartOffset)
	assert.Equal(t, int64(50_000), job.BytesWritten)
	require.NotNil(t, job.Info)
	assert.Equal(t, int64(150_000), job.Info.VideoStartOffset)
	assert.Empty(t, job.VideoURL)

	out, err := afero.ReadFile(f.fs, job.OutputPath)
	require.NoError(t, err)
	assert.Len(t, out, 50_000)
	assert.Equal(t, []byte("ftyp"), out[4:8])
}

func TestExtractService_ProcessUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.svc.CreateJob(ctx, ExtractInput{
		Upload:     bytes.NewReader(motionPhoto(200_000, 150_000)),
		UploadName: "IMG_0002.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInQueue, job.Status)
	assert.True(t, job.Uploaded)
	assert.Contains(t, job.SourcePath, "/work/IMG_0002_")

	done, err := f.svc.ProcessExistingJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, done.HasVideo)
	assert.Len(t, done.OwnedFiles(), 2)
}

func TestExtractService_NoVideoCompletes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, afero.WriteFile(f.fs, "/photos/plain.jpg", motionPhoto(200_000, -1), 0o644))

	job, err := f.svc.Process(context.Background(), ExtractInput{SourcePath: "/photos/plain.jpg"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.False(t, job.HasVideo)
	assert.Empty(t, job.OutputPath)
	exists, _ := afero.Exists(f.fs, "/photos/plain_motion.mp4")
	assert.False(t, exists)
}

func TestExtractService_MissingSourceFails(t *testing.T) {
	f := newFixture(t)

	job, err := f.svc.Process(context.Background(), ExtractInput{SourcePath: "/photos/missing.jpg"})
	require.Error(t, err)
	assert.ErrorIs(t, err, motion.ErrNotFound)
	require.NotNil(t, job)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Error, "detect")
}

func TestExtractService_ProcessTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(f.fs, "/photos/a.jpg", motionPhoto(200_000, 150_000), 0o644))

	job, err := f.svc.Process(ctx, ExtractInput{SourcePath: "/photos/a.jpg"})
	require.NoError(t, err)

	_, err = f.svc.ProcessExistingJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExtractService_PushToS3(t *testing.T) {
	fsys := afero.NewMemMapFs()
	local, err := storage.NewLocalStorage(fsys, "/work")
	require.NoError(t, err)
	store := &publishingStorage{LocalStorage: local}

	engine := motion.New(motion.WithFs(fsys), motion.WithLogger(quietLogger()))
	svc := NewExtractService(NewMemoryRepository(), engine, store, quietLogger(), WithS3KeyPrefix("videos/"))
	require.NoError(t, afero.WriteFile(fsys, "/photos/a.jpg", motionPhoto(200_000, 150_000), 0o644))

	created, err := svc.CreateJob(context.Background(), ExtractInput{SourcePath: "/photos/a.jpg", PushToS3: true})
	require.NoError(t, err)

	store.On("UploadToS3", mock.Anything, "videos/"+created.ID+"/a_motion.mp4", 50_000).
		Return("https://bucket.s3.amazonaws.com/videos/"+created.ID+"/a_motion.mp4", nil).Once()

	job, err := svc.ProcessExistingJob(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/videos/"+created.ID+"/a_motion.mp4", job.VideoURL)
	store.AssertExpectations(t)
}

func TestExtractService_PushToS3FailureFailsJob(t *testing.T) {
	fsys := afero.NewMemMapFs()
	local, err := storage.NewLocalStorage(fsys, "/work")
	require.NoError(t, err)
	store := &publishingStorage{LocalStorage: local}
	store.On("UploadToS3", mock.Anything, mock.Anything, mock.Anything).Return("", storage.ErrS3NotConfigured)

	engine := motion.New(motion.WithFs(fsys), motion.WithLogger(quietLogger()))
	svc := NewExtractService(NewMemoryRepository(), engine, store, quietLogger())
	require.NoError(t, afero.WriteFile(fsys, "/photos/a.jpg", motionPhoto(200_000, 150_000), 0o644))

	job, err := svc.Process(context.Background(), ExtractInput{SourcePath: "/photos/a.jpg", PushToS3: true})
	assert.ErrorIs(t, err, storage.ErrS3NotConfigured)
	require.NotNil(t, job)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "/photos/a_motion.mp4", job.OutputPath)
}

func TestExtractService_ExtractionOffsetWins(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Detect", "a.jpg").Return(true, nil)
	engine.On("Info", "a.jpg").Return(&motion.ContainerInfo{Path: "a.jpg", HasVideo: true, VideoStartOffset: 700}, nil)
	engine.On("Extract", "a.jpg").Return(&motion.ExtractionResult{OutputPath: "a_motion.mp4", VideoStartOffset: 650, BytesWritten: 350}, nil)

	svc := NewExtractService(NewMemoryRepository(), engine, nil, quietLogger())
	job, err := svc.Process(context.Background(), ExtractInput{SourcePath: "a.jpg"})
	require.NoError(t, err)

	assert.Equal(t, int64(650), job.VideoStartOffset)
	assert.Equal(t, int64(700), job.Info.VideoStartOffset)
	engine.AssertExpectations(t)
}

func TestExtractService_ExtractErrorFailsJob(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Detect", "a.jpg").Return(true, nil)
	engine.On("Info", "a.jpg").Return(&motion.ContainerInfo{Path: "a.jpg", HasVideo: true}, nil)
	engine.On("Extract", "a.jpg").Return(nil, motion.ErrIO)

	svc := NewExtractService(NewMemoryRepository(), engine, nil, quietLogger())
	job, err := svc.Process(context.Background(), ExtractInput{SourcePath: "a.jpg"})

	assert.ErrorIs(t, err, motion.ErrIO)
	assert.Equal(t, StatusFailed, job.Status)
	assert.False(t, job.HasVideo)
}

func TestExtractService_DeleteJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.svc.Process(ctx, ExtractInput{
		Upload:     bytes.NewReader(motionPhoto(200_000, 150_000)),
		UploadName: "IMG_0003.jpg",
	})
	require.NoError(t, err)
	owned := job.OwnedFiles()
	require.Len(t, owned, 2)

	require.NoError(t, f.svc.DeleteJob(ctx, job.ID))

	for _, p := range owned {
		exists, _ := afero.Exists(f.fs, p)
		assert.False(t, exists, "%s should be removed", p)
	}
	_, err = f.svc.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestExtractService_DeleteKeepsCallerSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(f.fs, "/photos/a.jpg", motionPhoto(200_000, 150_000), 0o644))

	job, err := f.svc.Process(ctx, ExtractInput{SourcePath: "/photos/a.jpg"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteJob(ctx, job.ID))

	exists, _ := afero.Exists(f.fs, "/photos/a.jpg")
	assert.True(t, exists)
	exists, _ = afero.Exists(f.fs, "/photos/a_motion.mp4")
	assert.False(t, exists)
}

func TestExtractService_DeleteRunningJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := New("/photos/a.jpg")
	require.NoError(t, job.Start())
	require.NoError(t, f.repo.Save(ctx, job))

	assert.ErrorIs(t, f.svc.DeleteJob(ctx, job.ID), ErrJobRunning)
	assert.ErrorIs(t, f.svc.DeleteJob(ctx, "missing"), ErrJobNotFound)
}

func TestExtractService_ListJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"a.jpg", "b.jpg"} {
		_, err := f.svc.CreateJob(ctx, ExtractInput{SourcePath: name})
		require.NoError(t, err)
	}

	jobs, err := f.svc.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestExtractService_Info(t *testing.T) {
	engine := new(mockEngine)
	info := &motion.ContainerInfo{Path: "a.jpg", HasVideo: true}
	engine.On("Info", "a.jpg").Return(info, nil)
	engine.On("StillMetadata", "a.jpg").Return(nil, motion.ErrNoMetadata).Once()

	svc := NewExtractService(NewMemoryRepository(), engine, nil, quietLogger())

	out, err := svc.Info(context.Background(), "a.jpg", false)
	require.NoError(t, err)
	assert.Same(t, info, out.Info)
	assert.Nil(t, out.Still)

	out, err = svc.Info(context.Background(), "a.jpg", true)
	require.NoError(t, err)
	assert.Nil(t, out.Still)

	engine.On("StillMetadata", "a.jpg").Return(nil, errors.New("boom")).Once()
	_, err = svc.Info(context.Background(), "a.jpg", true)
	assert.Error(t, err)
}

func TestNewExtractService_DefaultLogger(t *testing.T) {
	svc := NewExtractService(NewMemoryRepository(), new(mockEngine), nil, nil)
	assert.NotNil(t, svc.logger)
}
