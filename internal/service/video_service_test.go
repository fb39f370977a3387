package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/repository"
	"alcyxob/workout-engine/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type mockFileStorage struct{ mock.Mock }

func (m *mockFileStorage) GeneratePresignedUploadURL(ctx context.Context, objectKey, contentType string, expires time.Duration) (string, error) {
	args := m.Called(ctx, objectKey, contentType, expires)
	return args.String(0), args.Error(1)
}

func (m *mockFileStorage) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	args := m.Called(ctx, objectKey, expires)
	return args.String(0), args.Error(1)
}

func (m *mockFileStorage) DeleteObject(ctx context.Context, objectKey string) error {
	return m.Called(ctx, objectKey).Error(0)
}

func TestSetVideo_UploadConfirmAndView(t *testing.T) {
	f := newFixture(t)
	store := &mockFileStorage{}
	videos := NewVideoService(f.repos, store)
	session := f.startSession(t)
	squat := f.squat()
	prefix := setVideoPrefix(f.client.ID, session.ID, squat.ID, 2)

	store.On("GeneratePresignedUploadURL", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, prefix) && strings.HasSuffix(key, ".mp4")
	}), "video/mp4", storage.DefaultPresignedURLExpiry).Return("https://upload.example/put", nil).Twice()

	up, err := videos.RequestSetVideoUpload(f.ctx, f.client.ID, session.ID, squat.ID, 2, "Video/MP4")
	require.NoError(t, err)
	assert.Equal(t, "https://upload.example/put", up.UploadURL)

	// requesting a URL writes nothing
	_, err = f.repos.SetLogs.Get(f.ctx, repository.SetLogKey{SessionID: session.ID, WorkoutExerciseID: squat.ID, SetNumber: 2})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	stored, err := videos.ConfirmSetVideo(f.ctx, f.client.ID, session.ID, squat.ID, 2, up.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, up.ObjectKey, stored.VideoKey)
	assert.Equal(t, 8, stored.TargetReps)
	assert.False(t, stored.IsComplete())

	// a replacement video removes the old object
	replacement, err := videos.RequestSetVideoUpload(f.ctx, f.client.ID, session.ID, squat.ID, 2, "video/mp4")
	require.NoError(t, err)
	store.On("DeleteObject", mock.Anything, up.ObjectKey).Return(errors.New("already gone")).Once()
	_, err = videos.ConfirmSetVideo(f.ctx, f.client.ID, session.ID, squat.ID, 2, replacement.ObjectKey)
	require.NoError(t, err, "a failed cleanup does not fail the confirm")

	store.On("GeneratePresignedDownloadURL", mock.Anything, replacement.ObjectKey, storage.DefaultPresignedURLExpiry).Return("https://download.example/get", nil).Once()
	url, err := videos.GetSetVideoURL(f.ctx, f.coach.ID, session.ID, squat.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "https://download.example/get", url)

	store.AssertExpectations(t)
}

func TestSetVideo_Rejections(t *testing.T) {
	f := newFixture(t)
	store := &mockFileStorage{}
	videos := NewVideoService(f.repos, store)
	session := f.startSession(t)
	squat := f.squat()

	_, err := videos.RequestSetVideoUpload(f.ctx, f.client.ID, session.ID, squat.ID, 1, "image/png")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = videos.RequestSetVideoUpload(f.ctx, f.coach.ID, session.ID, squat.ID, 1, "video/mp4")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// set 4 of the squat does not exist until an extra set is added
	_, err = videos.RequestSetVideoUpload(f.ctx, f.client.ID, session.ID, squat.ID, 4, "video/mp4")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = videos.ConfirmSetVideo(f.ctx, f.client.ID, session.ID, squat.ID, 4, setVideoPrefix(f.client.ID, session.ID, squat.ID, 4)+"x.mp4")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.repos.SetLogs.Get(f.ctx, repository.SetLogKey{SessionID: session.ID, WorkoutExerciseID: squat.ID, SetNumber: 4})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	foreign := setVideoPrefix(f.client.ID, session.ID, squat.ID, 3) + "x.mp4"
	_, err = videos.ConfirmSetVideo(f.ctx, f.client.ID, session.ID, squat.ID, 1, foreign)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = videos.GetSetVideoURL(f.ctx, f.client.ID, session.ID, squat.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.setLogs.LogSet(f.ctx, f.client.ID, session.ID, squat.ID, 1, completePatch(8, 60, domain.FeelingEasy))
	require.NoError(t, err)
	_, err = videos.GetSetVideoURL(f.ctx, f.client.ID, session.ID, squat.ID, 1)
	assert.ErrorIs(t, err, ErrVideoMissing)

	require.NoError(t, f.sessions.AbandonSession(f.ctx, f.client.ID, session.ID))
	_, err = videos.RequestSetVideoUpload(f.ctx, f.client.ID, session.ID, squat.ID, 1, "video/mp4")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	store.AssertNotCalled(t, "GeneratePresignedUploadURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSetVideo_StorageDisabled(t *testing.T) {
	f := newFixture(t)
	videos := NewVideoService(f.repos, nil)
	session := f.startSession(t)

	_, err := videos.RequestSetVideoUpload(f.ctx, f.client.ID, session.ID, f.squat().ID, 1, "video/mp4")
	assert.ErrorIs(t, err, storage.ErrStorageDisabled)
	_, err = videos.GetSetVideoURL(f.ctx, f.client.ID, session.ID, f.squat().ID, 1)
	assert.ErrorIs(t, err, storage.ErrStorageDisabled)
}

func TestSetVideo_FailuresRecordedOnSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := tracer
	tracer = provider.Tracer("workout-engine")
	t.Cleanup(func() { tracer = previous })

	f := newFixture(t)
	videos := NewVideoService(f.repos, &mockFileStorage{})
	session := f.startSession(t)
	squat := f.squat()

	_, err := videos.RequestSetVideoUpload(f.ctx, f.client.ID, session.ID, squat.ID, 1, "image/png")
	require.ErrorIs(t, err, ErrInvalidContentType)
	_, err = videos.ConfirmSetVideo(f.ctx, f.client.ID, session.ID, squat.ID, 1, "uploads/elsewhere.mp4")
	require.ErrorIs(t, err, ErrForeignObjectKey)
	_, err = videos.GetSetVideoURL(f.ctx, f.client.ID, session.ID, squat.ID, 1)
	require.ErrorIs(t, err, ErrSetLogNotFound)

	ended := map[string]sdktrace.ReadOnlySpan{}
	for _, span := range recorder.Ended() {
		ended[span.Name()] = span
	}
	for _, name := range []string{"service.video.requestUpload", "service.video.confirm", "service.video.downloadURL"} {
		span, ok := ended[name]
		require.True(t, ok, "missing span %s", name)
		assert.Equal(t, codes.Error, span.Status().Code, name)
		assert.Contains(t, span.Attributes(), attribute.String("session.id", session.ID.Hex()), name)
		assert.Contains(t, span.Attributes(), attribute.Int("set.number", 1), name)
	}
}
