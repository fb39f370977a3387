package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/repository"
	"alcyxob/workout-engine/internal/storage"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrUploadURLError     = errors.New("failed to generate upload URL")
	ErrDownloadURLError   = errors.New("failed to generate download URL")
	ErrVideoMissing       = fmt.Errorf("set video %w", ErrNotFound)
	ErrForeignObjectKey   = fmt.Errorf("%w: object key does not belong to this set", ErrValidation)
	ErrInvalidContentType = fmt.Errorf("%w: invalid or missing video content type", ErrValidation)
)

// UploadURLResponse carries the presigned PUT URL and the key the client reports back on confirm.
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// VideoService attaches form-check videos to set logs.
type VideoService interface {
	RequestSetVideoUpload(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, setNumber int, contentType string) (*UploadURLResponse, error)
	// ConfirmSetVideo is called after the client finished the PUT; it records the key on the set log.
	ConfirmSetVideo(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, setNumber int, objectKey string) (*domain.ExerciseSetLog, error)
	// GetSetVideoURL is open to the session's client and the client's coach.
	GetSetVideoURL(ctx context.Context, requesterID, sessionID, exerciseID primitive.ObjectID, setNumber int) (string, error)
}

type videoService struct {
	repos       Repositories
	fileStorage storage.FileStorage
}

// NewVideoService accepts a nil fileStorage; every call then fails with storage.ErrStorageDisabled.
func NewVideoService(repos Repositories, fileStorage storage.FileStorage) VideoService {
	return &videoService{
		repos:       repos,
		fileStorage: fileStorage,
	}
}

func setVideoPrefix(clientID, sessionID, exerciseID primitive.ObjectID, setNumber int) string {
	return path.Join("uploads", clientID.Hex(), sessionID.Hex(), exerciseID.Hex(), fmt.Sprintf("set-%d", setNumber)) + "/"
}

func (s *videoService) RequestSetVideoUpload(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, setNumber int, contentType string) (_ *UploadURLResponse, err error) {
	ctx, span := tracer.Start(ctx, "service.video.requestUpload")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("session.id", sessionID.Hex()),
		attribute.Int("set.number", setNumber),
	)

	if s.fileStorage == nil {
		return nil, storage.ErrStorageDisabled
	}
	session, exercise, err := writableTarget(ctx, s.repos, clientID, sessionID, exerciseID)
	if err != nil {
		return nil, err
	}
	if err := checkSetNumber(ctx, s.repos.SetLogs, session.ID, exercise, setNumber); err != nil {
		return nil, err
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !strings.HasPrefix(contentType, "video/") {
		return nil, ErrInvalidContentType
	}

	ext := strings.TrimPrefix(contentType, "video/")
	if i := strings.IndexAny(ext, ";+ "); i >= 0 {
		ext = ext[:i]
	}
	objectKey := setVideoPrefix(clientID, sessionID, exerciseID, setNumber) + fmt.Sprintf("%s.%s", uuid.NewString(), ext)

	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		log.WithError(err).WithField("object_key", objectKey).Error("failed to presign upload")
		return nil, ErrUploadURLError
	}
	return &UploadURLResponse{UploadURL: uploadURL, ObjectKey: objectKey}, nil
}

func (s *videoService) ConfirmSetVideo(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, setNumber int, objectKey string) (_ *domain.ExerciseSetLog, err error) {
	ctx, span := tracer.Start(ctx, "service.video.confirm")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("session.id", sessionID.Hex()),
		attribute.Int("set.number", setNumber),
	)

	if s.fileStorage == nil {
		return nil, storage.ErrStorageDisabled
	}
	session, exercise, err := writableTarget(ctx, s.repos, clientID, sessionID, exerciseID)
	if err != nil {
		return nil, err
	}
	if err := checkSetNumber(ctx, s.repos.SetLogs, session.ID, exercise, setNumber); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(objectKey, setVideoPrefix(clientID, sessionID, exerciseID, setNumber)) {
		return nil, ErrForeignObjectKey
	}

	key := repository.SetLogKey{SessionID: session.ID, WorkoutExerciseID: exercise.ID, SetNumber: setNumber}
	previous := ""
	if existing, err := s.repos.SetLogs.Get(ctx, key); err == nil {
		previous = existing.VideoKey
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load set log: %w", err)
	}

	stored, err := s.repos.SetLogs.Upsert(ctx, key, seedFor(exercise, setNumber), domain.SetLogPatch{VideoKey: &objectKey})
	if err != nil {
		return nil, fmt.Errorf("attach video: %w", err)
	}

	if previous != "" && previous != objectKey {
		if err := s.fileStorage.DeleteObject(ctx, previous); err != nil {
			log.WithError(err).WithField("object_key", previous).Warn("failed to delete replaced set video")
		}
	}
	log.WithFields(log.Fields{
		"session_id": session.ID.Hex(),
		"set":        setNumber,
		"object_key": objectKey,
	}).Info("set video attached")
	return stored, nil
}

func (s *videoService) GetSetVideoURL(ctx context.Context, requesterID, sessionID, exerciseID primitive.ObjectID, setNumber int) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "service.video.downloadURL")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("session.id", sessionID.Hex()),
		attribute.Int("set.number", setNumber),
	)

	if s.fileStorage == nil {
		return "", storage.ErrStorageDisabled
	}
	session, err := s.repos.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("load session: %w", err)
	}
	if err := checkClientAccess(ctx, s.repos.Users, requesterID, session.ClientID); err != nil {
		return "", err
	}

	setLog, err := s.repos.SetLogs.Get(ctx, repository.SetLogKey{SessionID: sessionID, WorkoutExerciseID: exerciseID, SetNumber: setNumber})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrSetLogNotFound
		}
		return "", fmt.Errorf("load set log: %w", err)
	}
	if setLog.VideoKey == "" {
		return "", ErrVideoMissing
	}

	downloadURL, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, setLog.VideoKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		log.WithError(err).WithField("object_key", setLog.VideoKey).Error("failed to presign download")
		return "", ErrDownloadURLError
	}
	return downloadURL, nil
}
