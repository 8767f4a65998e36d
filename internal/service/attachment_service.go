package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"
	"alcyxob/fitness-coach/internal/storage"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UploadURLResponse tells the client where to PUT the file and which key to confirm.
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// AttachmentService attaches photos and videos to diaries through presigned
// object storage URLs.
type AttachmentService interface {
	RequestUploadURL(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID, contentType, fileName string) (*UploadURLResponse, error)
	ConfirmUpload(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID, objectKey, fileName, contentType string, size int64) (*domain.Attachment, error)
	DownloadURL(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID, attachmentID string) (string, error)
}

type attachmentService struct {
	access
	diaryRepo   repository.DiaryRepository
	fileStorage storage.FileStorage
	log         *zap.Logger
	now         func() time.Time
}

// NewAttachmentService creates a new instance of attachmentService. A nil
// fileStorage disables attachments.
func NewAttachmentService(userRepo repository.UserRepository, diaryRepo repository.DiaryRepository, fileStorage storage.FileStorage, log *zap.Logger) AttachmentService {
	return &attachmentService{
		access:      access{users: userRepo},
		diaryRepo:   diaryRepo,
		fileStorage: fileStorage,
		log:         log.Named("attachments"),
		now:         time.Now,
	}
}

func attachableType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/")
}

func objectKeyPrefix(diary *domain.TrainingDiary) string {
	return fmt.Sprintf("diaries/%s/%s/", diary.ClientDNI, diary.ID.Hex())
}

func (s *attachmentService) diary(ctx context.Context, diaryID primitive.ObjectID) (*domain.TrainingDiary, error) {
	if s.fileStorage == nil {
		return nil, ErrStorageDisabled
	}
	diary, err := s.diaryRepo.GetByID(ctx, diaryID)
	if err != nil {
		return nil, notFoundAs(err, ErrDiaryNotFound)
	}
	return diary, nil
}

func (s *attachmentService) RequestUploadURL(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID, contentType, fileName string) (*UploadURLResponse, error) {
	diary, err := s.diary(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	if err := s.ownerClient(actor, diary.ClientDNI); err != nil {
		return nil, err
	}
	if !attachableType(contentType) {
		return nil, ErrInvalidContentType
	}

	objectKey := objectKeyPrefix(diary) + uuid.NewString() + strings.ToLower(path.Ext(fileName))
	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		s.log.Error("presign upload failed", zap.String("objectKey", objectKey), zap.Error(err))
		return nil, ErrUploadURLError
	}
	return &UploadURLResponse{UploadURL: uploadURL, ObjectKey: objectKey}, nil
}

func (s *attachmentService) ConfirmUpload(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID, objectKey, fileName, contentType string, size int64) (*domain.Attachment, error) {
	diary, err := s.diary(ctx, diaryID)
	if err != nil {
		return nil, err
	}
	if err := s.ownerClient(actor, diary.ClientDNI); err != nil {
		return nil, err
	}
	if !attachableType(contentType) {
		return nil, ErrInvalidContentType
	}
	if !strings.HasPrefix(objectKey, objectKeyPrefix(diary)) {
		return nil, ErrObjectKeyNotForDiary
	}
	if size < 0 {
		return nil, validationError("size must not be negative")
	}

	attachment := domain.Attachment{
		ID:          uuid.NewString(),
		ObjectKey:   objectKey,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		UploadedAt:  s.now().UTC(),
	}
	if err := s.diaryRepo.AddAttachment(ctx, diaryID, attachment); err != nil {
		// the uploaded object would be orphaned
		if delErr := s.fileStorage.DeleteObject(ctx, objectKey); delErr != nil {
			s.log.Warn("orphaned attachment object", zap.String("objectKey", objectKey), zap.Error(delErr))
		}
		return nil, notFoundAs(err, ErrDiaryNotFound)
	}
	s.log.Info("attachment confirmed", zap.String("diaryId", diaryID.Hex()), zap.String("attachmentId", attachment.ID))
	return &attachment, nil
}

func (s *attachmentService) DownloadURL(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID, attachmentID string) (string, error) {
	diary, err := s.diary(ctx, diaryID)
	if err != nil {
		return "", err
	}
	if err := s.reader(ctx, actor, diary.ClientDNI); err != nil {
		return "", err
	}
	attachment := diary.AttachmentByID(attachmentID)
	if attachment == nil {
		return "", ErrAttachmentNotFound
	}
	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, attachment.ObjectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		s.log.Error("presign download failed", zap.String("objectKey", attachment.ObjectKey), zap.Error(err))
		return "", ErrDownloadURLError
	}
	return url, nil
}
