package videos

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"video-learning-backend/internal/domain"
	"video-learning-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	MaxVideoSize = 500 * 1024 * 1024

	KindVideo     = "video"
	KindThumbnail = "thumbnail"

	defaultCategory   = "その他"
	defaultLevel      = "初級"
	defaultInstructor = "Unknown"
)

var (
	ErrInvalidInput  = errors.New("Invalid input")
	ErrVideoNotFound = errors.New("Video not found")
	ErrForbidden     = errors.New("Video belongs to another user")
	ErrStorage       = errors.New("Storage error")
	ErrNotConfigured = errors.New("Object storage is not configured")
)

// ObjectStore is where video and thumbnail files live.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Service manages the video catalog and its stored files. Storage may be nil
// when no bucket is configured; catalog reads still work.
type Service struct {
	DB      *gorm.DB
	Storage ObjectStore
	Now     func() time.Time
}

type UploadRequest struct {
	UserID      string `json:"userId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Kind        string `json:"kind"`
}

type UploadResult struct {
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
	Key       string `json:"key"`
}

// PrepareUpload validates the file and returns a presigned URL for a direct
// browser upload under videos/<user>/ or thumbnails/<user>/.
func (s *Service) PrepareUpload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if !validation.IsValidUserID(req.UserID) || strings.TrimSpace(req.FileName) == "" {
		return nil, fmt.Errorf("%w: userId and fileName are required", ErrInvalidInput)
	}
	kind := req.Kind
	if kind == "" {
		kind = KindVideo
	}
	var prefix string
	switch kind {
	case KindVideo:
		if !validation.IsVideoContentType(req.ContentType) {
			return nil, fmt.Errorf("%w: Invalid video file type", ErrInvalidInput)
		}
		if req.Size <= 0 || req.Size > MaxVideoSize {
			return nil, fmt.Errorf("%w: Video file size must be less than 500MB", ErrInvalidInput)
		}
		prefix = "videos"
	case KindThumbnail:
		if !validation.IsImageContentType(req.ContentType) {
			return nil, fmt.Errorf("%w: Invalid thumbnail file type", ErrInvalidInput)
		}
		if req.Size < 0 {
			return nil, fmt.Errorf("%w: invalid size", ErrInvalidInput)
		}
		prefix = "thumbnails"
	default:
		return nil, fmt.Errorf("%w: kind must be video or thumbnail", ErrInvalidInput)
	}
	if s.Storage == nil {
		return nil, ErrNotConfigured
	}

	key := fmt.Sprintf("%s/%s/%d_%s", prefix, strings.ToLower(req.UserID), s.now().UnixMilli(), validation.SanitizeFileName(req.FileName))
	uploadURL, err := s.Storage.PresignPut(ctx, key, req.ContentType, req.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &UploadResult{UploadURL: uploadURL, PublicURL: s.Storage.PublicURL(key), Key: key}, nil
}

type RegisterInput struct {
	UserID       string `json:"userId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Level        string `json:"level"`
	Price        int64  `json:"price"`
	Instructor   string `json:"instructorName"`
	Duration     int    `json:"duration"`
	VideoKey     string `json:"videoKey"`
	ThumbnailKey string `json:"thumbnailKey"`
}

// Register records an uploaded video in the catalog. Object keys must sit
// under the caller's own prefixes.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.Video, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || !validation.IsValidUserID(in.UserID) || in.VideoKey == "" {
		return nil, fmt.Errorf("%w: title, userId and videoKey are required", ErrInvalidInput)
	}
	userID := strings.ToLower(in.UserID)
	if !strings.HasPrefix(in.VideoKey, "videos/"+userID+"/") {
		return nil, fmt.Errorf("%w: videoKey is not owned by this user", ErrInvalidInput)
	}
	if in.ThumbnailKey != "" && !strings.HasPrefix(in.ThumbnailKey, "thumbnails/"+userID+"/") {
		return nil, fmt.Errorf("%w: thumbnailKey is not owned by this user", ErrInvalidInput)
	}
	if in.Price < 0 || in.Duration < 0 {
		return nil, fmt.Errorf("%w: price and duration must not be negative", ErrInvalidInput)
	}
	if s.Storage == nil {
		return nil, ErrNotConfigured
	}

	v := &domain.Video{
		Title:       title,
		Description: in.Description,
		Price:       in.Price,
		Instructor:  orDefault(in.Instructor, defaultInstructor),
		Category:    orDefault(in.Category, defaultCategory),
		Level:       orDefault(in.Level, defaultLevel),
		Duration:    in.Duration,
		VideoKey:    in.VideoKey,
		VideoURL:    s.Storage.PublicURL(in.VideoKey),
		UserID:      userID,
	}
	if in.ThumbnailKey != "" {
		key, u := in.ThumbnailKey, s.Storage.PublicURL(in.ThumbnailKey)
		v.ThumbnailKey, v.ThumbnailURL = &key, &u
	} else {
		u := placeholderThumbnail(title)
		v.ThumbnailURL = &u
	}
	if err := s.DB.WithContext(ctx).Create(v).Error; err != nil {
		return nil, fmt.Errorf("%w: create video: %v", ErrStorage, err)
	}
	return v, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Video, error) {
	var v domain.Video
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("%w: find video: %v", ErrStorage, err)
	}
	return &v, nil
}

// Delete removes the catalog row, then the stored files. File deletion is
// best effort: failures are logged and do not fail the call.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if strings.TrimSpace(id) == "" || !validation.IsValidUserID(userID) {
		return fmt.Errorf("%w: videoId and userId are required", ErrInvalidInput)
	}
	v, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !strings.EqualFold(v.UserID, userID) {
		return ErrForbidden
	}
	if err := s.DB.WithContext(ctx).Where("id = ?", v.ID).Delete(&domain.Video{}).Error; err != nil {
		return fmt.Errorf("%w: delete video: %v", ErrStorage, err)
	}

	if s.Storage == nil {
		return nil
	}
	keys := []string{v.VideoKey}
	if v.ThumbnailKey != nil {
		keys = append(keys, *v.ThumbnailKey)
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.Storage.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("video_id", v.ID).Str("key", key).Msg("videos: stored file not deleted")
		}
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func placeholderThumbnail(title string) string {
	return "https://via.placeholder.com/320x180?text=" + url.QueryEscape(title)
}
