package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/logger"
	"errors"
	"mime/multipart"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateLessonRequest struct {
	Title       string `form:"title" json:"title" binding:"required"`
	Description string `form:"description" json:"description"`
	Content     string `form:"content" json:"content"`
	Duration    int    `form:"duration" json:"duration" binding:"gte=0"`
	Order       *int   `form:"order" json:"order"`
}

type UpdateLessonRequest struct {
	Title       *string `form:"title" json:"title"`
	Description *string `form:"description" json:"description"`
	Content     *string `form:"content" json:"content"`
	Duration    *int    `form:"duration" json:"duration" binding:"omitempty,gte=0"`
	Order       *int    `form:"order" json:"order"`
}

type LessonService struct {
	Lessons  *repository.LessonRepository
	Modules  *repository.ModuleRepository
	Ordering *OrderingService
	Guard    *CourseGuard
	Media    *MediaService
}

func NewLessonService(
	lessons *repository.LessonRepository,
	modules *repository.ModuleRepository,
	ordering *OrderingService,
	guard *CourseGuard,
	media *MediaService,
) *LessonService {
	return &LessonService{
		Lessons:  lessons,
		Modules:  modules,
		Ordering: ordering,
		Guard:    guard,
		Media:    media,
	}
}

func (s *LessonService) GetLesson(ctx context.Context, lessonID uint) (*model.Lesson, error) {
	lesson, err := s.Lessons.WithContext(ctx).FindByID(lessonID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLessonNotFound
	}
	return lesson, err
}

func (s *LessonService) ListByModule(ctx context.Context, moduleID uint) ([]model.Lesson, error) {
	if _, err := s.Modules.WithContext(ctx).FindByID(moduleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	return s.Lessons.WithContext(ctx).ListByModule(moduleID)
}

func (s *LessonService) HighestOrder(ctx context.Context, moduleID uint) (int, error) {
	return s.Ordering.HighestOrder(ctx, repository.LessonOrderScope, moduleID)
}

func (s *LessonService) uploadVideo(ctx context.Context, video *multipart.FileHeader) (*VideoUpload, error) {
	if video == nil {
		return nil, nil
	}
	return s.Media.UploadVideo(ctx, util.MediaLessonVideos, video)
}

// CreateLesson 可选上传视频，未填写时长时使用视频时长
func (s *LessonService) CreateLesson(ctx context.Context, user *util.Claims, moduleID uint, req CreateLessonRequest, video *multipart.FileHeader) (*model.Lesson, error) {
	if _, err := s.Guard.Module(ctx, user, moduleID); err != nil {
		return nil, err
	}

	upload, err := s.uploadVideo(ctx, video)
	if err != nil {
		return nil, err
	}

	lesson := &model.Lesson{
		ModuleID:    moduleID,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Duration:    req.Duration,
	}
	if upload != nil {
		lesson.VideoURL, lesson.VideoPublicID = upload.URL, upload.PublicID
		if lesson.Duration == 0 {
			lesson.Duration = upload.DurationMinutes
		}
	}

	_, err = s.Ordering.Insert(ctx, repository.LessonOrderScope, moduleID, req.Order, func(tx *gorm.DB, order int) error {
		lesson.ID = 0
		lesson.Order = order
		return s.Lessons.WithTx(tx).Create(lesson)
	})
	if err != nil {
		deleteMediaQuietly(ctx, s.Media.Store, lesson.VideoPublicID)
		return nil, err
	}
	return lesson, nil
}

func (s *LessonService) UpdateLesson(ctx context.Context, user *util.Claims, lessonID uint, req UpdateLessonRequest, video *multipart.FileHeader) (*model.Lesson, error) {
	if _, err := s.Guard.Lesson(ctx, user, lessonID); err != nil {
		return nil, err
	}
	current, err := s.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Content != nil {
		fields["content"] = *req.Content
	}
	if req.Duration != nil {
		fields["duration"] = *req.Duration
	}

	upload, err := s.uploadVideo(ctx, video)
	if err != nil {
		return nil, err
	}
	if upload != nil {
		fields["video_url"], fields["video_public_id"] = upload.URL, upload.PublicID
		if req.Duration == nil && upload.DurationMinutes > 0 {
			fields["duration"] = upload.DurationMinutes
		}
	}

	if req.Order != nil {
		err = s.Ordering.Move(ctx, repository.LessonOrderScope, lessonID, *req.Order, func(tx *gorm.DB, _ repository.OrderedItem) error {
			return s.Lessons.WithTx(tx).Updates(lessonID, fields)
		})
	} else {
		err = s.Lessons.WithContext(ctx).Updates(lessonID, fields)
	}
	if err != nil {
		if upload != nil {
			deleteMediaQuietly(ctx, s.Media.Store, upload.PublicID)
		}
		return nil, err
	}

	if upload != nil {
		deleteMediaQuietly(ctx, s.Media.Store, current.VideoPublicID)
	}
	return s.GetLesson(ctx, lessonID)
}

// ReorderLessons 批量调整章节下课时的顺序
func (s *LessonService) ReorderLessons(ctx context.Context, user *util.Claims, moduleID uint, updates []OrderUpdate) ([]repository.OrderedItem, error) {
	if _, err := s.Guard.Module(ctx, user, moduleID); err != nil {
		return nil, err
	}
	return s.Ordering.BulkReorder(ctx, repository.LessonOrderScope, moduleID, updates)
}

// DeleteLesson 删除课时及其进度和测验，同章节后续课时前移
func (s *LessonService) DeleteLesson(ctx context.Context, user *util.Claims, lessonID uint) error {
	if _, err := s.Guard.Lesson(ctx, user, lessonID); err != nil {
		return err
	}

	var videoID string
	_, err := s.Ordering.Delete(ctx, repository.LessonOrderScope, lessonID, func(tx *gorm.DB, _ repository.OrderedItem) error {
		lesson, err := s.Lessons.WithTx(tx).FindByID(lessonID)
		if err != nil {
			return err
		}
		videoID = lesson.VideoPublicID
		return s.Lessons.WithTx(tx).DeleteCascade(lessonID)
	})
	if err != nil {
		return err
	}

	logger.Log.Info("Lesson deleted", zap.Uint("lessonID", lessonID))
	deleteMediaQuietly(ctx, s.Media.Store, videoID)
	return nil
}
