package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/logger"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateModuleRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Duration    int    `json:"duration" binding:"gte=0"`
	Order       *int   `json:"order"`
}

type UpdateModuleRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Duration    *int    `json:"duration" binding:"omitempty,gte=0"`
	Order       *int    `json:"order"`
}

type ReorderRequest struct {
	Items []OrderUpdate `json:"items" binding:"required,min=1,dive"`
}

type ModuleService struct {
	Modules  *repository.ModuleRepository
	Courses  *repository.CourseRepository
	Ordering *OrderingService
	Guard    *CourseGuard
	Media    MediaStore
}

func NewModuleService(
	modules *repository.ModuleRepository,
	courses *repository.CourseRepository,
	ordering *OrderingService,
	guard *CourseGuard,
	media MediaStore,
) *ModuleService {
	return &ModuleService{
		Modules:  modules,
		Courses:  courses,
		Ordering: ordering,
		Guard:    guard,
		Media:    media,
	}
}

func (s *ModuleService) GetModule(ctx context.Context, moduleID uint) (*model.Module, error) {
	module, err := s.Modules.WithContext(ctx).FindWithLessons(moduleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrModuleNotFound
	}
	return module, err
}

// ListByCourse 公开的课程大纲，只返回结构不返回课时正文
func (s *ModuleService) ListByCourse(ctx context.Context, courseID uint) ([]ModuleView, error) {
	if _, err := s.Courses.WithContext(ctx).FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	modules, err := s.Modules.WithContext(ctx).ListByCourse(courseID)
	if err != nil {
		return nil, err
	}
	return buildModuleViews(modules, false, false), nil
}

func (s *ModuleService) HighestOrder(ctx context.Context, courseID uint) (int, error) {
	return s.Ordering.HighestOrder(ctx, repository.ModuleOrderScope, courseID)
}

func (s *ModuleService) CreateModule(ctx context.Context, user *util.Claims, courseID uint, req CreateModuleRequest) (*model.Module, error) {
	if _, err := s.Guard.Course(ctx, user, courseID); err != nil {
		return nil, err
	}

	module := &model.Module{
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
		Duration:    req.Duration,
	}
	_, err := s.Ordering.Insert(ctx, repository.ModuleOrderScope, courseID, req.Order, func(tx *gorm.DB, order int) error {
		module.Order = order
		return s.Modules.WithTx(tx).Create(module)
	})
	if err != nil {
		return nil, err
	}
	return module, nil
}

// UpdateModule 字段更新和位置调整在同一事务内完成
func (s *ModuleService) UpdateModule(ctx context.Context, user *util.Claims, moduleID uint, req UpdateModuleRequest) (*model.Module, error) {
	module, err := s.Guard.Module(ctx, user, moduleID)
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
	if req.Duration != nil {
		fields["duration"] = *req.Duration
	}

	if req.Order != nil {
		err = s.Ordering.Move(ctx, repository.ModuleOrderScope, moduleID, *req.Order, func(tx *gorm.DB, _ repository.OrderedItem) error {
			return s.Modules.WithTx(tx).Updates(moduleID, fields)
		})
	} else {
		err = s.Modules.WithContext(ctx).Updates(module.ID, fields)
	}
	if err != nil {
		return nil, err
	}
	return s.GetModule(ctx, moduleID)
}

// ReorderModules 批量调整课程下章节的顺序
func (s *ModuleService) ReorderModules(ctx context.Context, user *util.Claims, courseID uint, updates []OrderUpdate) ([]repository.OrderedItem, error) {
	if _, err := s.Guard.Course(ctx, user, courseID); err != nil {
		return nil, err
	}
	return s.Ordering.BulkReorder(ctx, repository.ModuleOrderScope, courseID, updates)
}

// DeleteModule 删除章节及其课时，后续章节顺序前移
func (s *ModuleService) DeleteModule(ctx context.Context, user *util.Claims, moduleID uint) error {
	if _, err := s.Guard.Module(ctx, user, moduleID); err != nil {
		return err
	}

	var media []string
	_, err := s.Ordering.Delete(ctx, repository.ModuleOrderScope, moduleID, func(tx *gorm.DB, _ repository.OrderedItem) error {
		module, err := s.Modules.WithTx(tx).FindWithLessons(moduleID)
		if err != nil {
			return err
		}
		for _, l := range module.Lessons {
			media = append(media, l.VideoPublicID)
		}
		return s.Modules.WithTx(tx).DeleteCascade(moduleID)
	})
	if err != nil {
		return err
	}

	logger.Log.Info("Module deleted", zap.Uint("moduleID", moduleID))
	deleteMediaQuietly(ctx, s.Media, media...)
	return nil
}
