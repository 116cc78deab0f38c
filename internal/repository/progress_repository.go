package repository

import (
	"context"
	"course_connect_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) WithContext(ctx context.Context) *ProgressRepository {
	return &ProgressRepository{DB: r.DB.WithContext(ctx)}
}

func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx}
}

func (r *ProgressRepository) Find(userID, lessonID uint) (*model.LessonProgress, error) {
	var progress model.LessonProgress
	err := r.DB.Where("user_id = ? AND lesson_id = ?", userID, lessonID).Take(&progress).Error
	return &progress, err
}

// UpsertCompletion 标记课时完成，first_completed_at 只在首次完成时写入
func (r *ProgressRepository) UpsertCompletion(loc *LessonLocation, userID uint, now time.Time) error {
	progress := &model.LessonProgress{
		UserID:           userID,
		LessonID:         loc.LessonID,
		ModuleID:         loc.ModuleID,
		CourseID:         loc.CourseID,
		Completed:        true,
		CompletedAt:      &now,
		FirstCompletedAt: &now,
		LastAccessedAt:   &now,
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"completed":          true,
			"completed_at":       now,
			"first_completed_at": gorm.Expr("COALESCE(first_completed_at, ?)", now),
			"last_accessed_at":   now,
			"module_id":          loc.ModuleID,
			"course_id":          loc.CourseID,
			"updated_at":         now,
		}),
	}).Create(progress).Error
}

// UpsertVideoProgress 只更新观看进度，不改变完成状态
func (r *ProgressRepository) UpsertVideoProgress(loc *LessonLocation, userID uint, pct float64, now time.Time) error {
	progress := &model.LessonProgress{
		UserID:         userID,
		LessonID:       loc.LessonID,
		ModuleID:       loc.ModuleID,
		CourseID:       loc.CourseID,
		VideoProgress:  pct,
		LastAccessedAt: &now,
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"video_progress":   pct,
			"last_accessed_at": now,
			"updated_at":       now,
		}),
	}).Create(progress).Error
}

// CompletedLessonIDs 用户在课程中已完成的课时（仅限当前仍属于该课程的课时）
func (r *ProgressRepository) CompletedLessonIDs(userID, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Table("lesson_progress").
		Joins("JOIN lessons ON lessons.id = lesson_progress.lesson_id").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("lesson_progress.user_id = ? AND modules.course_id = ? AND lesson_progress.completed = ?", userID, courseID, true).
		Pluck("lesson_progress.lesson_id", &ids).Error
	return ids, err
}

func (r *ProgressRepository) ListByCourse(userID, courseID uint) ([]model.LessonProgress, error) {
	var list []model.LessonProgress
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).Find(&list).Error
	return list, err
}
