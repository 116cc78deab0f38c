package repository

import (
	"context"
	"course_connect_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) WithContext(ctx context.Context) *EnrollmentRepository {
	return &EnrollmentRepository{DB: r.DB.WithContext(ctx)}
}

func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: tx}
}

func (r *EnrollmentRepository) Create(enrollment *model.Enrollment) error {
	return r.DB.Create(enrollment).Error
}

// CreateIfAbsent 已存在时不做任何修改，返回是否新建
func (r *EnrollmentRepository) CreateIfAbsent(enrollment *model.Enrollment) (bool, error) {
	result := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(enrollment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *EnrollmentRepository) Find(userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).Take(&enrollment).Error
	return &enrollment, err
}

func (r *EnrollmentRepository) FindWithCourse(userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.Preload("Course").
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Take(&enrollment).Error
	return &enrollment, err
}

func (r *EnrollmentRepository) ListByUser(userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.DB.Preload("Course").Preload("Course.Instructor").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}

// Recent instructorID 不为 0 时只返回该讲师课程的报名
func (r *EnrollmentRepository) Recent(instructorID uint, limit int) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	query := r.DB.Preload("User").Preload("Course")
	if instructorID != 0 {
		query = query.Where("course_id IN (?)",
			r.DB.Model(&model.Course{}).Select("id").Where("instructor_id = ?", instructorID))
	}
	err := query.Order("created_at DESC").Limit(limit).Find(&enrollments).Error
	return enrollments, err
}

// CountStudents 去重后的学员数
func (r *EnrollmentRepository) CountStudents(instructorID uint) (int64, error) {
	var count int64
	query := r.DB.Model(&model.Enrollment{})
	if instructorID != 0 {
		query = query.Where("course_id IN (?)",
			r.DB.Model(&model.Course{}).Select("id").Where("instructor_id = ?", instructorID))
	}
	err := query.Distinct("user_id").Count(&count).Error
	return count, err
}

func (r *EnrollmentRepository) CountByUserStatus(userID uint, status model.EnrollmentStatus) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&count).Error
	return count, err
}

func (r *EnrollmentRepository) UpdateProgress(id uint, progress int, status model.EnrollmentStatus, lastLessonID *uint) error {
	fields := map[string]interface{}{
		"progress": progress,
		"status":   status,
	}
	if lastLessonID != nil {
		fields["last_lesson_id"] = *lastLessonID
	}
	return r.DB.Model(&model.Enrollment{}).Where("id = ?", id).Updates(fields).Error
}
