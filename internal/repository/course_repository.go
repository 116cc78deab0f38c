package repository

import (
	"context"
	"course_connect_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithContext(ctx context.Context) *CourseRepository {
	return &CourseRepository{DB: r.DB.WithContext(ctx)}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	return &course, err
}

// FindWithContent 加载课程及按顺序排列的章节、课时和测验
func (r *CourseRepository) FindWithContent(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.
		Preload("Instructor").
		Preload("Modules", func(db *gorm.DB) *gorm.DB {
			return db.Order("`order` ASC")
		}).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("`order` ASC")
		}).
		Preload("Modules.Lessons.Quizzes", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Modules.Lessons.Quizzes.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Modules.Lessons.Quizzes.Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&course, id).Error
	return &course, err
}

// List instructorID 为 0 时返回全部课程
func (r *CourseRepository) List(instructorID uint, activeOnly bool) ([]model.Course, error) {
	var courses []model.Course
	query := r.DB.Model(&model.Course{}).Preload("Instructor")
	if instructorID != 0 {
		query = query.Where("instructor_id = ?", instructorID)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("created_at DESC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) Recent(instructorID uint, limit int) ([]model.Course, error) {
	var courses []model.Course
	query := r.DB.Model(&model.Course{})
	if instructorID != 0 {
		query = query.Where("instructor_id = ?", instructorID)
	}
	err := query.Order("created_at DESC").Limit(limit).Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) Count(instructorID uint) (int64, error) {
	var count int64
	query := r.DB.Model(&model.Course{})
	if instructorID != 0 {
		query = query.Where("instructor_id = ?", instructorID)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *CourseRepository) Updates(course *model.Course, fields map[string]interface{}) error {
	return r.DB.Model(course).Updates(fields).Error
}

// DeleteCascade 删除课程及其全部下级数据，调用方负责提供事务
func (r *CourseRepository) DeleteCascade(courseID uint) error {
	moduleIDs := r.DB.Model(&model.Module{}).Select("id").Where("course_id = ?", courseID)
	lessonIDs := r.DB.Model(&model.Lesson{}).Select("id").Where("module_id IN (?)", moduleIDs)

	if err := deleteQuizTrees(r.DB, lessonIDs); err != nil {
		return err
	}

	steps := []struct {
		model interface{}
		query string
		args  []interface{}
	}{
		{&model.LessonProgress{}, "course_id = ?", []interface{}{courseID}},
		{&model.Lesson{}, "module_id IN (?)", []interface{}{moduleIDs}},
		{&model.Module{}, "course_id = ?", []interface{}{courseID}},
		{&model.Enrollment{}, "course_id = ?", []interface{}{courseID}},
		{&model.Certificate{}, "course_id = ?", []interface{}{courseID}},
	}
	for _, step := range steps {
		if err := r.DB.Where(step.query, step.args...).Delete(step.model).Error; err != nil {
			return err
		}
	}

	return r.DB.Delete(&model.Course{}, courseID).Error
}
