package repository

import (
	"context"
	"course_connect_backend/internal/model"

	"gorm.io/gorm"
)

// LessonLocation 课时在课程结构中的位置
type LessonLocation struct {
	LessonID uint
	ModuleID uint
	CourseID uint
	Order    int
}

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) WithContext(ctx context.Context) *LessonRepository {
	return &LessonRepository{DB: r.DB.WithContext(ctx)}
}

func (r *LessonRepository) WithTx(tx *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: tx}
}

func (r *LessonRepository) Create(lesson *model.Lesson) error {
	return r.DB.Create(lesson).Error
}

func (r *LessonRepository) FindByID(id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.First(&lesson, id).Error
	return &lesson, err
}

func (r *LessonRepository) ListByModule(moduleID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("module_id = ?", moduleID).Order("`order` ASC").Find(&lessons).Error
	return lessons, err
}

func (r *LessonRepository) Updates(id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.DB.Model(&model.Lesson{}).Where("id = ?", id).Updates(fields).Error
}

// Locate 查询课时所属章节和课程
func (r *LessonRepository) Locate(lessonID uint) (*LessonLocation, error) {
	var loc LessonLocation
	err := r.DB.Table("lessons").
		Select("lessons.id AS lesson_id, lessons.module_id AS module_id, modules.course_id AS course_id, lessons.`order` AS `order`").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("lessons.id = ?", lessonID).
		Take(&loc).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// FindPrevious 同一章节中顺序在前的一个课时
func (r *LessonRepository) FindPrevious(moduleID uint, order int) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.Where("module_id = ? AND `order` = ?", moduleID, order-1).Take(&lesson).Error
	return &lesson, err
}

// ListCourseLessons 按章节顺序、课时顺序展开课程的全部课时
func (r *LessonRepository) ListCourseLessons(courseID uint) ([]LessonLocation, error) {
	var list []LessonLocation
	err := r.DB.Table("lessons").
		Select("lessons.id AS lesson_id, lessons.module_id AS module_id, modules.course_id AS course_id, lessons.`order` AS `order`").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("modules.course_id = ?", courseID).
		Order("modules.`order` ASC, lessons.`order` ASC").
		Find(&list).Error
	return list, err
}

func (r *LessonRepository) CountByCourse(courseID uint) (int64, error) {
	var count int64
	err := r.DB.Table("lessons").
		Joins("JOIN modules ON modules.id = lessons.module_id").
		Where("modules.course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

// DeleteCascade 删除课时及其进度、测验，作答历史保留
func (r *LessonRepository) DeleteCascade(lessonID uint) error {
	ids := r.DB.Model(&model.Lesson{}).Select("id").Where("id = ?", lessonID)
	if err := deleteQuizTrees(r.DB, ids); err != nil {
		return err
	}
	if err := r.DB.Where("lesson_id = ?", lessonID).Delete(&model.LessonProgress{}).Error; err != nil {
		return err
	}
	return r.DB.Delete(&model.Lesson{}, lessonID).Error
}
