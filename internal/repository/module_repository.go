package repository

import (
	"context"
	"course_connect_backend/internal/model"

	"gorm.io/gorm"
)

type ModuleRepository struct {
	DB *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: db}
}

func (r *ModuleRepository) WithContext(ctx context.Context) *ModuleRepository {
	return &ModuleRepository{DB: r.DB.WithContext(ctx)}
}

func (r *ModuleRepository) WithTx(tx *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: tx}
}

func (r *ModuleRepository) Create(module *model.Module) error {
	return r.DB.Create(module).Error
}

func (r *ModuleRepository) FindByID(id uint) (*model.Module, error) {
	var module model.Module
	err := r.DB.First(&module, id).Error
	return &module, err
}

func (r *ModuleRepository) FindWithLessons(id uint) (*model.Module, error) {
	var module model.Module
	err := r.DB.Preload("Lessons", func(db *gorm.DB) *gorm.DB {
		return db.Order("`order` ASC")
	}).First(&module, id).Error
	return &module, err
}

func (r *ModuleRepository) ListByCourse(courseID uint) ([]model.Module, error) {
	var modules []model.Module
	err := r.DB.Where("course_id = ?", courseID).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("`order` ASC")
		}).
		Order("`order` ASC").
		Find(&modules).Error
	return modules, err
}

func (r *ModuleRepository) Updates(id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.DB.Model(&model.Module{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteCascade 删除章节、其课时及课时下的进度和测验
func (r *ModuleRepository) DeleteCascade(moduleID uint) error {
	lessonIDs := r.DB.Model(&model.Lesson{}).Select("id").Where("module_id = ?", moduleID)
	if err := deleteQuizTrees(r.DB, lessonIDs); err != nil {
		return err
	}
	if err := r.DB.Where("lesson_id IN (?)", lessonIDs).Delete(&model.LessonProgress{}).Error; err != nil {
		return err
	}
	if err := r.DB.Where("module_id = ?", moduleID).Delete(&model.Lesson{}).Error; err != nil {
		return err
	}
	return r.DB.Delete(&model.Module{}, moduleID).Error
}
