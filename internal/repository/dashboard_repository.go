package repository

import (
	"context"
	"course_connect_backend/internal/model"

	"gorm.io/gorm"
)

type DashboardRepository struct {
	DB *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) *DashboardRepository {
	return &DashboardRepository{DB: db}
}

func (r *DashboardRepository) WithContext(ctx context.Context) *DashboardRepository {
	return &DashboardRepository{DB: r.DB.WithContext(ctx)}
}

// SidebarCounts 侧边栏角标数量
type SidebarCounts struct {
	Courses     int64 `json:"courses"`
	Enrollments int64 `json:"enrollments"`
	Students    int64 `json:"students"`
	Payments    int64 `json:"payments"`
}

// InstructorSidebar instructorID 为 0 表示管理员视角
func (r *DashboardRepository) InstructorSidebar(instructorID uint) (*SidebarCounts, error) {
	counts := &SidebarCounts{}
	courseIDs := r.DB.Model(&model.Course{}).Select("id")
	if instructorID != 0 {
		courseIDs = courseIDs.Where("instructor_id = ?", instructorID)
	}

	courseQuery := r.DB.Model(&model.Course{})
	if instructorID != 0 {
		courseQuery = courseQuery.Where("instructor_id = ?", instructorID)
	}
	if err := courseQuery.Count(&counts.Courses).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.Enrollment{}).Where("course_id IN (?)", courseIDs).Count(&counts.Enrollments).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.Enrollment{}).Where("course_id IN (?)", courseIDs).Distinct("user_id").Count(&counts.Students).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.Payment{}).Where("course_id IN (?) AND status = ?", courseIDs, model.PaymentSuccessful).Count(&counts.Payments).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

// StudentSidebar 学员视角
func (r *DashboardRepository) StudentSidebar(userID uint) (*SidebarCounts, error) {
	counts := &SidebarCounts{}
	if err := r.DB.Model(&model.Enrollment{}).Where("user_id = ?", userID).Count(&counts.Enrollments).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.Course{}).Where("is_active = ?", true).Count(&counts.Courses).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.Payment{}).Where("user_id = ? AND status = ?", userID, model.PaymentSuccessful).Count(&counts.Payments).Error; err != nil {
		return nil, err
	}
	return counts, nil
}
