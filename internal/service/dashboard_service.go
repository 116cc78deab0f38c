package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
)

const dashboardRecentLimit = 5

type DashboardService struct {
	Courses     *repository.CourseRepository
	Enrollments *repository.EnrollmentRepository
	Dashboard   *repository.DashboardRepository
}

func NewDashboardService(
	courses *repository.CourseRepository,
	enrollments *repository.EnrollmentRepository,
	dashboard *repository.DashboardRepository,
) *DashboardService {
	return &DashboardService{
		Courses:     courses,
		Enrollments: enrollments,
		Dashboard:   dashboard,
	}
}

// Dashboard 讲师/管理员看到课程和学员统计，学员看到自己的学习情况
type Dashboard struct {
	Role              model.UserRole     `json:"role"`
	TotalStudents     int64              `json:"totalStudents,omitempty"`
	TotalCourses      int64              `json:"totalCourses"`
	RecentCourses     []model.Course     `json:"recentCourses,omitempty"`
	RecentEnrollments []model.Enrollment `json:"recentEnrollments,omitempty"`
	Enrollments       []model.Enrollment `json:"enrollments,omitempty"`
	CompletedCourses  int64              `json:"completedCourses"`
	InProgressCourses int64              `json:"inProgressCourses"`
}

func (s *DashboardService) GetDashboard(ctx context.Context, user *util.Claims) (*Dashboard, error) {
	if user.Role.IsPrivileged() {
		return s.staffDashboard(ctx, user)
	}
	return s.studentDashboard(ctx, user)
}

func scopeInstructor(user *util.Claims) uint {
	if user.Role == model.Admin {
		return 0
	}
	return user.UserID
}

func (s *DashboardService) staffDashboard(ctx context.Context, user *util.Claims) (*Dashboard, error) {
	instructorID := scopeInstructor(user)

	students, err := s.Enrollments.WithContext(ctx).CountStudents(instructorID)
	if err != nil {
		return nil, err
	}
	courses, err := s.Courses.WithContext(ctx).Count(instructorID)
	if err != nil {
		return nil, err
	}
	recentCourses, err := s.Courses.WithContext(ctx).Recent(instructorID, dashboardRecentLimit)
	if err != nil {
		return nil, err
	}
	recentEnrollments, err := s.Enrollments.WithContext(ctx).Recent(instructorID, dashboardRecentLimit)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Role:              user.Role,
		TotalStudents:     students,
		TotalCourses:      courses,
		RecentCourses:     recentCourses,
		RecentEnrollments: recentEnrollments,
	}, nil
}

func (s *DashboardService) studentDashboard(ctx context.Context, user *util.Claims) (*Dashboard, error) {
	enrollments, err := s.Enrollments.WithContext(ctx).ListByUser(user.UserID)
	if err != nil {
		return nil, err
	}
	completed, err := s.Enrollments.WithContext(ctx).CountByUserStatus(user.UserID, model.EnrollmentCompleted)
	if err != nil {
		return nil, err
	}
	inProgress, err := s.Enrollments.WithContext(ctx).CountByUserStatus(user.UserID, model.EnrollmentInProgress)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Role:              user.Role,
		TotalCourses:      int64(len(enrollments)),
		Enrollments:       enrollments,
		CompletedCourses:  completed,
		InProgressCourses: inProgress,
	}, nil
}

// GetSidebar 侧边栏角标计数
func (s *DashboardService) GetSidebar(ctx context.Context, user *util.Claims) (*repository.SidebarCounts, error) {
	repo := s.Dashboard.WithContext(ctx)
	if user.Role.IsPrivileged() {
		return repo.InstructorSidebar(scopeInstructor(user))
	}
	return repo.StudentSidebar(user.UserID)
}
