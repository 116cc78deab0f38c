package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

// CanManageCourse 管理员或课程讲师本人
func CanManageCourse(course *model.Course, user *util.Claims) bool {
	if user == nil {
		return false
	}
	return user.Role == model.Admin || (user.Role == model.Instructor && course.InstructorID == user.UserID)
}

// CourseGuard 校验调用者对课程内容的管理权限
type CourseGuard struct {
	Courses *repository.CourseRepository
	Modules *repository.ModuleRepository
	Lessons *repository.LessonRepository
}

func NewCourseGuard(courses *repository.CourseRepository, modules *repository.ModuleRepository, lessons *repository.LessonRepository) *CourseGuard {
	return &CourseGuard{Courses: courses, Modules: modules, Lessons: lessons}
}

func (g *CourseGuard) Course(ctx context.Context, user *util.Claims, courseID uint) (*model.Course, error) {
	course, err := g.Courses.WithContext(ctx).FindByID(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !CanManageCourse(course, user) {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

func (g *CourseGuard) Module(ctx context.Context, user *util.Claims, moduleID uint) (*model.Module, error) {
	module, err := g.Modules.WithContext(ctx).FindByID(moduleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrModuleNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := g.Course(ctx, user, module.CourseID); err != nil {
		return nil, err
	}
	return module, nil
}

func (g *CourseGuard) Lesson(ctx context.Context, user *util.Claims, lessonID uint) (*repository.LessonLocation, error) {
	loc, err := g.Lessons.WithContext(ctx).Locate(lessonID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := g.Course(ctx, user, loc.CourseID); err != nil {
		return nil, err
	}
	return loc, nil
}
