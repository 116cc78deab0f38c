package service

import (
	"context"
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/logger"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EnrollmentService struct {
	Courses     *repository.CourseRepository
	Enrollments *repository.EnrollmentRepository
	Payments    *repository.PaymentRepository
	Cfg         *config.Config
}

func NewEnrollmentService(
	courses *repository.CourseRepository,
	enrollments *repository.EnrollmentRepository,
	payments *repository.PaymentRepository,
	cfg *config.Config,
) *EnrollmentService {
	return &EnrollmentService{
		Courses:     courses,
		Enrollments: enrollments,
		Payments:    payments,
		Cfg:         cfg,
	}
}

// Enroll 学员报名课程。开启 require_payment 时付费课程必须先有成功的支付
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	course, err := s.Courses.WithContext(ctx).FindByID(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, util.ErrCourseInactive
	}

	_, err = s.Enrollments.WithContext(ctx).Find(userID, courseID)
	if err == nil {
		return nil, util.ErrAlreadyEnrolled
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if s.Cfg.Enrollment.RequirePayment && course.IsPaid() {
		paid, err := s.Payments.WithContext(ctx).HasSuccessful(userID, courseID)
		if err != nil {
			return nil, err
		}
		if !paid {
			return nil, util.ErrPaymentRequired
		}
	}

	enrollment := &model.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Status:   model.EnrollmentNotStarted,
	}
	if err := s.Enrollments.WithContext(ctx).Create(enrollment); err != nil {
		// 并发报名由唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrAlreadyEnrolled
		}
		return nil, err
	}

	logger.Log.Info("User enrolled",
		zap.Uint("userID", userID),
		zap.Uint("courseID", courseID),
	)
	return enrollment, nil
}

// EnrollFromPayment 支付成功后报名，已报名时直接返回现有记录
func (s *EnrollmentService) EnrollFromPayment(tx *gorm.DB, userID, courseID uint) (*model.Enrollment, error) {
	repo := s.Enrollments.WithTx(tx)
	created, err := repo.CreateIfAbsent(&model.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Status:   model.EnrollmentNotStarted,
	})
	if err != nil {
		return nil, err
	}
	if created {
		logger.Log.Info("User enrolled from payment",
			zap.Uint("userID", userID),
			zap.Uint("courseID", courseID),
		)
	}
	return repo.Find(userID, courseID)
}

func (s *EnrollmentService) GetUserEnrollments(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	return s.Enrollments.WithContext(ctx).ListByUser(userID)
}

func (s *EnrollmentService) GetUserEnrollment(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	enrollment, err := s.Enrollments.WithContext(ctx).FindWithCourse(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrEnrollmentNotFound
	}
	return enrollment, err
}

// GetRecentEnrollments 讲师只看到自己课程的报名，管理员看到全部
func (s *EnrollmentService) GetRecentEnrollments(ctx context.Context, user *util.Claims, limit int) ([]model.Enrollment, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var instructorID uint
	if user.Role != model.Admin {
		instructorID = user.UserID
	}
	return s.Enrollments.WithContext(ctx).Recent(instructorID, limit)
}
