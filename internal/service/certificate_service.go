package service

import (
	"bytes"
	"context"
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/certrender"
	"course_connect_backend/pkg/logger"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CertificateRenderer 证书图片生成
type CertificateRenderer interface {
	Render(d certrender.Data) ([]byte, error)
}

type CertificateService struct {
	Certificates *repository.CertificateRepository
	Enrollments  *repository.EnrollmentRepository
	Courses      *repository.CourseRepository
	Users        *repository.UserRepository
	Media        MediaStore
	Renderer     CertificateRenderer
	Cfg          *config.Config
	Now          func() time.Time
}

func NewCertificateService(
	certificates *repository.CertificateRepository,
	enrollments *repository.EnrollmentRepository,
	courses *repository.CourseRepository,
	users *repository.UserRepository,
	media MediaStore,
	renderer CertificateRenderer,
	cfg *config.Config,
) *CertificateService {
	return &CertificateService{
		Certificates: certificates,
		Enrollments:  enrollments,
		Courses:      courses,
		Users:        users,
		Media:        media,
		Renderer:     renderer,
		Cfg:          cfg,
		Now:          time.Now,
	}
}

func certificateNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("CERT-%d-%s", now.Year(), strings.ToUpper(id[:8]))
}

// Generate 为已完成课程的学员生成证书，重复调用返回同一张证书
func (s *CertificateService) Generate(ctx context.Context, userID, courseID uint) (*model.Certificate, error) {
	if cert, err := s.Certificates.WithContext(ctx).Find(userID, courseID); err == nil {
		return cert, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	enrollment, err := s.Enrollments.WithContext(ctx).Find(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotEnrolled
	}
	if err != nil {
		return nil, err
	}
	if enrollment.Status != model.EnrollmentCompleted {
		return nil, util.ErrCourseNotCompleted
	}

	course, err := s.Courses.WithContext(ctx).FindByID(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	student, err := s.Users.WithContext(ctx).FindByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	instructorName := ""
	if instructor, err := s.Users.WithContext(ctx).FindByID(course.InstructorID); err == nil {
		instructorName = instructor.FullName()
	}

	now := s.Now()
	number := certificateNumber(now)
	image, err := s.Renderer.Render(certrender.Data{
		StudentName:       student.FullName(),
		CourseTitle:       course.Title,
		InstructorName:    instructorName,
		DurationMinutes:   course.Duration,
		CertificateNumber: number,
		IssuedAt:          now,
		Issuer:            s.Cfg.Certificate.Issuer,
	})
	if err != nil {
		return nil, err
	}

	folder := path.Join(s.Cfg.Certificate.Folder, fmt.Sprint(userID), fmt.Sprint(courseID))
	media, err := s.Media.UploadMedia(ctx, folder, number+".png", bytes.NewReader(image), int64(len(image)), util.MimePNG)
	if err != nil {
		return nil, err
	}

	cert := &model.Certificate{
		UserID:            userID,
		CourseID:          courseID,
		CertificateNumber: number,
		VerificationCode:  strings.ReplaceAll(uuid.NewString(), "-", ""),
		DownloadURL:       media.URL,
		StorageKey:        media.PublicID,
		AwardedAt:         now,
	}
	if err := s.Certificates.WithContext(ctx).Create(cert); err != nil {
		deleteMediaQuietly(ctx, s.Media, media.PublicID)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发生成时以先写入的为准
			return s.Certificates.WithContext(ctx).Find(userID, courseID)
		}
		return nil, err
	}

	logger.Log.Info("Certificate issued",
		zap.Uint("userID", userID),
		zap.Uint("courseID", courseID),
		zap.String("number", number),
	)
	cert.Course = course
	return cert, nil
}

func (s *CertificateService) GetMine(ctx context.Context, userID, courseID uint) (*model.Certificate, error) {
	cert, err := s.Certificates.WithContext(ctx).Find(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCertificateNotFound
	}
	return cert, err
}

func (s *CertificateService) ListMine(ctx context.Context, userID uint) ([]model.Certificate, error) {
	return s.Certificates.WithContext(ctx).ListByUser(userID)
}

// Verify 公开校验证书
func (s *CertificateService) Verify(ctx context.Context, code string) (*model.Certificate, error) {
	if code == "" {
		return nil, util.ErrCertificateNotFound
	}
	cert, err := s.Certificates.WithContext(ctx).FindByVerificationCode(code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCertificateNotFound
	}
	return cert, err
}
