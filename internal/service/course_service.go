package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/logger"
	"errors"
	"mime/multipart"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateCourseRequest struct {
	Title            string  `form:"title" json:"title" binding:"required"`
	ShortDescription string  `form:"shortDescription" json:"shortDescription"`
	Description      string  `form:"description" json:"description"`
	Category         string  `form:"category" json:"category"`
	Pricing          float64 `form:"pricing" json:"pricing" binding:"gte=0"`
	OriginalPrice    float64 `form:"originalPrice" json:"originalPrice" binding:"gte=0"`
	Duration         int     `form:"duration" json:"duration" binding:"gte=0"`
}

type UpdateCourseRequest struct {
	Title            *string  `form:"title" json:"title"`
	ShortDescription *string  `form:"shortDescription" json:"shortDescription"`
	Description      *string  `form:"description" json:"description"`
	Category         *string  `form:"category" json:"category"`
	Pricing          *float64 `form:"pricing" json:"pricing" binding:"omitempty,gte=0"`
	OriginalPrice    *float64 `form:"originalPrice" json:"originalPrice" binding:"omitempty,gte=0"`
	Duration         *int     `form:"duration" json:"duration" binding:"omitempty,gte=0"`
	IsActive         *bool    `form:"isActive" json:"isActive"`
}

// CourseMedia 可选的封面图和介绍视频
type CourseMedia struct {
	Image *multipart.FileHeader
	Video *multipart.FileHeader
}

type LessonView struct {
	ID          uint              `json:"id"`
	ModuleID    uint              `json:"moduleId"`
	Order       int               `json:"order"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Content     string            `json:"content,omitempty"`
	Duration    int               `json:"duration"`
	VideoURL    string            `json:"videoUrl,omitempty"`
	Locked      bool              `json:"locked"`
	Quizzes     []*model.QuizView `json:"quizzes,omitempty"`
}

type ModuleView struct {
	ID          uint         `json:"id"`
	CourseID    uint         `json:"courseId"`
	Order       int          `json:"order"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Duration    int          `json:"duration"`
	Lessons     []LessonView `json:"lessons"`
}

// CourseDetail 课程详情。未报名的学员看不到课时正文和视频
type CourseDetail struct {
	*model.Course
	Modules    []ModuleView      `json:"modules"`
	Enrollment *model.Enrollment `json:"enrollment,omitempty"`
	CanManage  bool              `json:"canManage"`
}

type CourseService struct {
	Courses     *repository.CourseRepository
	Enrollments *repository.EnrollmentRepository
	Guard       *CourseGuard
	Media       *MediaService
	Tx          *repository.Transactor
}

func NewCourseService(
	courses *repository.CourseRepository,
	enrollments *repository.EnrollmentRepository,
	guard *CourseGuard,
	media *MediaService,
	tx *repository.Transactor,
) *CourseService {
	return &CourseService{
		Courses:     courses,
		Enrollments: enrollments,
		Guard:       guard,
		Media:       media,
		Tx:          tx,
	}
}

func (s *CourseService) uploadMedia(ctx context.Context, media CourseMedia) (image *MediaObject, video *VideoUpload, err error) {
	if media.Image != nil {
		if image, err = s.Media.UploadImage(ctx, util.MediaCourseImages, media.Image); err != nil {
			return nil, nil, err
		}
	}
	if media.Video != nil {
		if video, err = s.Media.UploadVideo(ctx, util.MediaCourseVideos, media.Video); err != nil {
			if image != nil {
				deleteMediaQuietly(ctx, s.Media.Store, image.PublicID)
			}
			return nil, nil, err
		}
	}
	return image, video, nil
}

func (s *CourseService) CreateCourse(ctx context.Context, user *util.Claims, req CreateCourseRequest, media CourseMedia) (*model.Course, error) {
	image, video, err := s.uploadMedia(ctx, media)
	if err != nil {
		return nil, err
	}

	course := &model.Course{
		InstructorID:     user.UserID,
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		Category:         req.Category,
		IsActive:         true,
		Pricing:          req.Pricing,
		OriginalPrice:    req.OriginalPrice,
		Duration:         req.Duration,
	}
	if image != nil {
		course.ImageURL, course.ImagePublicID = image.URL, image.PublicID
	}
	if video != nil {
		course.VideoURL, course.VideoPublicID = video.URL, video.PublicID
		if course.Duration == 0 {
			course.Duration = video.DurationMinutes
		}
	}

	if err := s.Courses.WithContext(ctx).Create(course); err != nil {
		deleteMediaQuietly(ctx, s.Media.Store, course.ImagePublicID, course.VideoPublicID)
		return nil, err
	}

	logger.Log.Info("Course created", zap.Uint("courseID", course.ID), zap.Uint("instructorID", user.UserID))
	return course, nil
}

// ListCourses 讲师看到自己的课程，管理员看到全部，学员只看到已上架课程
func (s *CourseService) ListCourses(ctx context.Context, user *util.Claims) ([]model.Course, error) {
	repo := s.Courses.WithContext(ctx)
	switch user.Role {
	case model.Admin:
		return repo.List(0, false)
	case model.Instructor:
		return repo.List(user.UserID, false)
	default:
		return repo.List(0, true)
	}
}

func (s *CourseService) GetCourse(ctx context.Context, user *util.Claims, courseID uint) (*CourseDetail, error) {
	course, err := s.Courses.WithContext(ctx).FindWithContent(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}

	canManage := CanManageCourse(course, user)
	if !course.IsActive && !canManage {
		return nil, util.ErrCourseNotFound
	}

	var enrollment *model.Enrollment
	if user != nil {
		e, err := s.Enrollments.WithContext(ctx).Find(user.UserID, courseID)
		switch {
		case err == nil:
			enrollment = e
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}

	showContent := canManage || enrollment != nil
	showAnswers := user != nil && user.Role.IsPrivileged()
	return &CourseDetail{
		Course:     course,
		Modules:    buildModuleViews(course.Modules, showContent, showAnswers),
		Enrollment: enrollment,
		CanManage:  canManage,
	}, nil
}

func buildModuleViews(modules []model.Module, showContent, showAnswers bool) []ModuleView {
	views := make([]ModuleView, 0, len(modules))
	for _, m := range modules {
		mv := ModuleView{
			ID:          m.ID,
			CourseID:    m.CourseID,
			Order:       m.Order,
			Title:       m.Title,
			Description: m.Description,
			Duration:    m.Duration,
			Lessons:     make([]LessonView, 0, len(m.Lessons)),
		}
		for _, l := range m.Lessons {
			lv := LessonView{
				ID:          l.ID,
				ModuleID:    l.ModuleID,
				Order:       l.Order,
				Title:       l.Title,
				Description: l.Description,
				Duration:    l.Duration,
				Locked:      !showContent,
			}
			if showContent {
				lv.Content = l.Content
				lv.VideoURL = l.VideoURL
				for i := range l.Quizzes {
					lv.Quizzes = append(lv.Quizzes, model.NewQuizView(&l.Quizzes[i], showAnswers))
				}
			}
			mv.Lessons = append(mv.Lessons, lv)
		}
		views = append(views, mv)
	}
	return views
}

// UpdateCourse 替换媒体时删除旧文件
func (s *CourseService) UpdateCourse(ctx context.Context, user *util.Claims, courseID uint, req UpdateCourseRequest, media CourseMedia) (*model.Course, error) {
	course, err := s.Guard.Course(ctx, user, courseID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.ShortDescription != nil {
		fields["short_description"] = *req.ShortDescription
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Category != nil {
		fields["category"] = *req.Category
	}
	if req.Pricing != nil {
		fields["pricing"] = *req.Pricing
	}
	if req.OriginalPrice != nil {
		fields["original_price"] = *req.OriginalPrice
	}
	if req.Duration != nil {
		fields["duration"] = *req.Duration
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}

	image, video, err := s.uploadMedia(ctx, media)
	if err != nil {
		return nil, err
	}
	var stale []string
	if image != nil {
		fields["image_url"], fields["image_public_id"] = image.URL, image.PublicID
		stale = append(stale, course.ImagePublicID)
	}
	if video != nil {
		fields["video_url"], fields["video_public_id"] = video.URL, video.PublicID
		stale = append(stale, course.VideoPublicID)
	}

	if len(fields) > 0 {
		if err := s.Courses.WithContext(ctx).Updates(course, fields); err != nil {
			if image != nil {
				deleteMediaQuietly(ctx, s.Media.Store, image.PublicID)
			}
			if video != nil {
				deleteMediaQuietly(ctx, s.Media.Store, video.PublicID)
			}
			return nil, err
		}
	}
	deleteMediaQuietly(ctx, s.Media.Store, stale...)

	return s.Courses.WithContext(ctx).FindByID(courseID)
}

// DeleteCourse 在一个事务中删除课程及全部下级数据，成功后清理媒体文件
func (s *CourseService) DeleteCourse(ctx context.Context, user *util.Claims, courseID uint) error {
	if _, err := s.Guard.Course(ctx, user, courseID); err != nil {
		return err
	}
	course, err := s.Courses.WithContext(ctx).FindWithContent(courseID)
	if err != nil {
		return err
	}

	media := []string{course.ImagePublicID, course.VideoPublicID}
	for _, m := range course.Modules {
		for _, l := range m.Lessons {
			media = append(media, l.VideoPublicID)
		}
	}

	err = s.Tx.Run(ctx, s.Tx.Cfg.DeleteIsolation, func(tx *gorm.DB) error {
		return s.Courses.WithTx(tx).DeleteCascade(courseID)
	})
	if err != nil {
		return err
	}

	logger.Log.Info("Course deleted", zap.Uint("courseID", courseID), zap.Uint("by", user.UserID))
	deleteMediaQuietly(ctx, s.Media.Store, media...)
	return nil
}
