package service

import (
	"context"
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"
)

// ProgressResult 一次进度计算的结果
type ProgressResult struct {
	CourseID         uint                   `json:"courseId"`
	Progress         int                    `json:"progress"`
	Status           model.EnrollmentStatus `json:"status"`
	CompletedLessons int                    `json:"completedLessons"`
	TotalLessons     int                    `json:"totalLessons"`
	LastLessonID     *uint                  `json:"lastLessonId"`
}

// LessonProgressView 课时进度，Completed 包含通过测验的情况
type LessonProgressView struct {
	LessonID         uint       `json:"lessonId"`
	Completed        bool       `json:"completed"`
	QuizPassed       bool       `json:"quizPassed"`
	CompletedAt      *time.Time `json:"completedAt"`
	FirstCompletedAt *time.Time `json:"firstCompletedAt"`
	VideoProgress    float64    `json:"videoProgress"`
	LastAccessedAt   *time.Time `json:"lastAccessedAt"`
}

type ProgressService struct {
	Lessons     *repository.LessonRepository
	Enrollments *repository.EnrollmentRepository
	Progress    *repository.ProgressRepository
	Quizzes     *repository.QuizRepository
	Tx          *repository.Transactor
	Cfg         *config.Config
	Now         func() time.Time
}

func NewProgressService(
	lessons *repository.LessonRepository,
	enrollments *repository.EnrollmentRepository,
	progress *repository.ProgressRepository,
	quizzes *repository.QuizRepository,
	tx *repository.Transactor,
	cfg *config.Config,
) *ProgressService {
	return &ProgressService{
		Lessons:     lessons,
		Enrollments: enrollments,
		Progress:    progress,
		Quizzes:     quizzes,
		Tx:          tx,
		Cfg:         cfg,
		Now:         time.Now,
	}
}

// CalculateProgress round(completed / total * 100)，没有课时时为 0
func CalculateProgress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	if completed > total {
		completed = total
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

func statusFor(progress int) model.EnrollmentStatus {
	if progress >= 100 {
		return model.EnrollmentCompleted
	}
	return model.EnrollmentInProgress
}

func (s *ProgressService) locate(tx *gorm.DB, lessonID uint) (*repository.LessonLocation, error) {
	loc, err := s.Lessons.WithTx(tx).Locate(lessonID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLessonNotFound
	}
	return loc, err
}

func (s *ProgressService) enrollment(tx *gorm.DB, userID, courseID uint) (*model.Enrollment, error) {
	enrollment, err := s.Enrollments.WithTx(tx).Find(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotEnrolled
	}
	return enrollment, err
}

// isLessonCompleted 完成记录或任一测验及格都算完成
func (s *ProgressService) isLessonCompleted(tx *gorm.DB, userID, lessonID uint) (bool, error) {
	progress, err := s.Progress.WithTx(tx).Find(userID, lessonID)
	if err == nil && progress.Completed {
		return true, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	return s.Quizzes.WithTx(tx).HasPassingAttempt(userID, lessonID, s.Cfg.Quiz.PassingScore)
}

// checkPrerequisite 同一章节中的上一课时必须已完成
func (s *ProgressService) checkPrerequisite(tx *gorm.DB, userID uint, loc *repository.LessonLocation) error {
	if loc.Order <= 1 {
		return nil
	}
	prev, err := s.Lessons.WithTx(tx).FindPrevious(loc.ModuleID, loc.Order)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	done, err := s.isLessonCompleted(tx, userID, prev.ID)
	if err != nil {
		return err
	}
	if !done {
		return util.ErrPrerequisiteIncomplete
	}
	return nil
}

// recompute 按已完成课时数重新计算报名进度，状态只前进不回退
func (s *ProgressService) recompute(tx *gorm.DB, enrollment *model.Enrollment, lastLessonID *uint) (*ProgressResult, error) {
	total, err := s.Lessons.WithTx(tx).CountByCourse(enrollment.CourseID)
	if err != nil {
		return nil, err
	}
	completedIDs, err := s.Progress.WithTx(tx).CompletedLessonIDs(enrollment.UserID, enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	progress := CalculateProgress(len(completedIDs), int(total))
	status := enrollment.Status.Advance(statusFor(progress))

	if err := s.Enrollments.WithTx(tx).UpdateProgress(enrollment.ID, progress, status, lastLessonID); err != nil {
		return nil, err
	}

	if lastLessonID == nil {
		lastLessonID = enrollment.LastLessonID
	}
	return &ProgressResult{
		CourseID:         enrollment.CourseID,
		Progress:         progress,
		Status:           status,
		CompletedLessons: len(completedIDs),
		TotalLessons:     int(total),
		LastLessonID:     lastLessonID,
	}, nil
}

// RecordLessonCompletion 标记课时完成并更新报名进度
func (s *ProgressService) RecordLessonCompletion(ctx context.Context, userID, lessonID uint) (*ProgressResult, error) {
	var result *ProgressResult
	err := s.Tx.Run(ctx, "", func(tx *gorm.DB) error {
		loc, err := s.locate(tx, lessonID)
		if err != nil {
			return err
		}
		enrollment, err := s.enrollment(tx, userID, loc.CourseID)
		if err != nil {
			return err
		}
		if s.Cfg.Progress.EnforcePrerequisites {
			if err := s.checkPrerequisite(tx, userID, loc); err != nil {
				return err
			}
		}

		if err := s.Progress.WithTx(tx).UpsertCompletion(loc, userID, s.Now()); err != nil {
			return err
		}

		result, err = s.recompute(tx, enrollment, &loc.LessonID)
		return err
	})
	return result, err
}

// UpdateEnrollmentProgress 按课程展开顺序把 lastLessonID 及之前的课时全部记为完成，
// 然后按完成数计算进度，与 RecordLessonCompletion 的结果保持一致
func (s *ProgressService) UpdateEnrollmentProgress(ctx context.Context, userID, courseID, lastLessonID uint) (*ProgressResult, error) {
	var result *ProgressResult
	err := s.Tx.Run(ctx, "", func(tx *gorm.DB) error {
		enrollment, err := s.enrollment(tx, userID, courseID)
		if err != nil {
			return err
		}

		lessons, err := s.Lessons.WithTx(tx).ListCourseLessons(courseID)
		if err != nil {
			return err
		}
		index := -1
		for i, l := range lessons {
			if l.LessonID == lastLessonID {
				index = i
				break
			}
		}
		if index < 0 {
			return util.BadRequestError("LESSON_NOT_IN_COURSE", "lesson does not belong to this course")
		}

		completed, err := s.Progress.WithTx(tx).CompletedLessonIDs(userID, courseID)
		if err != nil {
			return err
		}
		done := make(map[uint]bool, len(completed))
		for _, id := range completed {
			done[id] = true
		}

		now := s.Now()
		for i := 0; i <= index; i++ {
			if done[lessons[i].LessonID] {
				continue
			}
			if err := s.Progress.WithTx(tx).UpsertCompletion(&lessons[i], userID, now); err != nil {
				return err
			}
		}

		result, err = s.recompute(tx, enrollment, &lastLessonID)
		return err
	})
	return result, err
}

// RecomputeEnrollmentProgress 课程结构变化后重新计算进度
func (s *ProgressService) RecomputeEnrollmentProgress(ctx context.Context, userID, courseID uint) (*ProgressResult, error) {
	var result *ProgressResult
	err := s.Tx.Run(ctx, "", func(tx *gorm.DB) error {
		enrollment, err := s.enrollment(tx, userID, courseID)
		if err != nil {
			return err
		}
		result, err = s.recompute(tx, enrollment, nil)
		return err
	})
	return result, err
}

// RecordVideoProgress 记录视频观看百分比，超出范围时截断到 [0, 100]
func (s *ProgressService) RecordVideoProgress(ctx context.Context, userID, lessonID uint, pct float64) (*LessonProgressView, error) {
	pct = math.Max(0, math.Min(100, pct))
	if math.IsNaN(pct) {
		pct = 0
	}

	err := s.Tx.Run(ctx, "", func(tx *gorm.DB) error {
		loc, err := s.locate(tx, lessonID)
		if err != nil {
			return err
		}
		if _, err := s.enrollment(tx, userID, loc.CourseID); err != nil {
			return err
		}
		return s.Progress.WithTx(tx).UpsertVideoProgress(loc, userID, pct, s.Now())
	})
	if err != nil {
		return nil, err
	}
	return s.GetLessonProgress(ctx, userID, lessonID)
}

// GetLessonProgress 没有进度记录时返回未完成的默认值
func (s *ProgressService) GetLessonProgress(ctx context.Context, userID, lessonID uint) (*LessonProgressView, error) {
	db := s.Lessons.DB.WithContext(ctx)
	if _, err := s.locate(db, lessonID); err != nil {
		return nil, err
	}

	view := &LessonProgressView{LessonID: lessonID}
	progress, err := s.Progress.WithTx(db).Find(userID, lessonID)
	switch {
	case err == nil:
		view.Completed = progress.Completed
		view.CompletedAt = progress.CompletedAt
		view.FirstCompletedAt = progress.FirstCompletedAt
		view.VideoProgress = progress.VideoProgress
		view.LastAccessedAt = progress.LastAccessedAt
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	passed, err := s.Quizzes.WithTx(db).HasPassingAttempt(userID, lessonID, s.Cfg.Quiz.PassingScore)
	if err != nil {
		return nil, err
	}
	view.QuizPassed = passed
	view.Completed = view.Completed || passed
	return view, nil
}

// GetCourseLessonProgress 按课程顺序返回每个课时的进度
func (s *ProgressService) GetCourseLessonProgress(ctx context.Context, userID, courseID uint) ([]LessonProgressView, error) {
	db := s.Lessons.DB.WithContext(ctx)
	if _, err := s.enrollment(db, userID, courseID); err != nil {
		return nil, err
	}

	lessons, err := s.Lessons.WithTx(db).ListCourseLessons(courseID)
	if err != nil {
		return nil, err
	}
	records, err := s.Progress.WithTx(db).ListByCourse(userID, courseID)
	if err != nil {
		return nil, err
	}
	passed, err := s.Quizzes.WithTx(db).PassedLessonIDs(userID, courseID, s.Cfg.Quiz.PassingScore)
	if err != nil {
		return nil, err
	}

	byLesson := make(map[uint]model.LessonProgress, len(records))
	for _, r := range records {
		byLesson[r.LessonID] = r
	}
	passedSet := make(map[uint]bool, len(passed))
	for _, id := range passed {
		passedSet[id] = true
	}

	views := make([]LessonProgressView, 0, len(lessons))
	for _, l := range lessons {
		view := LessonProgressView{LessonID: l.LessonID, QuizPassed: passedSet[l.LessonID]}
		if r, ok := byLesson[l.LessonID]; ok {
			view.Completed = r.Completed
			view.CompletedAt = r.CompletedAt
			view.FirstCompletedAt = r.FirstCompletedAt
			view.VideoProgress = r.VideoProgress
			view.LastAccessedAt = r.LastAccessedAt
		}
		view.Completed = view.Completed || view.QuizPassed
		views = append(views, view)
	}
	return views, nil
}

// CheckLessonAccess 学员访问课时前的校验：已报名且上一课时已完成
func (s *ProgressService) CheckLessonAccess(ctx context.Context, userID, lessonID uint) error {
	db := s.Lessons.DB.WithContext(ctx)
	loc, err := s.locate(db, lessonID)
	if err != nil {
		return err
	}
	if _, err := s.enrollment(db, userID, loc.CourseID); err != nil {
		return err
	}
	return s.checkPrerequisite(db, userID, loc)
}
