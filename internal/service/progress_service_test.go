package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// progressCourse 一个学员、一门课程，两个章节共 n 个课时（第一章 1 个，其余在第二章）
func progressCourse(f *fixture, n int) (*model.User, *model.Course, []*model.Lesson) {
	instructor := f.user(model.Instructor)
	student := f.user(model.Student)
	course := f.course(instructor.ID, 0, true)
	m1 := f.module(course.ID, 1)
	m2 := f.module(course.ID, 2)

	lessons := []*model.Lesson{f.lesson(m1.ID, 1)}
	for i := 1; i < n; i++ {
		lessons = append(lessons, f.lesson(m2.ID, i))
	}
	return student, course, lessons
}

func TestCalculateProgress(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 8, 13},
		{5, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateProgress(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}

func TestRecordLessonCompletionScenario(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, course, ls := progressCourse(f, 3)
	f.enroll(student.ID, course.ID)
	ctx := context.Background()

	res, err := s.RecordLessonCompletion(ctx, student.ID, ls[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 33, res.Progress)
	assert.Equal(t, model.EnrollmentInProgress, res.Status)

	res, err = s.RecordLessonCompletion(ctx, student.ID, ls[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 67, res.Progress)
	assert.Equal(t, model.EnrollmentInProgress, res.Status)

	res, err = s.RecordLessonCompletion(ctx, student.ID, ls[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Progress)
	assert.Equal(t, model.EnrollmentCompleted, res.Status)
	require.NotNil(t, res.LastLessonID)
	assert.Equal(t, ls[2].ID, *res.LastLessonID)

	enrollment, err := f.enrollments.Find(student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, enrollment.Progress)
	assert.Equal(t, model.EnrollmentCompleted, enrollment.Status)
}

func TestRecordLessonCompletionSingleLesson(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, course, ls := progressCourse(f, 1)
	f.enroll(student.ID, course.ID)

	res, err := s.RecordLessonCompletion(context.Background(), student.ID, ls[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Progress)
	assert.Equal(t, model.EnrollmentCompleted, res.Status)
}

func TestRecordLessonCompletionTwiceCountsOnce(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, course, ls := progressCourse(f, 3)
	f.enroll(student.ID, course.ID)
	ctx := context.Background()

	first, err := s.RecordLessonCompletion(ctx, student.ID, ls[0].ID)
	require.NoError(t, err)
	second, err := s.RecordLessonCompletion(ctx, student.ID, ls[0].ID)
	require.NoError(t, err)
	assert.Equal(t, first.Progress, second.Progress)

	record, err := f.progress.Find(student.ID, ls[0].ID)
	require.NoError(t, err)
	require.NotNil(t, record.FirstCompletedAt)
	assert.Equal(t, course.ID, record.CourseID)
}

func TestRecordLessonCompletionRequiresEnrollment(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, _, ls := progressCourse(f, 2)

	_, err := s.RecordLessonCompletion(context.Background(), student.ID, ls[0].ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	_, err = f.progress.Find(student.ID, ls[0].ID)
	assert.Error(t, err)
}

func TestRecordLessonCompletionUnknownLesson(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student := f.user(model.Student)

	_, err := s.RecordLessonCompletion(context.Background(), student.ID, 4242)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestPrerequisiteWithinModule(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, course, ls := progressCourse(f, 3)
	f.enroll(student.ID, course.ID)
	ctx := context.Background()

	// ls[2] 是第二章第 2 课，上一课 ls[1] 未完成
	_, err := s.RecordLessonCompletion(ctx, student.ID, ls[2].ID)
	assert.ErrorIs(t, err, util.ErrPrerequisiteIncomplete)
	assert.ErrorIs(t, s.CheckLessonAccess(ctx, student.ID, ls[2].ID), util.ErrPrerequisiteIncomplete)

	// 每章第一课没有前置要求
	assert.NoError(t, s.CheckLessonAccess(ctx, student.ID, ls[1].ID))

	_, err = s.RecordLessonCompletion(ctx, student.ID, ls[1].ID)
	require.NoError(t, err)
	assert.NoError(t, s.CheckLessonAccess(ctx, student.ID, ls[2].ID))
}

func TestPrerequisiteDisabled(t *testing.T) {
	f := newFixture(t)
	f.cfg.Progress.EnforcePrerequisites = false
	s := f.progressService()
	student, course, ls := progressCourse(f, 3)
	f.enroll(student.ID, course.ID)

	res, err := s.RecordLessonCompletion(context.Background(), student.ID, ls[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 33, res.Progress)
}

func TestPassedQuizSatisfiesPrerequisite(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, course, ls := progressCourse(f, 3)
	f.enroll(student.ID, course.ID)
	ctx := context.Background()

	quiz := &model.Quiz{LessonID: ls[1].ID, Title: "Q"}
	require.NoError(t, f.db.Create(quiz).Error)
	require.NoError(t, f.db.Create(&model.QuizAttempt{UserID: student.ID, QuizID: quiz.ID, Score: 50}).Error)
	assert.ErrorIs(t, s.CheckLessonAccess(ctx, student.ID, ls[2].ID), util.ErrPrerequisiteIncomplete)

	require.NoError(t, f.db.Create(&model.QuizAttempt{UserID: student.ID, QuizID: quiz.ID, Score: 80}).Error)
	assert.NoError(t, s.CheckLessonAccess(ctx, student.ID, ls[2].ID))

	view, err := s.GetLessonProgress(ctx, student.ID, ls[1].ID)
	require.NoError(t, err)
	assert.True(t, view.QuizPassed)
	assert.True(t, view.Completed)
}

func TestUpdateEnrollmentProgressBackfills(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, course, ls := progressCourse(f, 3)
	f.enroll(student.ID, course.ID)
	ctx := context.Background()

	res, err := s.UpdateEnrollmentProgress(ctx, student.ID, course.ID, ls[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 67, res.Progress)
	assert.Equal(t, 2, res.CompletedLessons)

	// 与逐课完成得到的结果一致
	res, err = s.RecordLessonCompletion(ctx, student.ID, ls[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Progress)
	assert.Equal(t, model.EnrollmentCompleted, res.Status)
}

func TestUpdateEnrollmentProgressRejectsForeignLesson(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, course, _ := progressCourse(f, 2)
	f.enroll(student.ID, course.ID)
	_, _, otherLessons := progressCourse(f, 1)

	_, err := s.UpdateEnrollmentProgress(context.Background(), student.ID, course.ID, otherLessons[0].ID)
	require.Error(t, err)
	assert.Equal(t, "LESSON_NOT_IN_COURSE", util.AsAppError(err).Code)
}

func TestRecomputeKeepsCompletedStatus(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, course, ls := progressCourse(f, 1)
	f.enroll(student.ID, course.ID)
	ctx := context.Background()

	_, err := s.RecordLessonCompletion(ctx, student.ID, ls[0].ID)
	require.NoError(t, err)

	// 课程新增课时后进度下降，但状态不回退
	f.lesson(ls[0].ModuleID, 2)
	res, err := s.RecomputeEnrollmentProgress(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Progress)
	assert.Equal(t, model.EnrollmentCompleted, res.Status)
	require.NotNil(t, res.LastLessonID)
	assert.Equal(t, ls[0].ID, *res.LastLessonID)
}

func TestRecordVideoProgressClamps(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, course, ls := progressCourse(f, 2)
	f.enroll(student.ID, course.ID)
	ctx := context.Background()

	view, err := s.RecordVideoProgress(ctx, student.ID, ls[0].ID, 140)
	require.NoError(t, err)
	assert.Equal(t, 100.0, view.VideoProgress)
	assert.False(t, view.Completed)

	view, err = s.RecordVideoProgress(ctx, student.ID, ls[0].ID, -5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, view.VideoProgress)

	view, err = s.RecordVideoProgress(ctx, student.ID, ls[0].ID, 42.5)
	require.NoError(t, err)
	assert.Equal(t, 42.5, view.VideoProgress)
}

func TestGetCourseLessonProgress(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	student, course, ls := progressCourse(f, 3)
	f.enroll(student.ID, course.ID)
	ctx := context.Background()

	_, err := s.RecordLessonCompletion(ctx, student.ID, ls[0].ID)
	require.NoError(t, err)

	views, err := s.GetCourseLessonProgress(ctx, student.ID, course.ID)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, ls[0].ID, views[0].LessonID)
	assert.True(t, views[0].Completed)
	assert.False(t, views[1].Completed)
	assert.False(t, views[2].Completed)
}
