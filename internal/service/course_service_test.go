package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/certrender"
	"io"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore 内存媒体存储，记录上传和删除
type memStore struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
}

func newMemStore() *memStore {
	return &memStore{uploaded: map[string][]byte{}}
}

func (m *memStore) UploadMedia(_ context.Context, folder, filename string, reader io.Reader, _ int64, _ string) (*MediaObject, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	key := path.Join(folder, filename)
	m.mu.Lock()
	m.uploaded[key] = data
	m.mu.Unlock()
	return &MediaObject{URL: "mem://" + key, PublicID: key}, nil
}

func (m *memStore) UploadMediaFile(ctx context.Context, folder, filename, _ string, contentType string) (*MediaObject, error) {
	return m.UploadMedia(ctx, folder, filename, strings.NewReader(""), 0, contentType)
}

func (m *memStore) DeleteMedia(_ context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, publicID)
	delete(m.uploaded, publicID)
	return nil
}

type stubRenderer struct{ calls int }

func (r *stubRenderer) Render(d certrender.Data) ([]byte, error) {
	r.calls++
	return []byte("png:" + d.CertificateNumber), nil
}

func (f *fixture) count(m interface{}) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(m).Count(&n).Error)
	return n
}

func TestDeleteCourseCascades(t *testing.T) {
	f := newFixture(t)
	store := newMemStore()
	svc := NewCourseService(f.courses, f.enrollments, f.guard(), NewMediaService(store, t.TempDir()), f.tx)
	ctx := context.Background()

	instructor := f.user(model.Instructor)
	student := f.user(model.Student)
	course := f.course(instructor.ID, 0, true)
	require.NoError(t, f.db.Model(course).Update("image_public_id", "courses/cover.png").Error)
	m := f.module(course.ID, 1)
	lesson := f.lesson(m.ID, 1)
	require.NoError(t, f.db.Model(lesson).Update("video_public_id", "lessons/intro.mp4").Error)
	f.enroll(student.ID, course.ID)
	_, err := f.progressService().RecordLessonCompletion(ctx, student.ID, lesson.ID)
	require.NoError(t, err)

	quiz := &model.Quiz{LessonID: lesson.ID, Title: "Q"}
	require.NoError(t, f.db.Create(quiz).Error)
	require.NoError(t, f.db.Create(&model.QuizAttempt{UserID: student.ID, QuizID: quiz.ID, Score: 90}).Error)

	// 其他讲师无权删除
	other := f.user(model.Instructor)
	assert.ErrorIs(t, svc.DeleteCourse(ctx, claimsFor(other), course.ID), util.ErrPermissionDenied)
	assert.EqualValues(t, 1, f.count(&model.Course{}))

	require.NoError(t, svc.DeleteCourse(ctx, claimsFor(instructor), course.ID))

	assert.Zero(t, f.count(&model.Course{}))
	assert.Zero(t, f.count(&model.Module{}))
	assert.Zero(t, f.count(&model.Lesson{}))
	assert.Zero(t, f.count(&model.Enrollment{}))
	assert.Zero(t, f.count(&model.LessonProgress{}))
	assert.Zero(t, f.count(&model.Quiz{}))
	assert.EqualValues(t, 1, f.count(&model.QuizAttempt{}))
	assert.ElementsMatch(t, []string{"courses/cover.png", "lessons/intro.mp4"}, store.deleted)
}

func TestDeleteLessonRenumbersAndCleansUp(t *testing.T) {
	f := newFixture(t)
	store := newMemStore()
	svc := NewLessonService(f.lessons, f.modules, f.ordering(), f.guard(), NewMediaService(store, t.TempDir()))
	ctx := context.Background()

	instructor := f.user(model.Instructor)
	student := f.user(model.Student)
	course := f.course(instructor.ID, 0, true)
	m := f.module(course.ID, 1)
	l1 := f.lesson(m.ID, 1)
	l2 := f.lesson(m.ID, 2)
	l3 := f.lesson(m.ID, 3)
	require.NoError(t, f.db.Model(l2).Update("video_public_id", "lessons/l2.mp4").Error)
	f.enroll(student.ID, course.ID)
	f.cfg.Progress.EnforcePrerequisites = false
	_, err := f.progressService().RecordLessonCompletion(ctx, student.ID, l2.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLesson(ctx, claimsFor(instructor), l2.ID))

	assert.Equal(t, map[uint]int{l1.ID: 1, l3.ID: 2}, f.orders(repository.LessonOrderScope, m.ID))
	assert.Zero(t, f.count(&model.LessonProgress{}))
	assert.Equal(t, []string{"lessons/l2.mp4"}, store.deleted)
}

func TestCertificateLifecycle(t *testing.T) {
	f := newFixture(t)
	store := newMemStore()
	renderer := &stubRenderer{}
	svc := NewCertificateService(repository.NewCertificateRepository(f.db), f.enrollments, f.courses, f.users, store, renderer, f.cfg)
	ctx := context.Background()

	instructor := f.user(model.Instructor)
	student := f.user(model.Student)
	course := f.course(instructor.ID, 0, true)

	_, err := svc.Generate(ctx, student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	enrollment := f.enroll(student.ID, course.ID)
	_, err = svc.Generate(ctx, student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotCompleted)

	require.NoError(t, f.db.Model(enrollment).Updates(map[string]interface{}{
		"status":   model.EnrollmentCompleted,
		"progress": 100,
	}).Error)

	cert, err := svc.Generate(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.Regexp(t, `^CERT-\d{4}-[0-9A-F]{8}$`, cert.CertificateNumber)
	assert.NotEmpty(t, cert.VerificationCode)
	assert.Contains(t, cert.DownloadURL, "certificates/")
	assert.Len(t, store.uploaded, 1)

	again, err := svc.Generate(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, again.ID)
	assert.Equal(t, 1, renderer.calls)

	verified, err := svc.Verify(ctx, cert.VerificationCode)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, verified.ID)

	_, err = svc.Verify(ctx, "nope")
	assert.ErrorIs(t, err, util.ErrCertificateNotFound)
}
