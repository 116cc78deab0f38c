package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	s := f.enrollmentService()
	instructor := f.user(model.Instructor)
	student := f.user(model.Student)
	course := f.course(instructor.ID, 0, true)
	ctx := context.Background()

	enrollment, err := s.Enroll(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentNotStarted, enrollment.Status)
	assert.Equal(t, 0, enrollment.Progress)

	_, err = s.Enroll(ctx, student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrAlreadyEnrolled)
	assert.Equal(t, util.KindConflict, util.AsAppError(err).Kind)

	var count int64
	require.NoError(t, f.db.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", student.ID, course.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnrollRejections(t *testing.T) {
	f := newFixture(t)
	s := f.enrollmentService()
	instructor := f.user(model.Instructor)
	student := f.user(model.Student)
	inactive := f.course(instructor.ID, 0, false)
	ctx := context.Background()

	_, err := s.Enroll(ctx, student.ID, inactive.ID)
	assert.ErrorIs(t, err, util.ErrCourseInactive)

	_, err = s.Enroll(ctx, student.ID, 9999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestEnrollPaymentGate(t *testing.T) {
	f := newFixture(t)
	s := f.enrollmentService()
	instructor := f.user(model.Instructor)
	student := f.user(model.Student)
	paid := f.course(instructor.ID, 49, true)
	free := f.course(instructor.ID, 0, true)
	ctx := context.Background()

	// 默认关闭付费校验
	_, err := s.Enroll(ctx, student.ID, paid.ID)
	require.NoError(t, err)

	other := f.user(model.Student)
	f.cfg.Enrollment.RequirePayment = true

	_, err = s.Enroll(ctx, other.ID, paid.ID)
	assert.ErrorIs(t, err, util.ErrPaymentRequired)

	_, err = s.Enroll(ctx, other.ID, free.ID)
	require.NoError(t, err)

	require.NoError(t, f.payments.Create(&model.Payment{
		UserID:        other.ID,
		CourseID:      paid.ID,
		TransactionID: "tx_paid",
		Amount:        49,
		Status:        model.PaymentSuccessful,
	}))
	_, err = s.Enroll(ctx, other.ID, paid.ID)
	assert.NoError(t, err)
}

func TestEnrollFromPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	s := f.enrollmentService()
	instructor := f.user(model.Instructor)
	student := f.user(model.Student)
	course := f.course(instructor.ID, 20, true)

	first, err := s.EnrollFromPayment(f.db, student.ID, course.ID)
	require.NoError(t, err)
	second, err := s.EnrollFromPayment(f.db, student.ID, course.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.EnrollmentNotStarted, second.Status)
}

func TestRecentEnrollmentsScopedToInstructor(t *testing.T) {
	f := newFixture(t)
	s := f.enrollmentService()
	mine := f.user(model.Instructor)
	theirs := f.user(model.Instructor)
	admin := f.user(model.Admin)
	student := f.user(model.Student)
	c1 := f.course(mine.ID, 0, true)
	c2 := f.course(theirs.ID, 0, true)
	f.enroll(student.ID, c1.ID)
	f.enroll(student.ID, c2.ID)
	ctx := context.Background()

	list, err := s.GetRecentEnrollments(ctx, claimsFor(mine), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c1.ID, list[0].CourseID)

	list, err = s.GetRecentEnrollments(ctx, claimsFor(admin), 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestGetUserEnrollment(t *testing.T) {
	f := newFixture(t)
	s := f.enrollmentService()
	instructor := f.user(model.Instructor)
	student := f.user(model.Student)
	course := f.course(instructor.ID, 0, true)
	ctx := context.Background()

	_, err := s.GetUserEnrollment(ctx, student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrEnrollmentNotFound)

	f.enroll(student.ID, course.ID)
	enrollment, err := s.GetUserEnrollment(ctx, student.ID, course.ID)
	require.NoError(t, err)
	require.NotNil(t, enrollment.Course)
	assert.Equal(t, course.ID, enrollment.Course.ID)
}
