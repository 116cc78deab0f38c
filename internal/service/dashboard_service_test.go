package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dashboardSetup struct {
	svc         *DashboardService
	admin       *model.User
	instructorA *model.User
	instructorB *model.User
	student     *model.User
	coursesA    []*model.Course
	courseB     *model.Course
}

// newDashboardSetup 讲师 A 有两门课（一门下架），讲师 B 有一门；
// 两名学员报名 A 的课程，其中一名另报 B 的课程并已完成和付款
func newDashboardSetup(t *testing.T) *dashboardSetup {
	f := newFixture(t)
	s := &dashboardSetup{
		svc:         NewDashboardService(f.courses, f.enrollments, repository.NewDashboardRepository(f.db)),
		admin:       f.user(model.Admin),
		instructorA: f.user(model.Instructor),
		instructorB: f.user(model.Instructor),
		student:     f.user(model.Student),
	}
	other := f.user(model.Student)
	s.coursesA = []*model.Course{f.course(s.instructorA.ID, 0, true), f.course(s.instructorA.ID, 0, false)}
	s.courseB = f.course(s.instructorB.ID, 30, true)

	inProgress := f.enroll(s.student.ID, s.coursesA[0].ID)
	require.NoError(t, f.db.Model(inProgress).Update("status", model.EnrollmentInProgress).Error)
	f.enroll(other.ID, s.coursesA[0].ID)
	completed := f.enroll(s.student.ID, s.courseB.ID)
	require.NoError(t, f.db.Model(completed).Update("status", model.EnrollmentCompleted).Error)

	require.NoError(t, f.payments.Create(&model.Payment{
		UserID:        s.student.ID,
		CourseID:      s.courseB.ID,
		TransactionID: "tx_dashboard",
		Amount:        30,
		Status:        model.PaymentSuccessful,
	}))
	return s
}

func TestInstructorDashboardIsScopedToOwnCourses(t *testing.T) {
	s := newDashboardSetup(t)
	ctx := context.Background()

	d, err := s.svc.GetDashboard(ctx, claimsFor(s.instructorA))
	require.NoError(t, err)
	assert.Equal(t, model.Instructor, d.Role)
	assert.EqualValues(t, 2, d.TotalCourses)
	assert.EqualValues(t, 2, d.TotalStudents)
	require.Len(t, d.RecentCourses, 2)
	for _, c := range d.RecentCourses {
		assert.Equal(t, s.instructorA.ID, c.InstructorID)
	}
	require.Len(t, d.RecentEnrollments, 2)
	for _, e := range d.RecentEnrollments {
		assert.Equal(t, s.coursesA[0].ID, e.CourseID)
		assert.NotNil(t, e.User)
	}

	d, err = s.svc.GetDashboard(ctx, claimsFor(s.instructorB))
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.TotalCourses)
	assert.EqualValues(t, 1, d.TotalStudents)
	require.Len(t, d.RecentEnrollments, 1)
	assert.Equal(t, s.student.ID, d.RecentEnrollments[0].UserID)
}

func TestAdminDashboardSeesAllCourses(t *testing.T) {
	s := newDashboardSetup(t)

	d, err := s.svc.GetDashboard(context.Background(), claimsFor(s.admin))
	require.NoError(t, err)
	assert.Equal(t, model.Admin, d.Role)
	assert.EqualValues(t, 3, d.TotalCourses)
	assert.EqualValues(t, 2, d.TotalStudents)
	assert.Len(t, d.RecentCourses, 3)
	assert.Len(t, d.RecentEnrollments, 3)
	assert.Empty(t, d.Enrollments)
}

func TestStudentDashboard(t *testing.T) {
	s := newDashboardSetup(t)

	d, err := s.svc.GetDashboard(context.Background(), claimsFor(s.student))
	require.NoError(t, err)
	assert.Equal(t, model.Student, d.Role)
	assert.EqualValues(t, 2, d.TotalCourses)
	assert.EqualValues(t, 1, d.CompletedCourses)
	assert.EqualValues(t, 1, d.InProgressCourses)
	require.Len(t, d.Enrollments, 2)
	for _, e := range d.Enrollments {
		require.NotNil(t, e.Course)
		assert.NotNil(t, e.Course.Instructor)
	}
	assert.Zero(t, d.TotalStudents)
	assert.Empty(t, d.RecentCourses)
}

func TestSidebarCountsByRole(t *testing.T) {
	s := newDashboardSetup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		user *model.User
		want repository.SidebarCounts
	}{
		{"instructor A", s.instructorA, repository.SidebarCounts{Courses: 2, Enrollments: 2, Students: 2, Payments: 0}},
		{"instructor B", s.instructorB, repository.SidebarCounts{Courses: 1, Enrollments: 1, Students: 1, Payments: 1}},
		{"admin", s.admin, repository.SidebarCounts{Courses: 3, Enrollments: 3, Students: 2, Payments: 1}},
		{"student", s.student, repository.SidebarCounts{Courses: 2, Enrollments: 2, Payments: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.svc.GetSidebar(ctx, claimsFor(tc.user))
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)
		})
	}
}
