package service

import (
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/database"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB 每个测试独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig("release"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Ordering: config.OrderingConfig{
			Isolation:       "repeatable_read",
			DeleteIsolation: "serializable",
			TxTimeoutSecs:   5,
			MaxRetries:      1,
		},
		Progress:    config.ProgressConfig{EnforcePrerequisites: true},
		Quiz:        config.QuizConfig{PassingScore: 70},
		Payment:     config.PaymentConfig{PendingTTLMins: 60, WebhookDedupeTTL: 60},
		Certificate: config.CertificateConfig{Issuer: "Course Connect", Folder: "certificates"},
	}
}

// fixture 组装测试用的仓储和基础数据
type fixture struct {
	t   *testing.T
	db  *gorm.DB
	cfg *config.Config
	tx  *repository.Transactor

	users       *repository.UserRepository
	courses     *repository.CourseRepository
	modules     *repository.ModuleRepository
	lessons     *repository.LessonRepository
	enrollments *repository.EnrollmentRepository
	progress    *repository.ProgressRepository
	quizzes     *repository.QuizRepository
	payments    *repository.PaymentRepository
}

func newFixture(t *testing.T) *fixture {
	db := newTestDB(t)
	cfg := testConfig()
	return &fixture{
		t:           t,
		db:          db,
		cfg:         cfg,
		tx:          repository.NewTransactor(db, cfg.Ordering),
		users:       repository.NewUserRepository(db),
		courses:     repository.NewCourseRepository(db),
		modules:     repository.NewModuleRepository(db),
		lessons:     repository.NewLessonRepository(db),
		enrollments: repository.NewEnrollmentRepository(db),
		progress:    repository.NewProgressRepository(db),
		quizzes:     repository.NewQuizRepository(db),
		payments:    repository.NewPaymentRepository(db),
	}
}

func (f *fixture) guard() *CourseGuard {
	return NewCourseGuard(f.courses, f.modules, f.lessons)
}

func (f *fixture) ordering() *OrderingService {
	return NewOrderingService(repository.NewOrderingRepository(f.db), f.tx, f.cfg.Ordering)
}

func (f *fixture) progressService() *ProgressService {
	return NewProgressService(f.lessons, f.enrollments, f.progress, f.quizzes, f.tx, f.cfg)
}

func (f *fixture) enrollmentService() *EnrollmentService {
	return NewEnrollmentService(f.courses, f.enrollments, f.payments, f.cfg)
}

var userSeq atomic.Int64

func (f *fixture) user(role model.UserRole) *model.User {
	f.t.Helper()
	n := userSeq.Add(1)
	u := &model.User{
		FirstName: "Test",
		LastName:  string(role),
		Email:     fmt.Sprintf("%s-%d@example.com", strings.ToLower(string(role)), n),
		Password:  "x",
		Role:      role,
	}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

func claimsFor(u *model.User) *util.Claims {
	return &util.Claims{UserID: u.ID, Role: u.Role, Email: u.Email}
}

func (f *fixture) course(instructorID uint, pricing float64, active bool) *model.Course {
	f.t.Helper()
	c := &model.Course{InstructorID: instructorID, Title: "Course", IsActive: active, Pricing: pricing}
	require.NoError(f.t, f.db.Create(c).Error)
	if !active {
		require.NoError(f.t, f.db.Model(c).Update("is_active", false).Error)
	}
	return c
}

func (f *fixture) module(courseID uint, order int) *model.Module {
	f.t.Helper()
	m := &model.Module{CourseID: courseID, Order: order, Title: fmt.Sprintf("M%d", order)}
	require.NoError(f.t, f.db.Create(m).Error)
	return m
}

func (f *fixture) lesson(moduleID uint, order int) *model.Lesson {
	f.t.Helper()
	l := &model.Lesson{ModuleID: moduleID, Order: order, Title: fmt.Sprintf("L%d", order)}
	require.NoError(f.t, f.db.Create(l).Error)
	return l
}

func (f *fixture) enroll(userID, courseID uint) *model.Enrollment {
	f.t.Helper()
	e := &model.Enrollment{UserID: userID, CourseID: courseID, Status: model.EnrollmentNotStarted}
	require.NoError(f.t, f.db.Create(e).Error)
	return e
}

// orders 按 id 返回父级下每一项的顺序
func (f *fixture) orders(scope repository.OrderScope, parentID uint) map[uint]int {
	f.t.Helper()
	items, err := repository.NewOrderingRepository(f.db).ListItems(f.db, scope, parentID)
	require.NoError(f.t, err)
	out := make(map[uint]int, len(items))
	for _, it := range items {
		out[it.ID] = it.Order
	}
	return out
}

// requireContiguous 顺序必须恰好是 1..n
func (f *fixture) requireContiguous(scope repository.OrderScope, parentID uint) {
	f.t.Helper()
	items, err := repository.NewOrderingRepository(f.db).ListItems(f.db, scope, parentID)
	require.NoError(f.t, err)
	for i, it := range items {
		require.Equal(f.t, i+1, it.Order, "%s %d", scope.Name, it.ID)
	}
}

func intPtr(v int) *int { return &v }
