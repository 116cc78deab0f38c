package controller

import (
	"bytes"
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/middleware"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/service"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/database"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	router     *gin.Engine
	admin      *model.User
	instructor *model.User
	student    *model.User
	course     *model.Course
}

// asUser 测试中跳过 JWT，直接注入身份
func asUser(c *gin.Context) {
	var claims util.Claims
	if err := json.Unmarshal([]byte(c.GetHeader("X-Test-User")), &claims); err == nil && claims.UserID != 0 {
		c.Set("user", &claims)
	}
	c.Next()
}

func newTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), database.GormConfig("release"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Ordering: config.OrderingConfig{TxTimeoutSecs: 5, MaxRetries: 1},
		Progress: config.ProgressConfig{EnforcePrerequisites: true},
	}
	tx := repository.NewTransactor(db, cfg.Ordering)
	courses := repository.NewCourseRepository(db)
	modules := repository.NewModuleRepository(db)
	lessons := repository.NewLessonRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	guard := service.NewCourseGuard(courses, modules, lessons)
	ordering := service.NewOrderingService(repository.NewOrderingRepository(db), tx, cfg.Ordering)

	enrollmentSvc := service.NewEnrollmentService(courses, enrollments, repository.NewPaymentRepository(db), cfg)
	progressSvc := service.NewProgressService(lessons, enrollments, repository.NewProgressRepository(db),
		repository.NewQuizRepository(db), tx, cfg)
	moduleSvc := service.NewModuleService(modules, courses, ordering, guard, nil)

	enrollmentCtl := NewEnrollmentController(enrollmentSvc, progressSvc)
	moduleCtl := NewModuleController(moduleSvc)
	userCtl := NewUserController(service.NewUserService(repository.NewUserRepository(db)))

	r := gin.New()
	api := r.Group("/api", asUser)
	api.POST("/enrollments", enrollmentCtl.Enroll)
	api.PUT("/enrollments/:courseId/progress", enrollmentCtl.UpdateProgress)
	api.GET("/courses/:id/modules", moduleCtl.ListByCourse)
	api.PUT("/courses/:id/modules/reorder", moduleCtl.ReorderModules)
	api.PUT("/profile", userCtl.UpdateProfile)
	admin := api.Group("", middleware.RoleMiddleware(model.Admin))
	admin.GET("/admin/users", userCtl.ListUsers)
	admin.GET("/admin/users/:id", userCtl.GetUser)
	admin.PUT("/admin/users/:id", userCtl.UpdateUser)

	env := &testEnv{db: db, router: r}
	env.admin = &model.User{Email: "admin@example.com", Password: "x", Role: model.Admin}
	require.NoError(t, db.Create(env.admin).Error)
	env.instructor = &model.User{Email: "instructor@example.com", Password: "x", Role: model.Instructor}
	env.student = &model.User{Email: "student@example.com", Password: "x", Role: model.Student}
	require.NoError(t, db.Create(env.instructor).Error)
	require.NoError(t, db.Create(env.student).Error)
	env.course = &model.Course{InstructorID: env.instructor.ID, Title: "Go", IsActive: true}
	require.NoError(t, db.Create(env.course).Error)
	return env
}

func (e *testEnv) do(t *testing.T, user *model.User, method, path string, body any) (*httptest.ResponseRecorder, util.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		identity, _ := json.Marshal(util.Claims{UserID: user.ID, Role: user.Role, Email: user.Email})
		req.Header.Set("X-Test-User", string(identity))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp util.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestEnrollEndpoint(t *testing.T) {
	env := newTestEnv(t)
	body := EnrollRequest{CourseID: env.course.ID}

	w, _ := env.do(t, env.student, http.MethodPost, "/api/enrollments", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, resp := env.do(t, env.student, http.MethodPost, "/api/enrollments", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_ENROLLED", resp.Reason)

	w, _ = env.do(t, env.student, http.MethodPost, "/api/enrollments", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, nil, http.MethodPost, "/api/enrollments", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp = env.do(t, env.student, http.MethodPost, "/api/enrollments", EnrollRequest{CourseID: 999})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", resp.Reason)
}

func TestUpdateProgressEndpoint(t *testing.T) {
	env := newTestEnv(t)
	m := &model.Module{CourseID: env.course.ID, Order: 1, Title: "M"}
	require.NoError(t, env.db.Create(m).Error)
	l1 := &model.Lesson{ModuleID: m.ID, Order: 1, Title: "L1"}
	l2 := &model.Lesson{ModuleID: m.ID, Order: 2, Title: "L2"}
	require.NoError(t, env.db.Create(l1).Error)
	require.NoError(t, env.db.Create(l2).Error)

	path := fmt.Sprintf("/api/enrollments/%d/progress", env.course.ID)
	w, resp := env.do(t, env.student, http.MethodPut, path, UpdateProgressRequest{LastLessonID: l1.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NOT_ENROLLED", resp.Reason)

	w, _ = env.do(t, env.student, http.MethodPost, "/api/enrollments", EnrollRequest{CourseID: env.course.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp = env.do(t, env.student, http.MethodPut, path, UpdateProgressRequest{LastLessonID: l1.ID})
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 50, data["progress"])

	w, _ = env.do(t, env.student, http.MethodPut, "/api/enrollments/abc/progress", UpdateProgressRequest{LastLessonID: l1.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReorderModulesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	var ids []uint
	for i := 1; i <= 3; i++ {
		m := &model.Module{CourseID: env.course.ID, Order: i, Title: fmt.Sprintf("M%d", i)}
		require.NoError(t, env.db.Create(m).Error)
		ids = append(ids, m.ID)
	}
	path := fmt.Sprintf("/api/courses/%d/modules/reorder", env.course.ID)
	body := service.ReorderRequest{Items: []service.OrderUpdate{
		{ID: ids[0], Order: 3},
		{ID: ids[2], Order: 1},
	}}

	w, _ := env.do(t, env.student, http.MethodPut, path, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = env.do(t, env.instructor, http.MethodPut, path, body)
	require.Equal(t, http.StatusOK, w.Code)

	var modules []model.Module
	require.NoError(t, env.db.Order("`order`").Find(&modules).Error)
	require.Len(t, modules, 3)
	assert.Equal(t, []uint{ids[2], ids[1], ids[0]}, []uint{modules[0].ID, modules[1].ID, modules[2].ID})

	w, resp := env.do(t, env.instructor, http.MethodPut, path, service.ReorderRequest{Items: []service.OrderUpdate{{ID: ids[0], Order: 7}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "OUT_OF_RANGE", resp.Reason)
}

// decodeData 把响应中的 data 转成具体类型
func decodeData(t *testing.T, resp util.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestAdminListUsersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	other := &model.User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "x", Role: model.Student}
	require.NoError(t, env.db.Create(other).Error)

	w, _ := env.do(t, env.student, http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = env.do(t, env.instructor, http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp := env.do(t, env.admin, http.MethodGet, "/api/admin/users?role=STUDENT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page service.UserPage
	decodeData(t, resp, &page)
	assert.EqualValues(t, 2, page.Pagination.Total)
	for _, u := range page.Data {
		assert.Equal(t, model.Student, u.Role)
	}
	assert.NotContains(t, w.Body.String(), "password")

	w, resp = env.do(t, env.admin, http.MethodGet, "/api/admin/users?search=lovelace&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = service.UserPage{}
	decodeData(t, resp, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, other.ID, page.Data[0].ID)

	w, _ = env.do(t, env.admin, http.MethodGet, "/api/admin/users?role=ROOT", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = env.do(t, env.admin, http.MethodGet, "/api/admin/users/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", resp.Reason)
}

func TestAdminUpdateUserEndpoint(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/api/admin/users/%d", env.student.ID)

	w, _ := env.do(t, env.student, http.MethodPut, path, map[string]any{"role": "ADMIN"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = env.do(t, env.admin, http.MethodPut, path, map[string]any{"role": "ROOT"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := env.do(t, env.admin, http.MethodPut, path, map[string]any{"role": "INSTRUCTOR", "firstName": "Grace"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated model.User
	decodeData(t, resp, &updated)
	assert.Equal(t, model.Instructor, updated.Role)
	assert.Equal(t, "Grace", updated.FirstName)

	var stored model.User
	require.NoError(t, env.db.First(&stored, env.student.ID).Error)
	assert.Equal(t, model.Instructor, stored.Role)
	assert.Equal(t, "student@example.com", stored.Email)

	w, resp = env.do(t, env.admin, http.MethodPut, path, map[string]any{"email": "INSTRUCTOR@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", resp.Reason)
}

func TestUpdateProfileIgnoresRole(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, env.student, http.MethodPut, "/api/profile", map[string]any{"lastName": "Hopper", "role": "ADMIN"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated model.User
	decodeData(t, resp, &updated)
	assert.Equal(t, "Hopper", updated.LastName)
	assert.Equal(t, model.Student, updated.Role)

	w, _ = env.do(t, nil, http.MethodPut, "/api/profile", map[string]any{"lastName": "X"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
