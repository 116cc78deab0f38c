package controller

import (
	"course_connect_backend/internal/service"
	"course_connect_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
	ProgressService   *service.ProgressService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService, progressService *service.ProgressService) *EnrollmentController {
	return &EnrollmentController{
		EnrollmentService: enrollmentService,
		ProgressService:   progressService,
	}
}

type EnrollRequest struct {
	CourseID uint `json:"courseId" binding:"required"`
}

type UpdateProgressRequest struct {
	LastLessonID uint `json:"lastLessonId" binding:"required"`
}

// @Summary 报名课程
// @Tags 报名
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body EnrollRequest true "课程"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 409 {object} util.Response "已报名"
// @Failure 402 {object} util.Response "需要先支付"
// @Router /api/enrollments [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req EnrollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	enrollment, err := c.EnrollmentService.Enroll(ctx.Request.Context(), user.UserID, req.CourseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, enrollment)
}

// @Summary 我的报名
// @Tags 报名
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Enrollment}
// @Router /api/enrollments [get]
func (c *EnrollmentController) ListMine(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	enrollments, err := c.EnrollmentService.GetUserEnrollments(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, enrollments)
}

// @Summary 课程报名详情
// @Tags 报名
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Enrollment}
// @Router /api/enrollments/{courseId} [get]
func (c *EnrollmentController) GetMine(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	enrollment, err := c.EnrollmentService.GetUserEnrollment(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, enrollment)
}

// @Summary 按最后学习的课时更新进度
// @Description 该课时及之前的课时都记为完成
// @Tags 报名
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Param body body UpdateProgressRequest true "最后学习的课时"
// @Success 200 {object} util.Response{data=service.ProgressResult}
// @Router /api/enrollments/{courseId}/progress [put]
func (c *EnrollmentController) UpdateProgress(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	var req UpdateProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ProgressService.UpdateEnrollmentProgress(ctx.Request.Context(), user.UserID, courseID, req.LastLessonID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 最近报名
// @Description 讲师返回自己课程的报名，管理员返回全部
// @Tags 报名
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量" default(10)
// @Success 200 {object} util.Response{data=[]model.Enrollment}
// @Router /api/enrollments/recent [get]
func (c *EnrollmentController) Recent(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	enrollments, err := c.EnrollmentService.GetRecentEnrollments(ctx.Request.Context(), user, util.QueryInt(ctx, "limit", 10))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, enrollments)
}
