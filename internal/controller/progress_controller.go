package controller

import (
	"course_connect_backend/internal/service"
	"course_connect_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

type VideoProgressRequest struct {
	Progress float64 `json:"progress"`
}

// @Summary 完成课时
// @Description 需要已报名且上一课时已完成
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=service.ProgressResult}
// @Failure 400 {object} util.Response "未报名或前置课时未完成"
// @Router /api/lessons/{id}/complete [post]
func (c *ProgressController) CompleteLesson(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.ProgressService.RecordLessonCompletion(ctx.Request.Context(), user.UserID, lessonID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 记录视频观看进度
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课时ID"
// @Param body body VideoProgressRequest true "观看百分比"
// @Success 200 {object} util.Response{data=service.LessonProgressView}
// @Router /api/lessons/{id}/video-progress [put]
func (c *ProgressController) UpdateVideoProgress(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req VideoProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	view, err := c.ProgressService.RecordVideoProgress(ctx.Request.Context(), user.UserID, lessonID, req.Progress)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, view)
}

// @Summary 课时进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonProgressView}
// @Router /api/lessons/{id}/progress [get]
func (c *ProgressController) GetLessonProgress(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	view, err := c.ProgressService.GetLessonProgress(ctx.Request.Context(), user.UserID, lessonID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, view)
}

// @Summary 检查课时访问权限
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/lessons/{id}/access [get]
func (c *ProgressController) CheckAccess(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.ProgressService.CheckLessonAccess(ctx.Request.Context(), user.UserID, lessonID); err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"lessonId": lessonID, "accessible": true})
}

// @Summary 重新计算课程进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ProgressResult}
// @Router /api/courses/{id}/progress/recompute [post]
func (c *ProgressController) Recompute(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.ProgressService.RecomputeEnrollmentProgress(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 课程内各课时进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]service.LessonProgressView}
// @Router /api/courses/{id}/lesson-progress [get]
func (c *ProgressController) CourseLessonProgress(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	views, err := c.ProgressService.GetCourseLessonProgress(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, views)
}
