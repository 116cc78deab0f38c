package controller

import (
	"course_connect_backend/internal/service"
	"course_connect_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LessonController struct {
	LessonService *service.LessonService
}

func NewLessonController(lessonService *service.LessonService) *LessonController {
	return &LessonController{LessonService: lessonService}
}

// @Summary 章节下的课时
// @Tags 课时
// @Produce json
// @Security BearerAuth
// @Param id path int true "章节ID"
// @Success 200 {object} util.Response{data=[]model.Lesson}
// @Router /api/modules/{id}/lessons [get]
func (c *LessonController) ListByModule(ctx *gin.Context) {
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	lessons, err := c.LessonService.ListByModule(ctx.Request.Context(), moduleID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, lessons)
}

// @Summary 课时最大顺序号
// @Tags 课时
// @Produce json
// @Security BearerAuth
// @Param id path int true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/modules/{id}/lessons/highest-order [get]
func (c *LessonController) HighestOrder(ctx *gin.Context) {
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	order, err := c.LessonService.HighestOrder(ctx.Request.Context(), moduleID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"highestOrder": order})
}

// @Summary 创建课时
// @Description 可上传视频(video)，未填写时长时使用视频时长
// @Tags 课时
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "章节ID"
// @Param title formData string true "课时标题"
// @Param order formData int false "位置"
// @Param video formData file false "课时视频"
// @Success 201 {object} util.Response{data=model.Lesson}
// @Router /api/modules/{id}/lessons [post]
func (c *LessonController) CreateLesson(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.CreateLessonRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.LessonService.CreateLesson(ctx.Request.Context(), user, moduleID, req, optionalFile(ctx, "video"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, lesson)
}

// @Summary 批量调整课时顺序
// @Tags 课时
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "章节ID"
// @Param body body service.ReorderRequest true "新顺序"
// @Success 200 {object} util.Response
// @Router /api/modules/{id}/lessons/reorder [put]
func (c *LessonController) ReorderLessons(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.ReorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	items, err := c.LessonService.ReorderLessons(ctx.Request.Context(), user, moduleID, req.Items)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, items)
}

// @Summary 课时详情
// @Tags 课时
// @Produce json
// @Security BearerAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Router /api/lessons/{id} [get]
func (c *LessonController) GetLesson(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	lesson, err := c.LessonService.GetLesson(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, lesson)
}

// @Summary 更新课时
// @Tags 课时
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Router /api/lessons/{id} [put]
func (c *LessonController) UpdateLesson(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.UpdateLessonRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lesson, err := c.LessonService.UpdateLesson(ctx.Request.Context(), user, id, req, optionalFile(ctx, "video"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, lesson)
}

// @Summary 删除课时
// @Tags 课时
// @Produce json
// @Security BearerAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response
// @Router /api/lessons/{id} [delete]
func (c *LessonController) DeleteLesson(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.LessonService.DeleteLesson(ctx.Request.Context(), user, id); err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"id": id})
}
