package controller

import (
	"course_connect_backend/internal/service"
	"course_connect_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ModuleController struct {
	ModuleService *service.ModuleService
}

func NewModuleController(moduleService *service.ModuleService) *ModuleController {
	return &ModuleController{ModuleService: moduleService}
}

// @Summary 课程大纲
// @Description 公开接口，按顺序返回章节和课时标题
// @Tags 章节
// @Produce json
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]service.ModuleView}
// @Router /api/courses/{id}/modules [get]
func (c *ModuleController) ListByCourse(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	modules, err := c.ModuleService.ListByCourse(ctx.Request.Context(), courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, modules)
}

// @Summary 章节最大顺序号
// @Tags 章节
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/modules/highest-order [get]
func (c *ModuleController) HighestOrder(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	order, err := c.ModuleService.HighestOrder(ctx.Request.Context(), courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"highestOrder": order})
}

// @Summary 创建章节
// @Description 不指定 order 时追加到末尾，指定时后续章节顺延
// @Tags 章节
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body service.CreateModuleRequest true "章节信息"
// @Success 201 {object} util.Response{data=model.Module}
// @Router /api/courses/{id}/modules [post]
func (c *ModuleController) CreateModule(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.CreateModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.ModuleService.CreateModule(ctx.Request.Context(), user, courseID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, module)
}

// @Summary 批量调整章节顺序
// @Tags 章节
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Param body body service.ReorderRequest true "新顺序"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/modules/reorder [put]
func (c *ModuleController) ReorderModules(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.ReorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	items, err := c.ModuleService.ReorderModules(ctx.Request.Context(), user, courseID, req.Items)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, items)
}

// @Summary 章节详情
// @Tags 章节
// @Produce json
// @Security BearerAuth
// @Param id path int true "章节ID"
// @Success 200 {object} util.Response{data=model.Module}
// @Router /api/modules/{id} [get]
func (c *ModuleController) GetModule(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	module, err := c.ModuleService.GetModule(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, module)
}

// @Summary 更新章节
// @Description 可同时修改字段和位置
// @Tags 章节
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "章节ID"
// @Param body body service.UpdateModuleRequest true "更新内容"
// @Success 200 {object} util.Response{data=model.Module}
// @Router /api/modules/{id} [put]
func (c *ModuleController) UpdateModule(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.UpdateModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	module, err := c.ModuleService.UpdateModule(ctx.Request.Context(), user, id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, module)
}

// @Summary 删除章节
// @Tags 章节
// @Produce json
// @Security BearerAuth
// @Param id path int true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/modules/{id} [delete]
func (c *ModuleController) DeleteModule(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.ModuleService.DeleteModule(ctx.Request.Context(), user, id); err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"id": id})
}
