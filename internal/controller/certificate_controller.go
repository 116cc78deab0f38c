package controller

import (
	"course_connect_backend/internal/service"
	"course_connect_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

// @Summary 生成证书
// @Description 只有已完成课程的学员可以生成，重复调用返回同一张证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 201 {object} util.Response{data=model.Certificate}
// @Failure 400 {object} util.Response "课程未完成"
// @Router /api/certificates/{courseId} [post]
func (c *CertificateController) Generate(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	cert, err := c.CertificateService.Generate(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, cert)
}

// @Summary 我的证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Router /api/certificates/{courseId} [get]
func (c *CertificateController) GetMine(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	cert, err := c.CertificateService.GetMine(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, cert)
}

// @Summary 我的全部证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Certificate}
// @Router /api/certificates [get]
func (c *CertificateController) ListMine(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	certs, err := c.CertificateService.ListMine(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, certs)
}

// @Summary 校验证书
// @Tags 证书
// @Produce json
// @Param code path string true "校验码"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 404 {object} util.Response
// @Router /api/certificates/verify/{code} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	cert, err := c.CertificateService.Verify(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, cert)
}
