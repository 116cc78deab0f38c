package controller

import (
	"course_connect_backend/internal/service"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentController struct {
	PaymentService *service.PaymentService
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{PaymentService: paymentService}
}

// @Summary 发起支付
// @Description 为付费课程创建支付并返回网关支付链接
// @Tags 支付
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 201 {object} util.Response{data=service.InitiateResult}
// @Failure 400 {object} util.Response "免费课程"
// @Router /api/payments/initiate/{courseId} [post]
func (c *PaymentController) Initiate(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	result, err := c.PaymentService.InitiatePayment(ctx.Request.Context(), user, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, result)
}

// @Summary 查询支付结果
// @Tags 支付
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "交易号"
// @Success 200 {object} util.Response{data=service.VerifyResult}
// @Router /api/payments/verify/{transactionId} [get]
func (c *PaymentController) Verify(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}

	result, err := c.PaymentService.VerifyPayment(ctx.Request.Context(), user, ctx.Param("transactionId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 支付网关回调
// @Description 状态以向网关主动查询的结果为准，重复通知只处理一次
// @Tags 支付
// @Accept json
// @Produce json
// @Param body body service.WebhookEvent true "回调内容"
// @Success 200 {object} util.Response
// @Router /api/payments/webhook [post]
func (c *PaymentController) Webhook(ctx *gin.Context) {
	var event service.WebhookEvent
	if err := ctx.ShouldBindJSON(&event); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.PaymentService.HandleWebhook(ctx.Request.Context(), event); err != nil {
		logger.Log.Warn("Webhook handling failed", zap.String("transId", event.TransID), zap.Error(err))
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"received": true})
}

// @Summary 支付记录（管理员）
// @Tags 支付
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=service.PaymentPage}
// @Router /api/payments [get]
func (c *PaymentController) List(ctx *gin.Context) {
	page, err := c.PaymentService.ListPayments(ctx.Request.Context(), util.QueryInt(ctx, "page", 1), util.QueryInt(ctx, "limit", 10))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, page)
}
