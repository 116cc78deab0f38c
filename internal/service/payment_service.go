package service

import (
	"context"
	"course_connect_backend/internal/config"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"course_connect_backend/pkg/logger"
	"course_connect_backend/pkg/monitoring"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	webhookKeyPrefix   = "payment:webhook:"
	reconcileBatchSize = 100
)

// WebhookEvent 网关回调，只用于定位交易，状态以主动查询结果为准
type WebhookEvent struct {
	TransID    string `json:"transId" binding:"required"`
	Status     string `json:"status"`
	ExternalID string `json:"externalId"`
}

type InitiateResult struct {
	TransactionID string              `json:"transactionId"`
	Link          string              `json:"link"`
	Status        model.PaymentStatus `json:"status"`
	Amount        float64             `json:"amount"`
}

type VerifyResult struct {
	Payment  *model.Payment `json:"payment"`
	Enrolled bool           `json:"enrolled"`
}

type Pagination struct {
	Total           int64 `json:"total"`
	Page            int   `json:"page"`
	Limit           int   `json:"limit"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

type PaymentPage struct {
	Data       []model.Payment `json:"data"`
	Pagination Pagination      `json:"pagination"`
}

// WebhookDeduper 在去重窗口内占用回调 key
type WebhookDeduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisDeduper struct {
	client *redis.Client
}

func (d redisDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, key, 1, ttl).Result()
}

func (d redisDeduper) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, key).Err()
}

type PaymentService struct {
	Payments    *repository.PaymentRepository
	Courses     *repository.CourseRepository
	Enrollments *repository.EnrollmentRepository
	Enrollment  *EnrollmentService
	Gateway     PaymentGateway
	Dedupe      WebhookDeduper
	Tx          *repository.Transactor
	Cfg         *config.Config
	Now         func() time.Time
}

func NewPaymentService(
	payments *repository.PaymentRepository,
	courses *repository.CourseRepository,
	enrollments *repository.EnrollmentRepository,
	enrollment *EnrollmentService,
	gateway PaymentGateway,
	redisClient *redis.Client,
	tx *repository.Transactor,
	cfg *config.Config,
) *PaymentService {
	s := &PaymentService{
		Payments:    payments,
		Courses:     courses,
		Enrollments: enrollments,
		Enrollment:  enrollment,
		Gateway:     gateway,
		Tx:          tx,
		Cfg:         cfg,
		Now:         time.Now,
	}
	// 未配置 Redis 时不去重，由 applyStatus 保证幂等
	if redisClient != nil {
		s.Dedupe = redisDeduper{client: redisClient}
	}
	return s
}

// gatewayStatus 网关状态映射为本地状态，未知状态视为仍在处理中
func gatewayStatus(status string) model.PaymentStatus {
	switch strings.ToUpper(status) {
	case "SUCCESSFUL":
		return model.PaymentSuccessful
	case "FAILED":
		return model.PaymentFailed
	case "EXPIRED":
		return model.PaymentExpired
	default:
		return model.PaymentPending
	}
}

// InitiatePayment 为付费课程创建待支付记录并向网关发起支付
func (s *PaymentService) InitiatePayment(ctx context.Context, user *util.Claims, courseID uint) (*InitiateResult, error) {
	course, err := s.Courses.WithContext(ctx).FindByID(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !course.IsPaid() {
		return nil, util.ErrFreeCourse
	}
	if !course.IsActive {
		return nil, util.ErrCourseInactive
	}
	if _, err := s.Enrollments.WithContext(ctx).Find(user.UserID, courseID); err == nil {
		return nil, util.ErrAlreadyEnrolled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	payment := &model.Payment{
		UserID:        user.UserID,
		CourseID:      courseID,
		TransactionID: "tx_" + uuid.NewString(),
		Amount:        course.Pricing,
		Status:        model.PaymentPending,
	}
	if err := s.Payments.WithContext(ctx).Create(payment); err != nil {
		return nil, err
	}

	resp, err := s.Gateway.Initiate(ctx, InitiateRequest{
		Amount:      int(math.Round(course.Pricing)),
		Email:       user.Email,
		UserID:      strconv.FormatUint(uint64(user.UserID), 10),
		ExternalID:  payment.TransactionID,
		RedirectURL: strings.TrimRight(s.Cfg.Payment.RedirectURL, "/") + fmt.Sprintf("/courses/%d", courseID),
		Message:     "Payment for course " + course.Title,
	})
	if err != nil {
		logger.Log.Error("Payment gateway initiate failed",
			zap.String("transactionID", payment.TransactionID),
			zap.Error(err),
		)
		if markErr := s.Payments.WithContext(ctx).UpdateStatus(payment, model.PaymentFailed, nil); markErr != nil {
			logger.Log.Error("Failed to mark payment as failed", zap.Error(markErr))
		}
		monitoring.PaymentEvents.WithLabelValues("initiate", string(model.PaymentFailed)).Inc()
		return nil, &util.AppError{Kind: util.KindInternal, Code: "GATEWAY_ERROR", Message: "payment gateway unavailable", Err: err}
	}

	if resp.TransID != "" {
		if err := s.Payments.WithContext(ctx).SetGatewayRef(payment.ID, resp.TransID); err != nil {
			return nil, err
		}
	}

	monitoring.PaymentEvents.WithLabelValues("initiate", string(model.PaymentPending)).Inc()
	return &InitiateResult{
		TransactionID: payment.TransactionID,
		Link:          resp.Link,
		Status:        payment.Status,
		Amount:        payment.Amount,
	}, nil
}

// applyStatus 在事务中锁定支付记录并应用网关状态。
// 已成功的支付不会被降级，重复的通知不产生新的历史记录
func (s *PaymentService) applyStatus(ctx context.Context, source string, gs *GatewayStatus) (*model.Payment, error) {
	next := gatewayStatus(gs.Status)
	var result *model.Payment

	err := s.Tx.Run(ctx, "", func(tx *gorm.DB) error {
		payment, err := s.Payments.WithTx(tx).FindForUpdate(gs.TransID, gs.ExternalID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrPaymentNotFound
		}
		if err != nil {
			return err
		}
		result = payment

		if !next.IsFinal() || payment.Status == next {
			return nil
		}
		if payment.Status == model.PaymentSuccessful {
			logger.Log.Warn("Ignoring status change for successful payment",
				zap.String("transactionID", payment.TransactionID),
				zap.String("status", string(next)),
			)
			return nil
		}

		var payload datatypes.JSON
		if len(gs.Raw) > 0 {
			payload = datatypes.JSON(gs.Raw)
		}
		if err := s.Payments.WithTx(tx).UpdateStatus(payment, next, payload); err != nil {
			return err
		}
		if next == model.PaymentSuccessful {
			if _, err := s.Enrollment.EnrollFromPayment(tx, payment.UserID, payment.CourseID); err != nil {
				return err
			}
		}

		monitoring.PaymentEvents.WithLabelValues(source, string(next)).Inc()
		logger.Log.Info("Payment status updated",
			zap.String("source", source),
			zap.String("transactionID", payment.TransactionID),
			zap.String("status", string(next)),
		)
		return nil
	})
	return result, err
}

// HandleWebhook 处理网关回调。同一交易同一状态在去重窗口内只处理一次
func (s *PaymentService) HandleWebhook(ctx context.Context, event WebhookEvent) error {
	if event.TransID == "" {
		return util.BadRequestError("MISSING_TRANSACTION", "transId is required")
	}

	key := webhookKeyPrefix + event.TransID + ":" + strings.ToUpper(event.Status)
	claimed := false
	if s.Dedupe != nil {
		ttl := time.Duration(s.Cfg.Payment.WebhookDedupeTTL) * time.Second
		first, err := s.Dedupe.Claim(ctx, key, ttl)
		switch {
		case err != nil:
			logger.Log.Warn("Webhook dedupe unavailable", zap.Error(err))
		case !first:
			logger.Log.Info("Duplicate webhook ignored", zap.String("transId", event.TransID))
			return nil
		default:
			claimed = true
		}
	}

	settled, err := s.processWebhook(ctx, event)
	if claimed && (err != nil || !settled) {
		// 处理失败或网关尚未给出最终状态时释放 key，允许后续回调再次处理
		if relErr := s.Dedupe.Release(ctx, key); relErr != nil {
			logger.Log.Warn("Failed to release webhook key", zap.Error(relErr))
		}
	}
	return err
}

// processWebhook 返回网关查询到的状态是否为最终状态
func (s *PaymentService) processWebhook(ctx context.Context, event WebhookEvent) (bool, error) {
	gs, err := s.Gateway.CheckStatus(ctx, event.TransID)
	if err != nil {
		return false, &util.AppError{Kind: util.KindInternal, Code: "GATEWAY_ERROR", Message: "transaction verification failed", Err: err}
	}
	if gs.TransID == "" {
		gs.TransID = event.TransID
	}
	if gs.ExternalID == "" {
		gs.ExternalID = event.ExternalID
	}
	if _, err := s.applyStatus(ctx, "webhook", gs); err != nil {
		return false, err
	}
	return gatewayStatus(gs.Status).IsFinal(), nil
}

// VerifyPayment 学员主动查询支付结果，仍在处理中时向网关确认
func (s *PaymentService) VerifyPayment(ctx context.Context, user *util.Claims, transactionID string) (*VerifyResult, error) {
	payment, err := s.Payments.WithContext(ctx).FindByTransactionID(transactionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if payment.UserID != user.UserID && user.Role != model.Admin {
		return nil, util.ErrPermissionDenied
	}

	if payment.Status == model.PaymentPending {
		ref := payment.GatewayRef
		if ref == "" {
			ref = payment.TransactionID
		}
		gs, err := s.Gateway.CheckStatus(ctx, ref)
		if err != nil {
			return nil, &util.AppError{Kind: util.KindInternal, Code: "GATEWAY_ERROR", Message: "transaction verification failed", Err: err}
		}
		gs.TransID = payment.GatewayRef
		gs.ExternalID = payment.TransactionID
		if payment, err = s.applyStatus(ctx, "verify", gs); err != nil {
			return nil, err
		}
	}

	enrolled := false
	if _, err := s.Enrollments.WithContext(ctx).Find(payment.UserID, payment.CourseID); err == nil {
		enrolled = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return &VerifyResult{Payment: payment, Enrolled: enrolled}, nil
}

// ReconcilePending 定时任务：向网关确认长时间未完成的支付，超过有效期仍未完成的标记为过期
func (s *PaymentService) ReconcilePending(ctx context.Context) (int, error) {
	now := s.Now()
	pending, err := s.Payments.WithContext(ctx).ListPendingBefore(now.Add(-time.Minute), reconcileBatchSize)
	if err != nil {
		return 0, err
	}

	ttl := time.Duration(s.Cfg.Payment.PendingTTLMins) * time.Minute
	updated := 0
	for i := range pending {
		p := &pending[i]
		current := p

		if p.GatewayRef != "" {
			gs, err := s.Gateway.CheckStatus(ctx, p.GatewayRef)
			if err != nil {
				logger.Log.Warn("Reconcile status check failed",
					zap.String("transactionID", p.TransactionID),
					zap.Error(err),
				)
			} else {
				gs.TransID = p.GatewayRef
				gs.ExternalID = p.TransactionID
				if current, err = s.applyStatus(ctx, "reconcile", gs); err != nil {
					logger.Log.Warn("Reconcile apply failed", zap.String("transactionID", p.TransactionID), zap.Error(err))
					continue
				}
			}
		}

		if current.Status != model.PaymentPending {
			updated++
			continue
		}
		if ttl > 0 && now.Sub(p.CreatedAt) > ttl {
			_, err := s.applyStatus(ctx, "reconcile", &GatewayStatus{
				TransID:    p.GatewayRef,
				ExternalID: p.TransactionID,
				Status:     string(model.PaymentExpired),
			})
			if err != nil {
				logger.Log.Warn("Failed to expire payment", zap.String("transactionID", p.TransactionID), zap.Error(err))
				continue
			}
			updated++
		}
	}

	if updated > 0 {
		logger.Log.Info("Pending payments reconciled", zap.Int("updated", updated), zap.Int("checked", len(pending)))
	}
	return updated, nil
}

// ListPayments 管理员分页查看支付记录
func (s *PaymentService) ListPayments(ctx context.Context, page, limit int) (*PaymentPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	payments, total, err := s.Payments.WithContext(ctx).List(page, limit)
	if err != nil {
		return nil, err
	}
	return &PaymentPage{
		Data: payments,
		Pagination: Pagination{
			Total:           total,
			Page:            page,
			Limit:           limit,
			TotalPages:      int(math.Ceil(float64(total) / float64(limit))),
			HasNextPage:     int64(page*limit) < total,
			HasPreviousPage: page > 1,
		},
	}, nil
}
