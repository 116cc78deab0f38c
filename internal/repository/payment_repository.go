package repository

import (
	"context"
	"course_connect_backend/internal/model"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	DB *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

func (r *PaymentRepository) WithContext(ctx context.Context) *PaymentRepository {
	return &PaymentRepository{DB: r.DB.WithContext(ctx)}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: tx}
}

// Create 新建支付记录并写入第一条历史
func (r *PaymentRepository) Create(payment *model.Payment) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("History").Create(payment).Error; err != nil {
			return err
		}
		return tx.Create(&model.PaymentHistory{
			PaymentID: payment.ID,
			Status:    payment.Status,
			Amount:    payment.Amount,
		}).Error
	})
}

func (r *PaymentRepository) FindByTransactionID(transactionID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.DB.Where("transaction_id = ?", transactionID).Take(&payment).Error
	return &payment, err
}

// FindForUpdate 按网关流水号或本地交易号查找并加锁
func (r *PaymentRepository) FindForUpdate(gatewayRef, transactionID string) (*model.Payment, error) {
	var payment model.Payment
	query := r.DB.Clauses(clause.Locking{Strength: "UPDATE"})
	switch {
	case gatewayRef != "" && transactionID != "":
		query = query.Where("gateway_ref = ? OR transaction_id = ?", gatewayRef, transactionID)
	case gatewayRef != "":
		query = query.Where("gateway_ref = ?", gatewayRef)
	default:
		query = query.Where("transaction_id = ?", transactionID)
	}
	err := query.Take(&payment).Error
	return &payment, err
}

func (r *PaymentRepository) SetGatewayRef(id uint, ref string) error {
	return r.DB.Model(&model.Payment{}).Where("id = ?", id).Update("gateway_ref", ref).Error
}

// UpdateStatus 更新状态并追加历史，payload 为网关原始返回
func (r *PaymentRepository) UpdateStatus(payment *model.Payment, status model.PaymentStatus, payload datatypes.JSON) error {
	if err := r.DB.Model(&model.Payment{}).Where("id = ?", payment.ID).Update("status", status).Error; err != nil {
		return err
	}
	payment.Status = status
	return r.DB.Create(&model.PaymentHistory{
		PaymentID: payment.ID,
		Status:    status,
		Amount:    payment.Amount,
		Payload:   payload,
	}).Error
}

func (r *PaymentRepository) HasSuccessful(userID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Payment{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.PaymentSuccessful).
		Count(&count).Error
	return count > 0, err
}

func (r *PaymentRepository) List(page, limit int) ([]model.Payment, int64, error) {
	var payments []model.Payment
	var total int64
	if err := r.DB.Model(&model.Payment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.DB.
		Preload("User").
		Preload("Course").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&payments).Error
	return payments, total, err
}

// ListPendingBefore 查询创建时间早于 before 的待支付记录
func (r *PaymentRepository) ListPendingBefore(before time.Time, limit int) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.DB.
		Where("status = ? AND created_at < ?", model.PaymentPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
