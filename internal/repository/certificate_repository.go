package repository

import (
	"context"
	"course_connect_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) WithContext(ctx context.Context) *CertificateRepository {
	return &CertificateRepository{DB: r.DB.WithContext(ctx)}
}

func (r *CertificateRepository) Create(cert *model.Certificate) error {
	return r.DB.Create(cert).Error
}

func (r *CertificateRepository) Find(userID, courseID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Preload("Course").
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Take(&cert).Error
	return &cert, err
}

func (r *CertificateRepository) FindByVerificationCode(code string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Preload("User").Preload("Course").
		Where("verification_code = ?", code).
		Take(&cert).Error
	return &cert, err
}

func (r *CertificateRepository) ListByUser(userID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.Preload("Course").Where("user_id = ?", userID).Order("awarded_at DESC").Find(&certs).Error
	return certs, err
}
