package model

import "time"

// swagger:model Certificate
type Certificate struct {
	BaseModel
	UserID            uint      `gorm:"not null;uniqueIndex:idx_certificate_user_course,priority:1" json:"userId"`
	CourseID          uint      `gorm:"not null;uniqueIndex:idx_certificate_user_course,priority:2;index" json:"courseId"`
	CertificateNumber string    `gorm:"size:64;uniqueIndex;not null" json:"certificateNumber"`
	VerificationCode  string    `gorm:"size:64;uniqueIndex;not null" json:"verificationCode"`
	DownloadURL       string    `gorm:"size:500" json:"downloadUrl"`
	StorageKey        string    `gorm:"size:255" json:"-"`
	AwardedAt         time.Time `json:"awardedAt"`
	User              *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Course            *Course   `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Certificate) TableName() string {
	return "certificates"
}
