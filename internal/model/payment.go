package model

import "gorm.io/datatypes"

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentExpired    PaymentStatus = "EXPIRED"
)

// IsFinal 终态不再被网关回调改写
func (s PaymentStatus) IsFinal() bool {
	return s == PaymentSuccessful || s == PaymentFailed || s == PaymentExpired
}

// swagger:model Payment
type Payment struct {
	BaseModel
	UserID        uint             `gorm:"not null;index" json:"userId"`
	CourseID      uint             `gorm:"not null;index" json:"courseId"`
	TransactionID string           `gorm:"size:64;uniqueIndex;not null" json:"transactionId"`
	GatewayRef    string           `gorm:"size:64;index" json:"gatewayRef"`
	Amount        float64          `gorm:"not null" json:"amount"`
	Status        PaymentStatus    `gorm:"size:20;not null;index" json:"status"`
	User          *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Course        *Course          `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	History       []PaymentHistory `gorm:"foreignKey:PaymentID" json:"history,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

// PaymentHistory 每次状态变化追加一条，Payload 保存网关原始返回
type PaymentHistory struct {
	BaseModel
	PaymentID uint           `gorm:"not null;index" json:"paymentId"`
	Status    PaymentStatus  `gorm:"size:20;not null" json:"status"`
	Amount    float64        `gorm:"not null" json:"amount"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
}

func (PaymentHistory) TableName() string {
	return "payment_history"
}
