package model

import (
	"time"
)

// BaseModel 公共字段。排序相关表依赖唯一索引保证顺序，因此统一使用物理删除
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
