package models

import (
	"time"
)

// BaseModel 自增主键与时间戳
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UintPtr 返回 v 的指针，用于可空外键赋值
func UintPtr(v uint) *uint {
	return &v
}
