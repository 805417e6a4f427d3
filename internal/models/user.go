package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User 用户
type User struct {
	BaseModel
	Email        string     `json:"email" gorm:"uniqueIndex;not null;size:100"`
	Name         string     `json:"name" gorm:"not null;size:100"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	Status       string     `json:"status" gorm:"default:'active';size:20"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashed)
	return nil
}

// CheckPassword 验证密码，未设置密码的用户永远不通过
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// IsActive 用户是否可用
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserStatusActive
}
