package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AdminUser 管理端用户
type AdminUser struct {
	BaseModel
	Username     string     `json:"username" gorm:"unique;not null;size:50;index"`
	PasswordHash string     `json:"-" gorm:"not null;size:255"`
	Active       bool       `json:"active" gorm:"default:true"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// TableName 指定表名
func (AdminUser) TableName() string {
	return "admin_users"
}

// SetPassword 设置密码
func (u *AdminUser) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *AdminUser) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
