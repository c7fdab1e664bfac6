package models

import (
	"time"
)

// BaseModel 公共字段
// 邀请记录只追加不删除，所以不带软删除列
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
