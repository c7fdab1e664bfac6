package models

import (
	"gorm.io/datatypes"
)

// AuditLog 管理端操作审计日志
type AuditLog struct {
	BaseModel
	Action   string         `json:"action" gorm:"not null;size:50;index"` // dispatch/revoke/unlock
	Operator string         `json:"operator" gorm:"not null;size:50"`
	Detail   datatypes.JSON `json:"detail"`
}

// TableName 指定表名
func (AuditLog) TableName() string {
	return "audit_logs"
}

// 审计动作常量
const (
	AuditActionDispatch = "dispatch"
	AuditActionRevoke   = "revoke"
	AuditActionUnlock   = "unlock"
)
