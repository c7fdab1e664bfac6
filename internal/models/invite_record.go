package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// InviteRecord 邀请记录，每次发起验证码都新增一行，只更新不删除，作为审计轨迹
type InviteRecord struct {
	BaseModel
	Brand     string `json:"brand" gorm:"not null;size:50;index:idx_identity,priority:1"`
	Email     string `json:"email" gorm:"not null;size:200"`
	EmailHash string `json:"email_hash" gorm:"not null;size:64;index:idx_identity,priority:2"`
	Position  string `json:"position" gorm:"not null;size:200;index:idx_identity,priority:3"` // 职位描述，与品牌和邮箱共同构成身份键

	// Ref 单次查找令牌，验证验证码时按它精确定位一行，避免多个PENDING行的歧义
	Ref string `json:"ref" gorm:"size:36;uniqueIndex"`

	Otp         string     `json:"-" gorm:"size:10"`
	OtpExpiry   *time.Time `json:"otp_expiry"`
	OtpAttempts int        `json:"otp_attempts" gorm:"default:0"`
	OtpStatus   string     `json:"otp_status" gorm:"size:20;index"`

	Token       string     `json:"-" gorm:"size:64;index"`
	TokenExpiry *time.Time `json:"token_expiry"`
	TokenStatus string     `json:"token_status" gorm:"size:20;index"`

	VerifiedAt *time.Time `json:"verified_at"`
	UsedAt     *time.Time `json:"used_at"`

	// Locked 身份键级别的终态标记，令牌被消费后对该键名下所有行扇出写入
	Locked string `json:"locked" gorm:"size:10"`

	// UnlockedAt 管理员覆盖通道的时间戳：盖章后该行不再阻断新的签发，
	// 自身的终态状态保持不动，审计轨迹不被改写
	UnlockedAt *time.Time `json:"unlocked_at"`

	// BookingURL 预约地址，只允许被consume揭示一次
	BookingURL string `json:"-" gorm:"size:500"`

	TraceID string `json:"trace_id" gorm:"size:36"` // 仅用于日志关联
}

// TableName 指定表名
func (InviteRecord) TableName() string {
	return "invite_records"
}

// 验证码状态常量
const (
	OtpStatusPending    = "PENDING"
	OtpStatusVerified   = "VERIFIED"
	OtpStatusExpired    = "EXPIRED"
	OtpStatusFailed     = "FAILED"
	OtpStatusSuperseded = "SUPERSEDED"
)

// 访问令牌状态常量
const (
	TokenStatusIssued    = "ISSUED"
	TokenStatusConfirmed = "CONFIRMED"
	TokenStatusUsed      = "USED"
	TokenStatusRevoked   = "REVOKED"
	TokenStatusExpired   = "EXPIRED"
)

// LockedFlag 行锁定标记值
const LockedFlag = "LOCKED"

// HashEmail 计算邮箱的单向摘要（小写去空格后sha256），用于不暴露明文的查找
func HashEmail(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// IsOtpExpired 验证码是否已过期
func (r *InviteRecord) IsOtpExpired(now time.Time) bool {
	return r.OtpExpiry != nil && now.After(*r.OtpExpiry)
}

// IsTokenExpired 访问令牌是否已过期
func (r *InviteRecord) IsTokenExpired(now time.Time) bool {
	return r.TokenExpiry != nil && now.After(*r.TokenExpiry)
}

// IsLocked 行是否已被锁定
func (r *InviteRecord) IsLocked() bool {
	return r.Locked == LockedFlag
}

// IsTerminalForReuse 该行是否阻断同身份键的再次发起
// SUPERSEDED只是重新获取验证码的正常副产品，不构成阻断；
// 管理员盖过解锁章的行不再阻断
func (r *InviteRecord) IsTerminalForReuse() bool {
	if r.UnlockedAt != nil {
		return false
	}
	return r.IsLocked() || r.TokenStatus == TokenStatusUsed || r.TokenStatus == TokenStatusRevoked
}
