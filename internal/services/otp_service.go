package services

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"invitegate/internal/models"
	"invitegate/pkg/config"
	"invitegate/pkg/errors"
	"invitegate/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OtpService 验证码服务
// 状态机：PENDING → {VERIFIED | EXPIRED | FAILED}，
// 同一（品牌，邮箱）再次签发时旧的PENDING行置为SUPERSEDED
type OtpService struct {
	db    *gorm.DB
	log   *logrus.Logger
	guard *InviteGuard
	cfg   config.OTPConfig
}

// NewOtpService 创建验证码服务
func NewOtpService(db *gorm.DB, guard *InviteGuard, cfg config.OTPConfig) *OtpService {
	return &OtpService{
		db:    db,
		log:   logger.GetLogger(),
		guard: guard,
		cfg:   cfg,
	}
}

// CreateOtpResult 签发结果
type CreateOtpResult struct {
	Record    *models.InviteRecord
	Otp       string
	ExpiresAt time.Time
}

// CreateOtp 签发验证码
// 先过品牌注册表、候选人名录和复用防护，任一不通过不产生任何写入；
// 通过后将同键名下的PENDING行置为SUPERSEDED，再追加新行
func (s *OtpService) CreateOtp(brand, email, position, traceID string) (*CreateOtpResult, error) {
	brand = strings.ToUpper(strings.TrimSpace(brand))
	email = strings.TrimSpace(email)

	// 品牌注册表校验
	var brandRecord models.Brand
	if err := s.db.Where("code = ? AND active = ?", brand, true).First(&brandRecord).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.CodeInvalidParam, "品牌代码无效")
		}
		return nil, errors.New(errors.CodeStoreUnavailable, "查询品牌失败")
	}

	// 候选人名录校验（存在性口径，调用方负责防枚举的对外话术）
	roster, err := s.lookupRoster(brand, email, position)
	if err != nil {
		return nil, err
	}

	// 复用防护：已消费/已撤销/已锁定的身份键禁止重新签发
	blocking, err := s.guard.FindBlocking(brand, email, position)
	if err != nil {
		return nil, err
	}
	if blocking != nil {
		return nil, errors.New(errors.CodeInviteBlocked, "该邀请已完成或已被锁定，无法重新发起")
	}

	otp, err := s.generateCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(s.cfg.Expiry)
	record := &models.InviteRecord{
		Brand:     brand,
		Email:     email,
		EmailHash: models.HashEmail(email),
		Position:  position,
		Ref:       uuid.New().String(),
		Otp:       otp,
		OtpExpiry: &expiresAt,
		OtpStatus: models.OtpStatusPending,
		TraceID:   traceID,
	}
	if roster != nil {
		record.BookingURL = roster.BookingURL
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 同一（品牌，邮箱）同一时刻至多一行PENDING
		if err := tx.Model(&models.InviteRecord{}).
			Where("brand = ? AND email_hash = ? AND otp_status = ?",
				brand, record.EmailHash, models.OtpStatusPending).
			Update("otp_status", models.OtpStatusSuperseded).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, errors.New(errors.CodeStoreUnavailable, "写入邀请记录失败")
	}

	s.log.WithFields(logrus.Fields{
		"brand":      brand,
		"email_hash": record.EmailHash,
		"position":   position,
		"ref":        record.Ref,
		"trace_id":   traceID,
	}).Info("验证码已签发")

	return &CreateOtpResult{Record: record, Otp: otp, ExpiresAt: expiresAt}, nil
}

// VerifyOtp 校验验证码
// 按签发时返回的Ref精确定位一行（确定性路径），避免多个PENDING行之间的歧义
func (s *OtpService) VerifyOtp(ref, submittedCode string) (*models.InviteRecord, error) {
	var record models.InviteRecord
	if err := s.db.Where("ref = ?", ref).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.CodeNotFound, "验证码记录不存在")
		}
		return nil, errors.New(errors.CodeStoreUnavailable, "查询邀请记录失败")
	}

	if record.OtpStatus != models.OtpStatusPending {
		return nil, errors.New(errors.CodeOTPExpired, "验证码已失效，请重新获取")
	}

	now := time.Now()
	if record.IsOtpExpired(now) {
		s.updateOtpStatus(&record, models.OtpStatusExpired)
		return nil, errors.New(errors.CodeOTPExpired, "验证码已过期，请重新获取")
	}

	if record.OtpAttempts >= s.cfg.MaxAttempts {
		s.updateOtpStatus(&record, models.OtpStatusFailed)
		return nil, errors.New(errors.CodeOTPLocked, "尝试次数已用尽，请重新获取验证码")
	}

	// 常量时间比对，避免逐字符比较的时序侧信道
	if subtle.ConstantTimeCompare([]byte(record.Otp), []byte(submittedCode)) != 1 {
		record.OtpAttempts++
		updates := map[string]interface{}{"otp_attempts": record.OtpAttempts}
		if record.OtpAttempts >= s.cfg.MaxAttempts {
			updates["otp_status"] = models.OtpStatusFailed
		}
		if err := s.db.Model(&record).Updates(updates).Error; err != nil {
			return nil, errors.New(errors.CodeStoreUnavailable, "更新邀请记录失败")
		}
		if record.OtpAttempts >= s.cfg.MaxAttempts {
			return nil, errors.New(errors.CodeOTPLocked, "尝试次数已用尽，请重新获取验证码")
		}
		remaining := s.cfg.MaxAttempts - record.OtpAttempts
		return nil, errors.New(errors.CodeOTPInvalid, fmt.Sprintf("验证码错误，还可尝试%d次", remaining))
	}

	if err := s.db.Model(&record).Updates(map[string]interface{}{
		"otp_status":  models.OtpStatusVerified,
		"verified_at": now,
	}).Error; err != nil {
		return nil, errors.New(errors.CodeStoreUnavailable, "更新邀请记录失败")
	}
	record.OtpStatus = models.OtpStatusVerified
	record.VerifiedAt = &now

	s.log.WithFields(logrus.Fields{
		"ref":      ref,
		"trace_id": record.TraceID,
	}).Info("验证码校验通过")
	return &record, nil
}

// lookupRoster 查询候选人名录
func (s *OtpService) lookupRoster(brand, email, position string) (*models.RosterEntry, error) {
	hash := models.HashEmail(email)
	var entry models.RosterEntry
	err := s.db.Where("brand = ? AND position = ? AND (email_hash = ? OR email = ?) AND active = ?",
		brand, position, hash, email, true).
		Order("id DESC").First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.CodeNotFound, "候选人不在名录中")
		}
		return nil, errors.New(errors.CodeStoreUnavailable, "查询候选人名录失败")
	}
	return &entry, nil
}

// generateCode 生成定长随机数字验证码，在整个码空间内均匀分布
func (s *OtpService) generateCode() (string, error) {
	length := s.cfg.Length
	if length <= 0 {
		length = 6
	}
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// updateOtpStatus 终态写入是幂等的，重复应用同一终值无需加锁
func (s *OtpService) updateOtpStatus(record *models.InviteRecord, status string) {
	if err := s.db.Model(record).Update("otp_status", status).Error; err != nil {
		s.log.Errorf("更新验证码状态失败 (ref=%s): %v", record.Ref, err)
	}
	record.OtpStatus = status
}
