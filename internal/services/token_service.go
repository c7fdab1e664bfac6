package services

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"invitegate/internal/models"
	"invitegate/pkg/config"
	"invitegate/pkg/errors"
	"invitegate/pkg/lock"
	"invitegate/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TokenService 访问令牌服务
// 状态机：(无) → ISSUED → CONFIRMED → USED，REVOKED/EXPIRED只能从ISSUED/CONFIRMED进入。
// Consume是唯一允许揭示预约地址的操作，必须在互斥锁内完成读-查-置USED，
// 先置USED再返回地址：两个请求竞争同一令牌时，只有抢到锁的一方能看到地址
type TokenService struct {
	db       *gorm.DB
	log      *logrus.Logger
	locker   lock.Locker
	cfg      config.TokenConfig
	lockWait time.Duration
}

// NewTokenService 创建访问令牌服务
func NewTokenService(db *gorm.DB, locker lock.Locker, cfg config.TokenConfig, lockWait time.Duration) *TokenService {
	return &TokenService{
		db:       db,
		log:      logger.GetLogger(),
		locker:   locker,
		cfg:      cfg,
		lockWait: lockWait,
	}
}

// IssueTokenResult 签发结果
type IssueTokenResult struct {
	Token     string
	ExpiresAt time.Time
}

// IssueToken 为验证通过的行签发访问令牌
// 只能在验证码校验成功后调用；有效期取品牌覆盖值，否则用全局默认
func (s *TokenService) IssueToken(record *models.InviteRecord) (*IssueTokenResult, error) {
	if record.OtpStatus != models.OtpStatusVerified {
		return nil, errors.New(errors.CodeForbidden, "验证码尚未通过校验")
	}

	token, err := s.generateToken()
	if err != nil {
		return nil, err
	}

	expiry := s.cfg.Expiry
	var brand models.Brand
	if err := s.db.Where("code = ?", record.Brand).First(&brand).Error; err == nil && brand.TokenExpiryHours > 0 {
		expiry = time.Duration(brand.TokenExpiryHours) * time.Hour
	}

	expiresAt := time.Now().Add(expiry)
	if err := s.db.Model(record).Updates(map[string]interface{}{
		"token":        token,
		"token_expiry": expiresAt,
		"token_status": models.TokenStatusIssued,
	}).Error; err != nil {
		return nil, errors.New(errors.CodeStoreUnavailable, "写入访问令牌失败")
	}
	record.Token = token
	record.TokenExpiry = &expiresAt
	record.TokenStatus = models.TokenStatusIssued

	s.log.WithFields(logrus.Fields{
		"ref":      record.Ref,
		"brand":    record.Brand,
		"expires":  expiresAt,
		"trace_id": record.TraceID,
	}).Info("访问令牌已签发")
	return &IssueTokenResult{Token: token, ExpiresAt: expiresAt}, nil
}

// Validate 只读路径：确认页（以及邮件客户端的链接预取）走这里，绝不揭示预约地址
// 唯一允许的状态变更是首次读取时ISSUED→CONFIRMED，用来区分"链接被打开"和"链接被消费"
func (s *TokenService) Validate(token, brand string) (*models.InviteRecord, error) {
	record, err := s.findByToken(token)
	if err != nil {
		return nil, err
	}

	if brand != "" && !strings.EqualFold(brand, record.Brand) {
		return nil, errors.New(errors.CodeBrandMismatch, "品牌不匹配")
	}

	if err := s.checkConsumable(record, time.Now()); err != nil {
		return nil, err
	}

	if record.TokenStatus == models.TokenStatusIssued {
		if err := s.db.Model(record).Update("token_status", models.TokenStatusConfirmed).Error; err != nil {
			return nil, errors.New(errors.CodeStoreUnavailable, "更新令牌状态失败")
		}
		record.TokenStatus = models.TokenStatusConfirmed
	}
	return record, nil
}

// Consume 写路径：加锁后重读状态、置USED、同步扇出锁定标记，之后才返回预约地址
// 竞争失败的一方只会看到TOKEN_ALREADY_USED
func (s *TokenService) Consume(token string) (string, error) {
	release, err := s.locker.Acquire("consume:"+token, s.lockWait)
	if err != nil {
		if err == lock.ErrTimeout {
			return "", errors.New(errors.CodeLockTimeout, "系统繁忙，请稍后重试")
		}
		return "", errors.New(errors.CodeStoreUnavailable, "获取锁失败")
	}
	defer release()

	// 临界区内重读，拿锁前的任何读取都不可信
	record, err := s.findByToken(token)
	if err != nil {
		return "", err
	}
	now := time.Now()
	if err := s.checkConsumable(record, now); err != nil {
		return "", err
	}
	if record.OtpStatus != models.OtpStatusVerified {
		return "", errors.New(errors.CodeForbidden, "验证流程未完成")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(record).Updates(map[string]interface{}{
			"token_status": models.TokenStatusUsed,
			"used_at":      now,
			"locked":       models.LockedFlag,
		}).Error; err != nil {
			return err
		}
		// 锁定标记同步扇出到同身份键的全部行，此后任何令牌都无法再为该键签发
		return tx.Model(&models.InviteRecord{}).
			Where("brand = ? AND position = ? AND (email_hash = ? OR email = ?)",
				record.Brand, record.Position, record.EmailHash, record.Email).
			Update("locked", models.LockedFlag).Error
	})
	if err != nil {
		return "", errors.New(errors.CodeStoreUnavailable, "更新令牌状态失败")
	}

	s.log.WithFields(logrus.Fields{
		"ref":      record.Ref,
		"brand":    record.Brand,
		"trace_id": record.TraceID,
	}).Info("访问令牌已消费，预约地址已揭示")
	return record.BookingURL, nil
}

// Revoke 管理员撤销：身份键下所有未达终态的令牌从ISSUED/CONFIRMED置为REVOKED
func (s *TokenService) Revoke(brand, email, position string) (int64, error) {
	hash := models.HashEmail(email)
	result := s.db.Model(&models.InviteRecord{}).
		Where("brand = ? AND position = ? AND (email_hash = ? OR email = ?) AND token_status IN ?",
			brand, position, hash, email,
			[]string{models.TokenStatusIssued, models.TokenStatusConfirmed}).
		Update("token_status", models.TokenStatusRevoked)
	if result.Error != nil {
		return 0, errors.New(errors.CodeStoreUnavailable, "撤销令牌失败")
	}

	s.log.WithFields(logrus.Fields{
		"brand":      brand,
		"email_hash": hash,
		"position":   position,
		"rows":       result.RowsAffected,
	}).Info("访问令牌已撤销")
	return result.RowsAffected, nil
}

func (s *TokenService) findByToken(token string) (*models.InviteRecord, error) {
	if token == "" {
		return nil, errors.New(errors.CodeTokenNotFound, "访问令牌不存在")
	}
	var record models.InviteRecord
	if err := s.db.Where("token = ?", token).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.CodeTokenNotFound, "访问令牌不存在")
		}
		return nil, errors.New(errors.CodeStoreUnavailable, "查询令牌失败")
	}
	return &record, nil
}

// checkConsumable 校验令牌仍处于可用状态，过期时惰性落盘EXPIRED
func (s *TokenService) checkConsumable(record *models.InviteRecord, now time.Time) error {
	switch record.TokenStatus {
	case models.TokenStatusUsed:
		return errors.New(errors.CodeTokenAlreadyUsed, "该链接已被使用")
	case models.TokenStatusRevoked:
		return errors.New(errors.CodeTokenRevoked, "该链接已被撤销")
	case models.TokenStatusExpired:
		return errors.New(errors.CodeTokenExpired, "该链接已过期")
	}

	if record.IsTokenExpired(now) {
		// 终态写入幂等，重复应用无害
		if err := s.db.Model(record).Update("token_status", models.TokenStatusExpired).Error; err != nil {
			s.log.Errorf("标记令牌过期失败 (ref=%s): %v", record.Ref, err)
		}
		record.TokenStatus = models.TokenStatusExpired
		return errors.New(errors.CodeTokenExpired, "该链接已过期")
	}
	return nil
}

// generateToken 生成32字节高熵令牌，URL安全编码无填充
func (s *TokenService) generateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
