package services

import (
	"time"

	"invitegate/internal/models"
	"invitegate/pkg/errors"
	"invitegate/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InviteGuard 邀请复用防护
// 只在发起验证码时检查一次：扫描同身份键（品牌+邮箱+职位）的历史行，
// 任何一行已达终态（令牌已使用/已撤销/行被锁定）即阻断新的签发
type InviteGuard struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewInviteGuard 创建邀请复用防护
func NewInviteGuard(db *gorm.DB) *InviteGuard {
	return &InviteGuard{
		db:  db,
		log: logger.GetLogger(),
	}
}

// FindBlocking 按身份键从新到旧扫描，返回第一个构成阻断的行
// 同时按明文邮箱和摘要匹配，兼容只存摘要的写入方；
// SUPERSEDED只是重新获取验证码的正常副产品，不构成阻断
func (g *InviteGuard) FindBlocking(brand, email, position string) (*models.InviteRecord, error) {
	hash := models.HashEmail(email)

	var rows []models.InviteRecord
	err := g.db.Where("brand = ? AND position = ? AND (email_hash = ? OR email = ?)",
		brand, position, hash, email).
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.New(errors.CodeStoreUnavailable, "查询邀请记录失败")
	}

	for i := range rows {
		if rows[i].IsTerminalForReuse() {
			g.log.WithFields(logrus.Fields{
				"brand":        brand,
				"email_hash":   hash,
				"position":     position,
				"blocking_row": rows[i].ID,
				"token_status": rows[i].TokenStatus,
				"locked":       rows[i].Locked,
			}).Warn("邀请已锁定，阻止重新签发")
			return &rows[i], nil
		}
	}
	return nil, nil
}

// Unlock 管理员解锁：给身份键下所有构成阻断的行盖解锁章，是默认流程之外的覆盖通道
// 行自身的终态状态不改写（状态机只进不退，审计轨迹保留），
// 盖章后的行不再被FindBlocking计入。调用方（管理服务）负责写审计日志
func (g *InviteGuard) Unlock(brand, email, position string) (int64, error) {
	hash := models.HashEmail(email)
	now := time.Now()

	result := g.db.Model(&models.InviteRecord{}).
		Where("brand = ? AND position = ? AND (email_hash = ? OR email = ?)",
			brand, position, hash, email).
		Where("unlocked_at IS NULL").
		Where("locked = ? OR token_status IN ?",
			models.LockedFlag, []string{models.TokenStatusUsed, models.TokenStatusRevoked}).
		Update("unlocked_at", now)
	if result.Error != nil {
		return 0, errors.New(errors.CodeStoreUnavailable, "解锁邀请记录失败")
	}

	g.log.WithFields(logrus.Fields{
		"brand":      brand,
		"email_hash": hash,
		"position":   position,
		"rows":       result.RowsAffected,
	}).Info("邀请记录已解锁")
	return result.RowsAffected, nil
}
