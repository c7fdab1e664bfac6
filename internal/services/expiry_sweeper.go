package services

import (
	"fmt"
	"time"

	"invitegate/internal/models"
	"invitegate/pkg/logger"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// ExpirySweeper 过期状态清扫器
// 定期把超龄的PENDING验证码和ISSUED/CONFIRMED令牌落盘为EXPIRED。
// 读路径本身有惰性过期兜底，这里只是让存量数据的状态列保持可读；
// 终态写入幂等，与惰性过期并发无害
type ExpirySweeper struct {
	db      *gorm.DB
	cron    *cron.Cron
	running bool
}

// NewExpirySweeper 创建过期状态清扫器
func NewExpirySweeper(db *gorm.DB) *ExpirySweeper {
	return &ExpirySweeper{
		db:   db,
		cron: cron.New(),
	}
}

// Start 启动清扫器，每分钟执行一次
func (s *ExpirySweeper) Start() error {
	if s.running {
		return fmt.Errorf("清扫器已经在运行")
	}

	_, err := s.cron.AddFunc("@every 1m", func() {
		if err := s.Sweep(); err != nil {
			logger.GetLogger().Errorf("过期状态清扫失败: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.running = true
	logger.GetLogger().Info("过期状态清扫器已启动")
	return nil
}

// Stop 停止清扫器
func (s *ExpirySweeper) Stop() {
	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	logger.GetLogger().Info("过期状态清扫器已停止")
}

// Sweep 执行一次清扫
func (s *ExpirySweeper) Sweep() error {
	now := time.Now()

	otpResult := s.db.Model(&models.InviteRecord{}).
		Where("otp_status = ? AND otp_expiry < ?", models.OtpStatusPending, now).
		Update("otp_status", models.OtpStatusExpired)
	if otpResult.Error != nil {
		return otpResult.Error
	}

	tokenResult := s.db.Model(&models.InviteRecord{}).
		Where("token_status IN ? AND token_expiry < ?",
			[]string{models.TokenStatusIssued, models.TokenStatusConfirmed}, now).
		Update("token_status", models.TokenStatusExpired)
	if tokenResult.Error != nil {
		return tokenResult.Error
	}

	if otpResult.RowsAffected > 0 || tokenResult.RowsAffected > 0 {
		logger.GetLogger().Infof("过期状态清扫完成: 验证码%d行, 令牌%d行",
			otpResult.RowsAffected, tokenResult.RowsAffected)
	}
	return nil
}
