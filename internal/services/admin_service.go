package services

import (
	"encoding/json"
	"strings"
	"time"

	"invitegate/internal/models"
	"invitegate/pkg/errors"
	"invitegate/pkg/jwt"
	"invitegate/pkg/logger"
	"invitegate/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminService 管理端服务：登录、派发、撤销、解锁、邀请查询
// 所有变更操作都落审计日志
type AdminService struct {
	db           *gorm.DB
	log          *logrus.Logger
	jwtManager   *jwt.JWTManager
	guard        *InviteGuard
	token        *TokenService
	verification *VerificationService
}

// NewAdminService 创建管理端服务
func NewAdminService(db *gorm.DB, jwtManager *jwt.JWTManager, guard *InviteGuard,
	token *TokenService, verification *VerificationService) *AdminService {
	return &AdminService{
		db:           db,
		log:          logger.GetLogger(),
		jwtManager:   jwtManager,
		guard:        guard,
		token:        token,
		verification: verification,
	}
}

// Login 管理员登录，成功返回JWT
func (s *AdminService) Login(username, password string) (string, error) {
	var admin models.AdminUser
	if err := s.db.Where("username = ? AND active = ?", username, true).First(&admin).Error; err != nil {
		return "", errors.New(errors.CodeUnauthorized, "用户名或密码错误")
	}
	if !admin.CheckPassword(password) {
		return "", errors.New(errors.CodeUnauthorized, "用户名或密码错误")
	}

	now := time.Now()
	s.db.Model(&admin).Update("last_login_at", now)

	return s.jwtManager.GenerateToken(admin.ID, admin.Username)
}

// Dispatch 派发邀请：写入候选人名录并生成签名的发起链接
func (s *AdminService) Dispatch(operator, brand, email, position, bookingURL string) (string, error) {
	brand = strings.ToUpper(strings.TrimSpace(brand))
	email = strings.TrimSpace(email)

	var brandRecord models.Brand
	if err := s.db.Where("code = ? AND active = ?", brand, true).First(&brandRecord).Error; err != nil {
		return "", errors.New(errors.CodeInvalidParam, "品牌代码无效")
	}

	entry := models.RosterEntry{
		Brand:      brand,
		Email:      email,
		EmailHash:  models.HashEmail(email),
		Position:   position,
		BookingURL: bookingURL,
		Active:     true,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return "", errors.New(errors.CodeStoreUnavailable, "写入候选人名录失败")
	}

	link, err := s.verification.BuildRequestLink(brand, email, position)
	if err != nil {
		return "", err
	}

	s.audit(operator, models.AuditActionDispatch, map[string]interface{}{
		"brand":      brand,
		"email_hash": entry.EmailHash,
		"position":   position,
	})
	return link, nil
}

// Revoke 撤销身份键下所有未消费的令牌
func (s *AdminService) Revoke(operator, brand, email, position string) (int64, error) {
	brand = strings.ToUpper(strings.TrimSpace(brand))
	count, err := s.token.Revoke(brand, email, position)
	if err != nil {
		return 0, err
	}

	s.audit(operator, models.AuditActionRevoke, map[string]interface{}{
		"brand":      brand,
		"email_hash": models.HashEmail(email),
		"position":   position,
		"rows":       count,
	})
	return count, nil
}

// Unlock 管理员解锁被锁定的身份键，默认流程之外的覆盖通道
func (s *AdminService) Unlock(operator, brand, email, position string) (int64, error) {
	brand = strings.ToUpper(strings.TrimSpace(brand))
	count, err := s.guard.Unlock(brand, email, position)
	if err != nil {
		return 0, err
	}

	s.audit(operator, models.AuditActionUnlock, map[string]interface{}{
		"brand":      brand,
		"email_hash": models.HashEmail(email),
		"position":   position,
		"rows":       count,
	})
	return count, nil
}

// ListInvites 分页查询邀请记录，支持按品牌和令牌状态过滤
func (s *AdminService) ListInvites(params *pagination.PageParams, brand, tokenStatus string) ([]models.InviteRecord, *pagination.PageInfo, error) {
	query := s.db.Model(&models.InviteRecord{})
	if brand != "" {
		query = query.Where("brand = ?", strings.ToUpper(brand))
	}
	if tokenStatus != "" {
		query = query.Where("token_status = ?", tokenStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, errors.New(errors.CodeStoreUnavailable, "查询邀请记录失败")
	}

	var records []models.InviteRecord
	if err := query.Order("id DESC").
		Offset(params.GetOffset()).
		Limit(params.GetLimit()).
		Find(&records).Error; err != nil {
		return nil, nil, errors.New(errors.CodeStoreUnavailable, "查询邀请记录失败")
	}

	return records, pagination.NewPageInfo(params.Page, params.PageSize, total), nil
}

// audit 写审计日志，失败只记录不影响主流程
func (s *AdminService) audit(operator, action string, detail map[string]interface{}) {
	raw, err := json.Marshal(detail)
	if err != nil {
		s.log.Errorf("审计详情序列化失败: %v", err)
		return
	}
	entry := models.AuditLog{
		Action:   action,
		Operator: operator,
		Detail:   datatypes.JSON(raw),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		s.log.Errorf("写入审计日志失败 (action=%s): %v", action, err)
	}
}
