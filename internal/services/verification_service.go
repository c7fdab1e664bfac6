package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"invitegate/internal/models"
	"invitegate/pkg/config"
	"invitegate/pkg/errors"
	"invitegate/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// VerificationService 验证流程编排器
// 组合签名服务、验证码服务、令牌服务和通知端口，对外暴露三个流程：
// 发起（签名链接→签发验证码）、校验（验证码→签发令牌）、确认（只读校验/消费揭示）
type VerificationService struct {
	db        *gorm.DB
	log       *logrus.Logger
	signature *SignatureService
	otp       *OtpService
	token     *TokenService
	notifier  Notifier
	baseURL   string
}

// NewVerificationService 创建验证流程编排器
func NewVerificationService(db *gorm.DB, signature *SignatureService, otp *OtpService,
	token *TokenService, notifier Notifier, appCfg config.AppConfig) *VerificationService {
	return &VerificationService{
		db:        db,
		log:       logger.GetLogger(),
		signature: signature,
		otp:       otp,
		token:     token,
		notifier:  notifier,
		baseURL:   strings.TrimRight(appCfg.PublicBaseURL, "/"),
	}
}

// RequestOtpResult 发起流程的结果
type RequestOtpResult struct {
	Ref       string
	ExpiresAt time.Time
}

// RequestOtp 流程一：校验签名链接后签发验证码，并交给通知端口发送
// 邮件失败只记录并上报，已写入的行不回滚
func (s *VerificationService) RequestOtp(brand, email, position, ts, sig, traceID string) (*RequestOtpResult, error) {
	issuedAt, err := s.signature.ParseTimestamp(ts)
	if err != nil {
		return nil, err
	}
	if err := s.signature.Verify([]string{brand, email, position}, sig, issuedAt); err != nil {
		return nil, err
	}

	result, err := s.otp.CreateOtp(brand, email, position, traceID)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.SendOtpEmail(email, result.Otp, result.ExpiresAt); err != nil {
		// 状态已提交，送达失败不回滚
		s.log.WithFields(logrus.Fields{
			"ref":      result.Record.Ref,
			"trace_id": traceID,
		}).Warn("验证码邮件发送失败")
	}

	return &RequestOtpResult{Ref: result.Record.Ref, ExpiresAt: result.ExpiresAt}, nil
}

// VerifyAndIssue 流程二：校验验证码，成功后签发访问令牌，
// 再发送第二封邮件——只携带确认页链接，绝不携带原始预约地址
func (s *VerificationService) VerifyAndIssue(ref, code string) error {
	record, err := s.otp.VerifyOtp(ref, code)
	if err != nil {
		return err
	}

	issued, err := s.token.IssueToken(record)
	if err != nil {
		return err
	}

	accessURL := fmt.Sprintf("%s/api/v1/invite/access?token=%s", s.baseURL, url.QueryEscape(issued.Token))
	if err := s.notifier.SendAccessLinkEmail(record.Email, accessURL); err != nil {
		s.log.WithFields(logrus.Fields{
			"ref":      ref,
			"trace_id": record.TraceID,
		}).Warn("确认链接邮件发送失败")
	}
	return nil
}

// ValidateAccess 流程三（GET）：只读校验，邮件客户端预取也安全
func (s *VerificationService) ValidateAccess(token, brand string) (*models.InviteRecord, error) {
	return s.token.Validate(token, brand)
}

// ConsumeAccess 流程三（POST确认）：单次揭示预约地址，交给客户端跳转
func (s *VerificationService) ConsumeAccess(token string) (string, error) {
	return s.token.Consume(token)
}

// BuildRequestLink 构造签名的发起链接（管理端派发使用）
func (s *VerificationService) BuildRequestLink(brand, email, position string) (string, error) {
	issuedAt := time.Now()
	sig, err := s.signature.Sign([]string{brand, email, position}, issuedAt)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("brand", brand)
	params.Set("email", email)
	params.Set("position", position)
	params.Set("ts", fmt.Sprintf("%d", issuedAt.Unix()))
	params.Set("sig", sig)
	return fmt.Sprintf("%s/api/v1/invite/request?%s", s.baseURL, params.Encode()), nil
}

// IsEnumerationSafe 判断错误是否可以原样透出给候选人
// 名录未命中一类的存在性信息不能透出（防枚举）；令牌态（已用/过期）绑定持有因子，可以透出
func IsEnumerationSafe(err error) bool {
	switch errors.GetCode(err) {
	case errors.CodeNotFound:
		return false
	default:
		return true
	}
}
