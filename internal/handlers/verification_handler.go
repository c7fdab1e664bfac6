package handlers

import (
	"invitegate/internal/services"
	"invitegate/pkg/errors"
	"invitegate/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// VerificationHandler 候选人验证流程处理器
type VerificationHandler struct {
	verificationService *services.VerificationService
	validate            *validator.Validate
}

// NewVerificationHandler 创建验证流程处理器
func NewVerificationHandler(verificationService *services.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
		validate:            validator.New(),
	}
}

// RequestOtp 流程一：候选人打开签名链接，签发验证码
// @Summary 发起验证
// @Description 校验签名链接参数后签发验证码并发送邮件
// @Tags 候选人验证
// @Produce json
// @Param brand query string true "品牌代码"
// @Param email query string true "候选人邮箱"
// @Param position query string true "职位描述"
// @Param ts query string true "链接签发时间戳"
// @Param sig query string true "链接签名"
// @Success 200 {object} response.Response
// @Router /api/v1/invite/request [get]
func (h *VerificationHandler) RequestOtp(c *gin.Context) {
	brand := c.Query("brand")
	email := c.Query("email")
	position := c.Query("position")
	ts := c.Query("ts")
	sig := c.Query("sig")

	if brand == "" || position == "" || ts == "" || sig == "" {
		response.BadRequest(c, "链接参数不完整")
		return
	}
	if err := h.validate.Var(email, "required,email"); err != nil {
		response.BadRequest(c, "邮箱格式错误")
		return
	}

	traceID := uuid.New().String()
	result, err := h.verificationService.RequestOtp(brand, email, position, ts, sig, traceID)
	if err != nil {
		// 名录存在性不可透出（防枚举），统一返回与成功一致的话术
		if !services.IsEnumerationSafe(err) {
			response.SuccessWithMessage(c, "如果您的信息匹配，验证码已发送至邮箱", nil)
			return
		}
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"ref":        result.Ref,
		"expires_at": result.ExpiresAt,
	})
}

// VerifyOtpRequest 验证码校验请求
type VerifyOtpRequest struct {
	Ref string `json:"ref" binding:"required,uuid"`
	Otp string `json:"otp" binding:"required,numeric"`
}

// VerifyOtp 流程二：候选人提交验证码，成功后签发访问令牌并发送确认链接邮件
// @Summary 校验验证码
// @Tags 候选人验证
// @Accept json
// @Produce json
// @Param request body VerifyOtpRequest true "验证码"
// @Success 200 {object} response.Response
// @Router /api/v1/invite/verify [post]
func (h *VerificationHandler) VerifyOtp(c *gin.Context) {
	var req VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	if err := h.verificationService.VerifyAndIssue(req.Ref, req.Otp); err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithMessage(c, "验证通过，确认链接已发送至邮箱", nil)
}

// AccessPage 流程三（GET）：确认页只读校验
// 只读路径对邮件客户端的链接预取是安全的，绝不返回预约地址
// @Summary 确认页校验
// @Tags 候选人验证
// @Produce json
// @Param token query string true "访问令牌"
// @Param brand query string false "品牌代码"
// @Success 200 {object} response.Response
// @Router /api/v1/invite/access [get]
func (h *VerificationHandler) AccessPage(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, errors.CodeTokenNotFound, "访问令牌不存在")
		return
	}

	record, err := h.verificationService.ValidateAccess(token, c.Query("brand"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"brand":        record.Brand,
		"position":     record.Position,
		"token_expiry": record.TokenExpiry,
	})
}

// ConfirmRequest 消费确认请求
type ConfirmRequest struct {
	Token string `json:"token" binding:"required"`
}

// Confirm 流程三（POST）：消费令牌，单次揭示预约地址
// 地址只出现在POST响应里交给客户端跳转，不渲染进任何页面源码
// @Summary 确认并获取预约地址
// @Tags 候选人验证
// @Accept json
// @Produce json
// @Param request body ConfirmRequest true "访问令牌"
// @Success 200 {object} response.Response
// @Router /api/v1/invite/confirm [post]
func (h *VerificationHandler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	bookingURL, err := h.verificationService.ConsumeAccess(req.Token)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"booking_url": bookingURL,
	})
}
