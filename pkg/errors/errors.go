package errors

import stderrors "errors"

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 验证流程错误码 (1000-1999)
const (
	CodeSignatureInvalid = 1001 // 签名无效
	CodeLinkExpired      = 1002 // 签名链接已过期
	CodeInviteBlocked    = 1003 // 邀请已被锁定，禁止重新发起
	CodeOTPExpired       = 1004 // 验证码已过期
	CodeOTPLocked        = 1005 // 验证码尝试次数已用尽
	CodeOTPInvalid       = 1006 // 验证码错误（仍可重试）
	CodeTokenNotFound    = 1007 // 访问令牌不存在
	CodeTokenExpired     = 1008 // 访问令牌已过期
	CodeTokenAlreadyUsed = 1009 // 访问令牌已被使用
	CodeTokenRevoked     = 1010 // 访问令牌已被撤销
	CodeLockTimeout      = 1011 // 获取锁超时（可重试）
	CodeStoreUnavailable = 1012 // 存储不可用（可重试）
	CodeBrandMismatch    = 1013 // 令牌与品牌不匹配
)

// AppError 带业务错误码的错误
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// New 创建业务错误
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// GetCode 提取错误中的业务错误码，非AppError一律按服务器错误处理
func GetCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// IsCode 判断错误是否携带指定错误码
func IsCode(err error, code int) bool {
	return GetCode(err) == code
}

// IsRetryable 判断错误是否允许调用方重试
// 只有锁超时和存储不可用是可重试的，其余对当前令牌/验证码都是终态
func IsRetryable(err error) bool {
	code := GetCode(err)
	return code == CodeLockTimeout || code == CodeStoreUnavailable
}
