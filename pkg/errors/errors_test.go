package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetCode(t *testing.T) {
	err := New(CodeTokenAlreadyUsed, "该链接已被使用")
	require.Equal(t, CodeTokenAlreadyUsed, GetCode(err))
	require.True(t, IsCode(err, CodeTokenAlreadyUsed))

	// 包装后仍能提取错误码
	wrapped := fmt.Errorf("consume: %w", err)
	require.Equal(t, CodeTokenAlreadyUsed, GetCode(wrapped))

	// 非业务错误按服务器错误处理
	require.Equal(t, CodeServerError, GetCode(fmt.Errorf("boom")))
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(New(CodeLockTimeout, "")))
	require.True(t, IsRetryable(New(CodeStoreUnavailable, "")))

	// 其余错误对当前令牌/验证码都是终态
	for _, code := range []int{
		CodeSignatureInvalid, CodeLinkExpired, CodeInviteBlocked,
		CodeOTPExpired, CodeOTPLocked, CodeOTPInvalid,
		CodeTokenNotFound, CodeTokenExpired, CodeTokenAlreadyUsed, CodeTokenRevoked,
	} {
		require.False(t, IsRetryable(New(code, "")))
	}
}
