package services

import (
	"testing"
	"time"

	"invitegate/internal/models"
	"invitegate/pkg/errors"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestOtpService(t *testing.T) (*OtpService, *gorm.DB) {
	db := newTestDB(t)
	guard := NewInviteGuard(db)
	return NewOtpService(db, guard, testOtpConfig()), db
}

func TestCreateOtp(t *testing.T) {
	svc, db := newTestOtpService(t)
	bookingURL := seedBrandAndRoster(t, db, "ROYAL", "a@x.com", "Waiter-CL200")

	result, err := svc.CreateOtp("ROYAL", "a@x.com", "Waiter-CL200", "trace-1")
	require.NoError(t, err)
	require.Len(t, result.Otp, 6)
	require.NotEmpty(t, result.Record.Ref)

	var row models.InviteRecord
	require.NoError(t, db.Where("ref = ?", result.Record.Ref).First(&row).Error)
	require.Equal(t, models.OtpStatusPending, row.OtpStatus)
	require.Equal(t, 0, row.OtpAttempts)
	require.Equal(t, models.HashEmail("a@x.com"), row.EmailHash)
	require.Equal(t, bookingURL, row.BookingURL)
}

func TestCreateOtpUnknownBrand(t *testing.T) {
	svc, _ := newTestOtpService(t)

	_, err := svc.CreateOtp("NOPE", "a@x.com", "Waiter-CL200", "")
	require.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestCreateOtpNotOnRoster(t *testing.T) {
	svc, db := newTestOtpService(t)
	seedBrandAndRoster(t, db, "ROYAL", "a@x.com", "Waiter-CL200")

	_, err := svc.CreateOtp("ROYAL", "stranger@x.com", "Waiter-CL200", "")
	require.True(t, errors.IsCode(err, errors.CodeNotFound))

	// 未通过校验不产生任何写入
	var count int64
	db.Model(&models.InviteRecord{}).Count(&count)
	require.Equal(t, int64(0), count)
}

func TestCreateOtpSupersedesPending(t *testing.T) {
	svc, db := newTestOtpService(t)
	seedBrandAndRoster(t, db, "ROYAL", "a@x.com", "Waiter-CL200")

	first, err := svc.CreateOtp("ROYAL", "a@x.com", "Waiter-CL200", "")
	require.NoError(t, err)
	second, err := svc.CreateOtp("ROYAL", "a@x.com", "Waiter-CL200", "")
	require.NoError(t, err)

	var firstRow models.InviteRecord
	require.NoError(t, db.Where("ref = ?", first.Record.Ref).First(&firstRow).Error)
	require.Equal(t, models.OtpStatusSuperseded, firstRow.OtpStatus)

	// 同一（品牌，邮箱）任一时刻至多一行PENDING
	var pending int64
	db.Model(&models.InviteRecord{}).
		Where("brand = ? AND email_hash = ? AND otp_status = ?",
			"ROYAL", models.HashEmail("a@x.com"), models.OtpStatusPending).
		Count(&pending)
	require.Equal(t, int64(1), pending)

	// 旧验证码作废，新验证码可用
	_, err = svc.VerifyOtp(first.Record.Ref, first.Otp)
	require.True(t, errors.IsCode(err, errors.CodeOTPExpired))
	_, err = svc.VerifyOtp(second.Record.Ref, second.Otp)
	require.NoError(t, err)
}

func TestCreateOtpBlockedByUsedInvite(t *testing.T) {
	svc, db := newTestOtpService(t)
	seedBrandAndRoster(t, db, "ROYAL", "a@x.com", "Waiter-CL200")

	// 历史行已达USED终态
	require.NoError(t, db.Create(&models.InviteRecord{
		Brand:       "ROYAL",
		Email:       "a@x.com",
		EmailHash:   models.HashEmail("a@x.com"),
		Position:    "Waiter-CL200",
		Ref:         "00000000-0000-0000-0000-000000000001",
		TokenStatus: models.TokenStatusUsed,
		Locked:      models.LockedFlag,
	}).Error)

	_, err := svc.CreateOtp("ROYAL", "a@x.com", "Waiter-CL200", "")
	require.True(t, errors.IsCode(err, errors.CodeInviteBlocked))
}

func TestVerifyOtpWrongCodeAttempts(t *testing.T) {
	svc, db := newTestOtpService(t)
	seedBrandAndRoster(t, db, "ROYAL", "a@x.com", "Waiter-CL200")

	result, err := svc.CreateOtp("ROYAL", "a@x.com", "Waiter-CL200", "")
	require.NoError(t, err)
	wrong := "000000"
	if result.Otp == wrong {
		wrong = "000001"
	}

	// 前两次错误仍可重试
	_, err = svc.VerifyOtp(result.Record.Ref, wrong)
	require.True(t, errors.IsCode(err, errors.CodeOTPInvalid))
	_, err = svc.VerifyOtp(result.Record.Ref, wrong)
	require.True(t, errors.IsCode(err, errors.CodeOTPInvalid))

	// 第三次错误恰好触发FAILED
	_, err = svc.VerifyOtp(result.Record.Ref, wrong)
	require.True(t, errors.IsCode(err, errors.CodeOTPLocked))

	var row models.InviteRecord
	require.NoError(t, db.Where("ref = ?", result.Record.Ref).First(&row).Error)
	require.Equal(t, models.OtpStatusFailed, row.OtpStatus)
	require.Equal(t, 3, row.OtpAttempts)

	// 锁定后正确的验证码也不再接受
	_, err = svc.VerifyOtp(result.Record.Ref, result.Otp)
	require.True(t, errors.IsCode(err, errors.CodeOTPExpired))
}

func TestVerifyOtpExpired(t *testing.T) {
	svc, db := newTestOtpService(t)
	seedBrandAndRoster(t, db, "ROYAL", "a@x.com", "Waiter-CL200")

	result, err := svc.CreateOtp("ROYAL", "a@x.com", "Waiter-CL200", "")
	require.NoError(t, err)

	// 把有效期拨回11分钟前
	past := time.Now().Add(-11 * time.Minute)
	require.NoError(t, db.Model(&models.InviteRecord{}).
		Where("ref = ?", result.Record.Ref).
		Update("otp_expiry", past).Error)

	_, err = svc.VerifyOtp(result.Record.Ref, result.Otp)
	require.True(t, errors.IsCode(err, errors.CodeOTPExpired))

	var row models.InviteRecord
	require.NoError(t, db.Where("ref = ?", result.Record.Ref).First(&row).Error)
	require.Equal(t, models.OtpStatusExpired, row.OtpStatus)
}

func TestVerifyOtpSuccess(t *testing.T) {
	svc, db := newTestOtpService(t)
	seedBrandAndRoster(t, db, "ROYAL", "a@x.com", "Waiter-CL200")

	result, err := svc.CreateOtp("ROYAL", "a@x.com", "Waiter-CL200", "")
	require.NoError(t, err)

	row, err := svc.VerifyOtp(result.Record.Ref, result.Otp)
	require.NoError(t, err)
	require.Equal(t, models.OtpStatusVerified, row.OtpStatus)
	require.NotNil(t, row.VerifiedAt)

	var stored models.InviteRecord
	require.NoError(t, db.Where("ref = ?", result.Record.Ref).First(&stored).Error)
	require.Equal(t, models.OtpStatusVerified, stored.OtpStatus)
}

func TestVerifyOtpUnknownRef(t *testing.T) {
	svc, _ := newTestOtpService(t)

	_, err := svc.VerifyOtp("11111111-1111-1111-1111-111111111111", "123456")
	require.True(t, errors.IsCode(err, errors.CodeNotFound))
}
