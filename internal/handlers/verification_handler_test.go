package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"invitegate/internal/models"
	"invitegate/internal/services"
	"invitegate/pkg/config"
	"invitegate/pkg/errors"
	"invitegate/pkg/lock"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type handlerFixture struct {
	db     *gorm.DB
	router *gin.Engine
	svc    *services.VerificationService
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Brand{}, &models.RosterEntry{}, &models.InviteRecord{}, &models.SigningSecret{},
	))

	guard := services.NewInviteGuard(db)
	otp := services.NewOtpService(db, guard, config.OTPConfig{Length: 6, Expiry: 10 * time.Minute, MaxAttempts: 3})
	token := services.NewTokenService(db, lock.NewLocalLocker(), config.TokenConfig{Expiry: 48 * time.Hour}, 5*time.Second)
	signature := services.NewSignatureService(db, 7*24*time.Hour, 2*time.Minute)
	svc := services.NewVerificationService(db, signature, otp, token, services.NewLogNotifier(),
		config.AppConfig{PublicBaseURL: "https://apply.example.com"})

	handler := NewVerificationHandler(svc)
	router := gin.New()
	router.GET("/api/v1/invite/request", handler.RequestOtp)
	router.POST("/api/v1/invite/verify", handler.VerifyOtp)
	router.GET("/api/v1/invite/access", handler.AccessPage)
	router.POST("/api/v1/invite/confirm", handler.Confirm)

	return &handlerFixture{db: db, router: router, svc: svc}
}

func (f *handlerFixture) do(t *testing.T, method, target, body string) (int, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return int(envelope["code"].(float64)), envelope
}

func seedHandlerData(t *testing.T, f *handlerFixture) string {
	t.Helper()
	require.NoError(t, f.db.Create(&models.Brand{Code: "ROYAL", Name: "Royal", Active: true}).Error)
	require.NoError(t, f.db.Create(&models.RosterEntry{
		Brand:      "ROYAL",
		Email:      "a@x.com",
		EmailHash:  models.HashEmail("a@x.com"),
		Position:   "Waiter-CL200",
		BookingURL: "https://booking.example.com/slot/42",
		Active:     true,
	}).Error)

	link, err := f.svc.BuildRequestLink("ROYAL", "a@x.com", "Waiter-CL200")
	require.NoError(t, err)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	return "/api/v1/invite/request?" + parsed.RawQuery
}

func TestRequestEndpointHappyPath(t *testing.T) {
	f := newHandlerFixture(t)
	target := seedHandlerData(t, f)

	code, envelope := f.do(t, http.MethodGet, target, "")
	require.Equal(t, errors.CodeSuccess, code)

	data := envelope["data"].(map[string]interface{})
	require.NotEmpty(t, data["ref"])
}

func TestRequestEndpointEnumerationSafe(t *testing.T) {
	f := newHandlerFixture(t)
	seedHandlerData(t, f)

	// 名录外的邮箱：返回与成功一致的话术，不透出存在性
	link, err := f.svc.BuildRequestLink("ROYAL", "stranger@x.com", "Waiter-CL200")
	require.NoError(t, err)
	parsed, err := url.Parse(link)
	require.NoError(t, err)

	code, envelope := f.do(t, http.MethodGet, "/api/v1/invite/request?"+parsed.RawQuery, "")
	require.Equal(t, errors.CodeSuccess, code)
	require.NotContains(t, envelope["message"], "名录")
}

func TestRequestEndpointRejectsTamperedLink(t *testing.T) {
	f := newHandlerFixture(t)
	target := seedHandlerData(t, f)

	tampered := strings.Replace(target, "Waiter-CL200", "Chef-CL300", 1)
	code, _ := f.do(t, http.MethodGet, tampered, "")
	require.Equal(t, errors.CodeSignatureInvalid, code)
}

func TestConfirmEndpointRevealsOnce(t *testing.T) {
	f := newHandlerFixture(t)
	target := seedHandlerData(t, f)

	code, envelope := f.do(t, http.MethodGet, target, "")
	require.Equal(t, errors.CodeSuccess, code)
	ref := envelope["data"].(map[string]interface{})["ref"].(string)

	var row models.InviteRecord
	require.NoError(t, f.db.Where("ref = ?", ref).First(&row).Error)

	code, _ = f.do(t, http.MethodPost, "/api/v1/invite/verify",
		fmt.Sprintf(`{"ref":%q,"otp":%q}`, ref, row.Otp))
	require.Equal(t, errors.CodeSuccess, code)

	require.NoError(t, f.db.Where("ref = ?", ref).First(&row).Error)
	require.NotEmpty(t, row.Token)

	// GET确认页只读，不揭示预约地址
	code, envelope = f.do(t, http.MethodGet, "/api/v1/invite/access?token="+url.QueryEscape(row.Token), "")
	require.Equal(t, errors.CodeSuccess, code)
	require.NotContains(t, fmt.Sprint(envelope["data"]), "booking.example.com")

	// POST确认：单次揭示
	body := fmt.Sprintf(`{"token":%q}`, row.Token)
	code, envelope = f.do(t, http.MethodPost, "/api/v1/invite/confirm", body)
	require.Equal(t, errors.CodeSuccess, code)
	require.Equal(t, "https://booking.example.com/slot/42",
		envelope["data"].(map[string]interface{})["booking_url"])

	code, _ = f.do(t, http.MethodPost, "/api/v1/invite/confirm", body)
	require.Equal(t, errors.CodeTokenAlreadyUsed, code)
}
