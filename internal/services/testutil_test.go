package services

import (
	"sync"
	"testing"
	"time"

	"invitegate/internal/models"
	"invitegate/pkg/config"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 内存sqlite，单连接保证并发测试共享同一份数据
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Brand{},
		&models.RosterEntry{},
		&models.InviteRecord{},
		&models.SigningSecret{},
		&models.AdminUser{},
		&models.AuditLog{},
	))
	return db
}

func testOtpConfig() config.OTPConfig {
	return config.OTPConfig{
		Length:      6,
		Expiry:      10 * time.Minute,
		MaxAttempts: 3,
	}
}

func testTokenConfig() config.TokenConfig {
	return config.TokenConfig{
		Expiry: 48 * time.Hour,
	}
}

// seedBrandAndRoster 写入品牌和名录，返回预约地址
func seedBrandAndRoster(t *testing.T, db *gorm.DB, brand, email, position string) string {
	t.Helper()

	bookingURL := "https://booking.example.com/slot/42"
	require.NoError(t, db.Create(&models.Brand{Code: brand, Name: brand, Active: true}).Error)
	require.NoError(t, db.Create(&models.RosterEntry{
		Brand:      brand,
		Email:      email,
		EmailHash:  models.HashEmail(email),
		Position:   position,
		BookingURL: bookingURL,
		Active:     true,
	}).Error)
	return bookingURL
}

// mockNotifier 记录通知调用，供编排器测试断言
type mockNotifier struct {
	mu          sync.Mutex
	otpEmails   []string
	otpCodes    []string
	accessURLs  []string
	accessMails []string
}

func (m *mockNotifier) SendOtpEmail(email, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otpEmails = append(m.otpEmails, email)
	m.otpCodes = append(m.otpCodes, code)
	return nil
}

func (m *mockNotifier) SendAccessLinkEmail(email, accessURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessMails = append(m.accessMails, email)
	m.accessURLs = append(m.accessURLs, accessURL)
	return nil
}
