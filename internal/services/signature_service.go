package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"invitegate/internal/models"
	"invitegate/pkg/errors"
	"invitegate/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 签名字段分隔符，不会出现在品牌代码/邮箱/职位描述中
const signDelimiter = "|"

// 签名取HMAC-SHA256摘要的前16个hex字符
const signLength = 16

// SignatureService 链接签名服务
// 对有序字段元组计算HMAC-SHA256签名，签名字段末尾拼接签发时间戳，
// 验证时独立重算并做常量时间比对，绝不解析传入的签名内容
type SignatureService struct {
	db         *gorm.DB
	log        *logrus.Logger
	maxAge     time.Duration
	clockSkew  time.Duration
	secretMu sync.Mutex
	secret     []byte
}

// NewSignatureService 创建签名服务
func NewSignatureService(db *gorm.DB, maxAge, clockSkew time.Duration) *SignatureService {
	return &SignatureService{
		db:        db,
		log:       logger.GetLogger(),
		maxAge:    maxAge,
		clockSkew: clockSkew,
	}
}

// getSecret 懒加载签名密钥，不存在时生成32字节随机密钥并持久化
// 轮换密钥会使所有未消费的链接失效，这是可接受的运维代价
func (s *SignatureService) getSecret() ([]byte, error) {
	s.secretMu.Lock()
	defer s.secretMu.Unlock()

	if s.secret != nil {
		return s.secret, nil
	}

	var record models.SigningSecret
	err := s.db.Where("name = ?", models.SigningSecretDefault).First(&record).Error
	if err == nil {
		secret, decErr := hex.DecodeString(record.Secret)
		if decErr != nil {
			return nil, fmt.Errorf("签名密钥解码失败: %v", decErr)
		}
		s.secret = secret
		return s.secret, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, errors.New(errors.CodeStoreUnavailable, "读取签名密钥失败")
	}

	// 首次使用，生成并持久化
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	record = models.SigningSecret{
		Name:   models.SigningSecretDefault,
		Secret: hex.EncodeToString(raw),
	}
	// 并发首启时可能撞唯一索引，回读已有密钥
	if err := s.db.Create(&record).Error; err != nil {
		if readErr := s.db.Where("name = ?", models.SigningSecretDefault).First(&record).Error; readErr != nil {
			return nil, errors.New(errors.CodeStoreUnavailable, "写入签名密钥失败")
		}
		raw, err = hex.DecodeString(record.Secret)
		if err != nil {
			return nil, err
		}
	}

	s.log.Info("签名密钥已初始化")
	s.secret = raw
	return s.secret, nil
}

// Sign 对字段元组和签发时间计算签名
func (s *SignatureService) Sign(parts []string, issuedAt time.Time) (string, error) {
	secret, err := s.getSecret()
	if err != nil {
		return "", err
	}

	payload := strings.Join(append(append([]string{}, parts...), strconv.FormatInt(issuedAt.Unix(), 10)), signDelimiter)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))[:signLength], nil
}

// Verify 重算签名并做常量时间比对，同时校验链接时效
func (s *SignatureService) Verify(parts []string, signature string, issuedAt time.Time) error {
	if err := s.CheckFreshness(issuedAt); err != nil {
		return err
	}

	expected, err := s.Sign(parts, issuedAt)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return errors.New(errors.CodeSignatureInvalid, "链接签名无效")
	}
	return nil
}

// CheckFreshness 校验签发时间：超龄即过期，未来时间超出时钟偏差视为伪造
// 部分验证模式下（完整字段尚未解析）先调用它，字段齐备后再做完整Verify
func (s *SignatureService) CheckFreshness(issuedAt time.Time) error {
	now := time.Now()
	if issuedAt.After(now.Add(s.clockSkew)) {
		return errors.New(errors.CodeSignatureInvalid, "链接签发时间无效")
	}
	if now.Sub(issuedAt) > s.maxAge {
		return errors.New(errors.CodeLinkExpired, "链接已过期，请联系招聘团队重新发送")
	}
	return nil
}

// ParseTimestamp 解析时间戳参数并校验时效，供仅拿到时间戳的页面先行拦截
func (s *SignatureService) ParseTimestamp(ts string) (time.Time, error) {
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || unix <= 0 {
		return time.Time{}, errors.New(errors.CodeSignatureInvalid, "链接参数格式错误")
	}
	issuedAt := time.Unix(unix, 0)
	if err := s.CheckFreshness(issuedAt); err != nil {
		return time.Time{}, err
	}
	return issuedAt, nil
}
