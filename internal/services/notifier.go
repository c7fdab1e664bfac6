package services

import (
	"fmt"
	"net/smtp"
	"time"

	"invitegate/pkg/config"
	"invitegate/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Notifier 通知端口
// 由编排器在状态写入提交之后调用；发送失败只上报不回滚，状态比送达更重要
type Notifier interface {
	SendOtpEmail(email, code string, expiresAt time.Time) error
	SendAccessLinkEmail(email, accessURL string) error
}

// SMTPNotifier 通过SMTP发送通知邮件
type SMTPNotifier struct {
	cfg config.SMTPConfig
	log *logrus.Logger
}

// NewSMTPNotifier 创建SMTP通知器
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		cfg: cfg,
		log: logger.GetLogger(),
	}
}

// SendOtpEmail 发送验证码邮件
func (n *SMTPNotifier) SendOtpEmail(email, code string, expiresAt time.Time) error {
	subject := "面试预约验证码"
	body := fmt.Sprintf("您的验证码是 %s，%s 前有效。请勿将验证码告知他人。",
		code, expiresAt.Format("15:04"))
	return n.send(email, subject, body)
}

// SendAccessLinkEmail 发送确认页链接邮件（只携带确认页地址，绝不携带预约地址）
func (n *SMTPNotifier) SendAccessLinkEmail(email, accessURL string) error {
	subject := "面试预约确认链接"
	body := fmt.Sprintf("身份验证已通过，请打开以下链接并点击确认，获取您的预约地址：\r\n%s", accessURL)
	return n.send(email, subject, body)
}

func (n *SMTPNotifier) send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		n.cfg.From, to, subject, body))

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{to}, msg); err != nil {
		n.log.Errorf("发送邮件失败 (to=%s): %v", to, err)
		return err
	}
	return nil
}

// LogNotifier 未配置SMTP时的降级实现，只记录日志
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.GetLogger()}
}

// SendOtpEmail 记录验证码发送事件，不输出验证码本身
func (n *LogNotifier) SendOtpEmail(email, code string, expiresAt time.Time) error {
	n.log.WithFields(logrus.Fields{
		"email":   email,
		"expires": expiresAt,
	}).Info("[通知] 验证码邮件（SMTP未配置，仅记录）")
	return nil
}

// SendAccessLinkEmail 记录确认链接发送事件
func (n *LogNotifier) SendAccessLinkEmail(email, accessURL string) error {
	n.log.WithFields(logrus.Fields{
		"email": email,
	}).Info("[通知] 确认链接邮件（SMTP未配置，仅记录）")
	return nil
}

// NewNotifier 按配置选择通知实现
func NewNotifier(cfg config.SMTPConfig) Notifier {
	if cfg.Host == "" {
		return NewLogNotifier()
	}
	return NewSMTPNotifier(cfg)
}
