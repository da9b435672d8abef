// Package mail sends notification emails over SMTP.
package mail

import (
	"context"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Cc      string
	Bcc     string
	Subject string
	Body    string
	IsHTML  bool
}

// Sender delivers email messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

// Send implements the Sender interface.
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// SMTPConfig holds the mail server settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

// SMTPSender delivers mail through an SMTP server.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender builds a sender for the configured server. Some providers
// require an app-specific authorization code instead of the account
// password.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	options := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	}
	if cfg.UseTLS {
		options = append(options, gomail.WithSSLPort(false))
	} else {
		options = append(options, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}

	client, err := gomail.NewClient(cfg.Host, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: from}, nil
}

// Send delivers one message. Error text distinguishes authentication,
// recipient, and connection failures so the agent can report them apart.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("无效的发件人地址: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("无效的收件人地址: %w", err)
	}
	if msg.Cc != "" {
		if err := m.Cc(msg.Cc); err != nil {
			return fmt.Errorf("无效的抄送地址: %w", err)
		}
	}
	if msg.Bcc != "" {
		if err := m.Bcc(msg.Bcc); err != nil {
			return fmt.Errorf("无效的密送地址: %w", err)
		}
	}
	m.Subject(msg.Subject)
	if msg.IsHTML {
		m.SetBodyString(gomail.TypeTextHTML, msg.Body)
	} else {
		m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return classifySendError(err)
	}
	return nil
}

// classifySendError maps SMTP failures to distinct user-facing messages.
func classifySendError(err error) error {
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "auth") || strings.Contains(text, "535"):
		return fmt.Errorf("邮件服务器认证失败，请检查用户名和授权码: %w", err)
	case strings.Contains(text, "recipient") || strings.Contains(text, "550") || strings.Contains(text, "553"):
		return fmt.Errorf("收件人地址被拒绝: %w", err)
	case strings.Contains(text, "connect") || strings.Contains(text, "dial") || strings.Contains(text, "timeout"):
		return fmt.Errorf("无法连接邮件服务器: %w", err)
	default:
		return fmt.Errorf("邮件发送失败: %w", err)
	}
}
