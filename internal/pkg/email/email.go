package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/qs3c/coach_go_server/config"
)

const brand = "Couples Coach"

type Service struct {
	cfg *config.EmailConfig
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg}
}

// SendVerificationCode 发送注册验证码
func (s *Service) SendVerificationCode(to, code string) error {
	subject := "验证码 - " + brand
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #db2777;">邮箱验证</h2>
        <p>您好，</p>
        <p>您正在注册 %s 账号，验证码为：</p>
        <div style="background-color: #fdf2f8; padding: 15px; text-align: center; font-size: 24px; font-weight: bold; letter-spacing: 5px; margin: 20px 0;">
            %s
        </div>
        <p>验证码有效期为 24 小时。</p>
        <p>如果您没有进行此操作，请忽略此邮件。</p>
    </div>
</body>
</html>
`, brand, code)

	return s.send(to, subject, body)
}

// SendWelcome 发送欢迎邮件
func (s *Service) SendWelcome(to, username string) error {
	subject := "欢迎加入 - " + brand
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #db2777;">欢迎加入！</h2>
        <p>您好，%s！</p>
        <p>现在您可以录制与伴侣的对话、获取沟通分析，并通过每日打卡记录彼此的状态。</p>
    </div>
</body>
</html>
`, username)

	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, buildMessage(s.cfg.From, to, subject, body))
}

// buildMessage 组装 HTML 邮件，头部顺序固定
func buildMessage(from, to, subject, body string) []byte {
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var msg strings.Builder
	for _, h := range headers {
		msg.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}
