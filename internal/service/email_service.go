package service

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailMessage is a rendered email
type EmailMessage struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

// EmailSender delivers rendered messages
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SESSender delivers email through Amazon SES
type SESSender struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
	debug     bool
}

// NewSESSender loads the default AWS configuration for region
func NewSESSender(ctx context.Context, region, fromEmail, fromName string, debug bool) (*SESSender, error) {
	if debug {
		log.Printf("[DEBUG] Initializing email service with AWS SES")
		log.Printf("[DEBUG] AWS Region: %s", region)
		log.Printf("[DEBUG] From Email: %s", fromEmail)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("Email service enabled: provider=ses, from=%s, region=%s", fromEmail, region)
	return &SESSender{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		debug:     debug,
	}, nil
}

// Send sends an email using Amazon SES
func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(msg.HTMLBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(msg.TextBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}

	if s.debug && result.MessageId != nil {
		log.Printf("[DEBUG] SES message ID: %s", *result.MessageId)
	}
	log.Printf("Email sent successfully: to=%s, subject=%s", msg.To, msg.Subject)
	return nil
}

// SendGridSender delivers email through the SendGrid v3 API
type SendGridSender struct {
	key  string
	host string
	from *sgmail.Email
}

// NewSendGridSender creates a SendGrid sender
func NewSendGridSender(key, fromEmail, fromName string) *SendGridSender {
	log.Printf("Email service enabled: provider=sendgrid, from=%s", fromEmail)
	return &SendGridSender{
		key:  key,
		host: "https://api.sendgrid.com",
		from: sgmail.NewEmail(fromName, fromEmail),
	}
}

// Send sends an email using SendGrid
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.TextBody),
		sgmail.NewContent("text/html", msg.HTMLBody),
	)

	req := sendgrid.GetRequest(s.key, "/v3/mail/send", s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("failed to send email to %s: sendgrid status %d", msg.To, res.StatusCode)
	}

	log.Printf("Email sent successfully: to=%s, subject=%s", msg.To, msg.Subject)
	return nil
}

// LogSender writes messages to the log instead of sending them
type LogSender struct{}

// Send logs the message
func (LogSender) Send(ctx context.Context, msg EmailMessage) error {
	log.Printf("Skipping email send (service disabled): to=%s, subject=%s", msg.To, msg.Subject)
	log.Printf("[EMAIL] %s", msg.TextBody)
	return nil
}

// EmailService renders the application's emails and hands them to a sender
type EmailService struct {
	sender     EmailSender
	appName    string
	appBaseURL string
	debug      bool
}

// NewEmailService creates a new email service
func NewEmailService(sender EmailSender, appBaseURL string, debug bool) *EmailService {
	if sender == nil {
		sender = LogSender{}
	}
	return &EmailService{
		sender:     sender,
		appName:    "IELTS Prep",
		appBaseURL: appBaseURL,
		debug:      debug,
	}
}

// SendVerificationCode emails a one-time code that verifies the address
func (s *EmailService) SendVerificationCode(ctx context.Context, toEmail, toName, code string) error {
	if s.debug {
		log.Printf("[DEBUG] SendVerificationCode called: to=%s", toEmail)
	}
	return s.sendCode(ctx, toEmail, toName, code,
		"Verify your email address",
		"Welcome! Use the code below to verify your email address.")
}

// SendPasswordResetCode emails a one-time code that authorizes a password reset
func (s *EmailService) SendPasswordResetCode(ctx context.Context, toEmail, toName, code string) error {
	if s.debug {
		log.Printf("[DEBUG] SendPasswordResetCode called: to=%s", toEmail)
	}
	return s.sendCode(ctx, toEmail, toName, code,
		"Reset your password",
		"We received a request to reset your password. Use the code below to choose a new one. If you didn't request this, you can ignore this email.")
}

func (s *EmailService) sendCode(ctx context.Context, toEmail, toName, code, heading, intro string) error {
	subject := fmt.Sprintf("%s: %s", s.appName, heading)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #c0392b; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>%s</h1>
		</div>
		<div class="content">
			<p>Hi %s,</p>
			<p>%s</p>
			<p class="code">%s</p>
			<p><strong>This code expires in 60 seconds.</strong></p>
		</div>
		<div class="footer">
			<p>This is an automated email from %s (%s). Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, html.EscapeString(heading), html.EscapeString(toName), html.EscapeString(intro), code, s.appName, s.appBaseURL)

	textBody := fmt.Sprintf(`Hi %s,

%s

Your code: %s

This code expires in 60 seconds.

---
This is an automated email from %s. Please do not reply.
`, toName, intro, code, s.appName)

	return s.sender.Send(ctx, EmailMessage{
		To:       toEmail,
		ToName:   toName,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}
