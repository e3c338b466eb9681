// Package email sends transactional mail through Amazon SES.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// SESAPI is the subset of the SES client used to send mail
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Service handles sending emails via Amazon SES. A service without a sender
// address is disabled and silently skips every message.
type Service struct {
	client     SESAPI
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	logger     *zap.Logger
}

// Options configures the email service
type Options struct {
	AWSRegion  string
	FromEmail  string
	FromName   string
	AppBaseURL string
}

// New creates an email service backed by SES
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FromEmail == "" {
		logger.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &Service{enabled: false, logger: logger}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("Email service enabled",
		zap.String("from", opts.FromEmail),
		zap.String("region", opts.AWSRegion),
	)
	return NewWithClient(sesv2.NewFromConfig(cfg), opts, logger), nil
}

// NewWithClient creates an enabled service around an existing SES client
func NewWithClient(client SESAPI, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:     client,
		fromEmail:  opts.FromEmail,
		fromName:   opts.FromName,
		appBaseURL: opts.AppBaseURL,
		enabled:    true,
		logger:     logger,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *Service) IsEnabled() bool {
	return s.enabled
}

var invitationHTML = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<p>Hola {{.Name}},</p>
	<p>{{.Inviter}} invited you to join {{.Community}} on Visitas.</p>
	<p><a href="{{.Link}}">Accept the invitation</a></p>
	<p style="font-size: 12px; color: #666;">{{.Link}}</p>
	<p>The link expires on {{.Expires}}.</p>
</body>
</html>
`))

// Invitation carries what the invitation email shows
type Invitation struct {
	ToEmail   string
	ToName    string
	Inviter   string
	Community string
	Code      string
	Expires   string
}

// InvitationLink builds the URL the invitee opens
func (s *Service) InvitationLink(code string) string {
	return fmt.Sprintf("%s/invitations/%s", s.appBaseURL, url.PathEscape(code))
}

// SendInvitationEmail sends an account invitation to a member
func (s *Service) SendInvitationEmail(ctx context.Context, inv Invitation) error {
	if !s.enabled {
		s.logger.Info("Skipping email send (service disabled)", zap.String("kind", "invitation"), zap.String("to", inv.ToEmail))
		return nil
	}

	link := s.InvitationLink(inv.Code)
	var html bytes.Buffer
	err := invitationHTML.Execute(&html, map[string]string{
		"Name":      inv.ToName,
		"Inviter":   inv.Inviter,
		"Community": inv.Community,
		"Link":      link,
		"Expires":   inv.Expires,
	})
	if err != nil {
		return fmt.Errorf("failed to render invitation email: %w", err)
	}

	text := fmt.Sprintf("Hola %s,\n\n%s invited you to join %s on Visitas.\n\nAccept the invitation: %s\n\nThe link expires on %s.\n",
		inv.ToName, inv.Inviter, inv.Community, link, inv.Expires)

	return s.sendEmail(ctx, inv.ToEmail, "You're invited to Visitas", html.String(), text)
}

// sendEmail sends an email using Amazon SES
func (s *Service) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	fields := []zap.Field{zap.String("to", toEmail), zap.String("subject", subject)}
	if result != nil && result.MessageId != nil {
		fields = append(fields, zap.String("message_id", *result.MessageId))
	}
	s.logger.Info("Email sent successfully", fields...)
	return nil
}
