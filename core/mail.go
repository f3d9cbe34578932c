package core

import (
	"context"
	"net/mail"
	"strings"
)

type (
	EmailMessage struct {
		From        mail.Address
		ReplyTo     string
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		TextContent string
		HTMLContent string
	}

	// EmailService is any transport that can deliver an email.
	EmailService interface {
		// Name is recorded as the outbox entry provider.
		Name() string
		// Send delivers msg synchronously and returns the provider reference (message id).
		Send(ctx context.Context, msg *EmailMessage) (string, error)
	}

	SMSMessage struct {
		To       string
		SenderID string
		Body     string
	}

	// SMSService is any transport that can deliver a text message.
	SMSService interface {
		Name() string
		Send(ctx context.Context, msg SMSMessage) (string, error)
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 || len(m.Cc) > 0 || len(m.Bcc) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// Recipients lists every To, Cc and Bcc address (SMTP envelope).
func (m *EmailMessage) Recipients() []string {
	rcpts := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	for _, group := range [][]mail.Address{m.To, m.Cc, m.Bcc} {
		for _, a := range group {
			rcpts = append(rcpts, a.Address)
		}
	}
	return rcpts
}

// JoinAddresses formats addrs for a mail header.
func JoinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
