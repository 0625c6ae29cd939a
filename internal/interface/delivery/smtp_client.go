package delivery

import (
	"context"
	"fmt"

	"outreach-service/internal/domain/repository"

	"gopkg.in/gomail.v2"
)

// SMTPClient sends through a plain SMTP relay
type SMTPClient struct {
	dialer *gomail.Dialer
	from   Sender
}

// NewSMTPClient creates a new SMTP delivery client
func NewSMTPClient(host string, port int, username, password string, from Sender) *SMTPClient {
	return &SMTPClient{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send dials per message; volumes are low and idle relay connections get dropped.
func (c *SMTPClient) Send(ctx context.Context, email repository.OutboundEmail) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.dialer.DialAndSend(buildMessage(c.from, email)); err != nil {
		return "", fmt.Errorf("smtp send failed: %w", err)
	}
	return "", nil
}
