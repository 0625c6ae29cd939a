package delivery

import (
	"context"
	"fmt"

	"outreach-service/internal/domain/repository"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridClient sends through the SendGrid v3 API
type SendGridClient struct {
	client *sendgrid.Client
	from   Sender
}

// NewSendGridClient creates a new SendGrid delivery client
func NewSendGridClient(apiKey string, from Sender) *SendGridClient {
	return &SendGridClient{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
	}
}

func (c *SendGridClient) Send(ctx context.Context, email repository.OutboundEmail) (string, error) {
	from := mail.NewEmail(c.from.Name, c.from.Email)
	to := mail.NewEmail(email.ToName, email.To)
	message := mail.NewSingleEmail(from, email.Subject, to, email.Text, email.HTML)
	for key, value := range email.Metadata {
		message.SetCustomArg(key, fmt.Sprint(value))
	}

	response, err := c.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		return "", fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
