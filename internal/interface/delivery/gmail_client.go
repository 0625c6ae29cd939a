package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"outreach-service/internal/domain/repository"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailClient sends through the Gmail API as the authorized mailbox, so that
// replies land in the inbox the poller reads.
type GmailClient struct {
	service *gmail.Service
	user    string
	from    Sender
}

// NewGmailClient creates a new Gmail delivery client
func NewGmailClient(ctx context.Context, tokenSource oauth2.TokenSource, user string, from Sender) (*GmailClient, error) {
	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &GmailClient{service: service, user: user, from: from}, nil
}

func (c *GmailClient) Send(ctx context.Context, email repository.OutboundEmail) (string, error) {
	var buf bytes.Buffer
	if _, err := buildMessage(c.from, email).WriteTo(&buf); err != nil {
		return "", fmt.Errorf("failed to build message: %w", err)
	}

	sent, err := c.service.Users.Messages.Send(c.user, &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(buf.Bytes()),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail send failed: %w", err)
	}
	return sent.Id, nil
}
