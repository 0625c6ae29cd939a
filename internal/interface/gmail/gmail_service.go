package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/textproto"
	"strings"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"
	"outreach-service/internal/usecase"
	"outreach-service/pkg/logger"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	// initialLookback is how far back the first poll reaches.
	initialLookback = 7 * 24 * time.Hour
	unreadLabel     = "UNREAD"
)

// keptHeaders are copied onto the inbound log for the auto-responder filter.
var keptHeaders = map[string]bool{
	"Auto-Submitted": true,
	"X-Autoreply":    true,
	"In-Reply-To":    true,
	"References":     true,
	"Message-Id":     true,
}

// InboxPoller fetches new inbox messages, logs them and hands them to the orchestrator.
type InboxPoller struct {
	gmailService *gmail.Service
	user         string
	emailRepo    repository.InboundEmailRepository
	orchestrator *usecase.EmailOrchestrator
	logger       logger.Logger
	pollInterval time.Duration
}

// NewInboxPoller creates a new Gmail inbox poller
func NewInboxPoller(
	ctx context.Context,
	tokenSource oauth2.TokenSource,
	user string,
	emailRepo repository.InboundEmailRepository,
	orchestrator *usecase.EmailOrchestrator,
	logger logger.Logger,
	pollInterval time.Duration,
) (*InboxPoller, error) {
	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &InboxPoller{
		gmailService: service,
		user:         user,
		emailRepo:    emailRepo,
		orchestrator: orchestrator,
		logger:       logger,
		pollInterval: pollInterval,
	}, nil
}

// StartPolling polls Gmail until ctx is done
func (s *InboxPoller) StartPolling(ctx context.Context) {
	if err := s.orchestrator.ProcessPendingEmails(ctx); err != nil {
		s.logger.Error("Failed to process pending emails on startup", "error", err)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Gmail polling stopped")
			return
		case <-ticker.C:
			s.logger.Debug("Polling Gmail for new emails")
			if err := s.FetchAndProcessEmails(ctx); err != nil {
				s.logger.Error("Error polling Gmail", "error", err)
			}
		}
	}
}

// FetchAndProcessEmails fetches new inbox messages and processes them immediately
func (s *InboxPoller) FetchAndProcessEmails(ctx context.Context) error {
	lastEmail, err := s.emailRepo.GetLastEmail(ctx)
	if err != nil {
		s.logger.Error("Failed to get last email", "error", err)
	}

	fetchFrom := time.Now().Add(-initialLookback)
	if lastEmail != nil {
		fetchFrom = lastEmail.ReceivedAt
	}

	// after: takes whole days, duplicates are filtered below
	query := fmt.Sprintf("in:inbox after:%s", fetchFrom.Format("2006/01/02"))
	var messages []*gmail.Message
	err = s.gmailService.Users.Messages.List(s.user).Q(query).Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
		messages = append(messages, resp.Messages...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	if len(messages) == 0 {
		s.logger.Debug("No new messages found")
		return nil
	}

	emailIDs := make([]string, len(messages))
	for i, msg := range messages {
		emailIDs[i] = msg.Id
	}

	existingEmails, err := s.emailRepo.FindByEmailIDs(ctx, emailIDs)
	if err != nil {
		s.logger.Error("Failed to check existing emails", "error", err)
		existingEmails = make(map[string]*entity.InboundEmail)
	}

	newCount := 0
	processedCount := 0

	for _, msg := range messages {
		if _, exists := existingEmails[msg.Id]; exists {
			continue
		}

		fullMsg, err := s.gmailService.Users.Messages.Get(s.user, msg.Id).Format("full").Context(ctx).Do()
		if err != nil {
			s.logger.Error("Failed to get message", "msgId", msg.Id, "error", err)
			continue
		}

		email := ConvertMessage(fullMsg)

		if err := s.emailRepo.Save(ctx, email); err != nil {
			s.logger.Error("Failed to save email", "emailID", email.EmailID, "error", err)
			continue
		}
		newCount++

		if err := s.orchestrator.ProcessEmail(ctx, email); err != nil {
			s.logger.Error("Failed to process email", "emailID", email.EmailID, "error", err)
			continue
		}
		processedCount++
		s.markRead(ctx, email)
	}

	s.logger.Info("Email fetch and process completed",
		"totalMessages", len(messages),
		"newEmails", newCount,
		"processedEmails", processedCount)

	return nil
}

func (s *InboxPoller) markRead(ctx context.Context, email *entity.InboundEmail) {
	if !hasLabel(email.Labels, unreadLabel) {
		return
	}
	_, err := s.gmailService.Users.Messages.Modify(s.user, email.EmailID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{unreadLabel},
	}).Context(ctx).Do()
	if err != nil {
		s.logger.Warn("Failed to mark email read", "emailID", email.EmailID, "error", err)
	}
}

// ConvertMessage converts a Gmail message to the inbound log entity
func ConvertMessage(msg *gmail.Message) *entity.InboundEmail {
	email := &entity.InboundEmail{
		EmailID:       msg.Id,
		ThreadID:      msg.ThreadId,
		Labels:        msg.LabelIds,
		ProcessStatus: entity.StatusPending,
		Headers:       make(map[string]string),
		ReceivedAt:    time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload == nil {
		return email
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			email.From = header.Value
		case "To":
			email.To = header.Value
		case "Subject":
			email.Subject = header.Value
		default:
			name := textproto.CanonicalMIMEHeaderKey(header.Name)
			if keptHeaders[name] {
				email.Headers[name] = header.Value
			}
		}
	}

	collectBodies(msg.Payload, email)
	return email
}

// collectBodies walks nested multipart payloads and keeps the first plain and html parts.
func collectBodies(part *gmail.MessagePart, email *entity.InboundEmail) {
	if part == nil {
		return
	}
	if part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		data, err := decodeBody(part.Body.Data)
		if err == nil {
			switch {
			case strings.HasPrefix(part.MimeType, "text/html"):
				if email.HTMLBody == "" {
					email.HTMLBody = data
				}
			case strings.HasPrefix(part.MimeType, "text/plain"), part.MimeType == "":
				if email.Body == "" {
					email.Body = data
				}
			}
		}
	}
	for _, child := range part.Parts {
		collectBodies(child, email)
	}
}

func decodeBody(data string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
	}
	return string(decoded), err
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
