package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"
	"outreach-service/pkg/utils"
)

// AutoResponderFilter claims auto-replies, bounces and our own messages so
// that they never count as a lead reply. Register it before LeadReplyHandler.
type AutoResponderFilter struct {
	ownAddress string
	logger     logger.Logger
}

// NewAutoResponderFilter creates the filter. ownAddress is the mailbox we send from.
func NewAutoResponderFilter(ownAddress string, logger logger.Logger) *AutoResponderFilter {
	return &AutoResponderFilter{
		ownAddress: strings.ToLower(ownAddress),
		logger:     logger,
	}
}

func (f *AutoResponderFilter) Name() string {
	return "auto_responder_filter"
}

func (f *AutoResponderFilter) CanHandle(email *entity.InboundEmail) bool {
	from := utils.ExtractAddress(email.From)
	if from == "" || (f.ownAddress != "" && from == f.ownAddress) {
		return true
	}
	if strings.HasPrefix(from, "mailer-daemon@") || strings.HasPrefix(from, "postmaster@") {
		return true
	}
	if v, ok := header(email, "Auto-Submitted"); ok && !strings.EqualFold(v, "no") {
		return true
	}
	if _, ok := header(email, "X-Autoreply"); ok {
		return true
	}
	return utils.LooksAutomated(email.Subject)
}

func (f *AutoResponderFilter) Process(ctx context.Context, email *entity.InboundEmail) error {
	f.logger.Debug("Ignoring automated inbound email", "emailID", email.EmailID, "from", email.From)
	return fmt.Errorf("%w: automated or own message", ErrIgnored)
}

// LeadReplyHandler matches a message to a lead by the sender address and
// hands it to the ReplyHandler.
type LeadReplyHandler struct {
	leadRepo repository.LeadRepository
	replies  *ReplyHandler
	logger   logger.Logger
}

// NewLeadReplyHandler creates a new lead reply handler
func NewLeadReplyHandler(leadRepo repository.LeadRepository, replies *ReplyHandler, logger logger.Logger) *LeadReplyHandler {
	return &LeadReplyHandler{
		leadRepo: leadRepo,
		replies:  replies,
		logger:   logger,
	}
}

func (h *LeadReplyHandler) Name() string {
	return "lead_reply"
}

func (h *LeadReplyHandler) CanHandle(email *entity.InboundEmail) bool {
	return utils.ExtractAddress(email.From) != ""
}

func (h *LeadReplyHandler) Process(ctx context.Context, email *entity.InboundEmail) error {
	from := utils.ExtractAddress(email.From)
	lead, err := h.leadRepo.FindByEmail(ctx, from)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: sender %s is not a lead", ErrIgnored, from)
	}
	if err != nil {
		return fmt.Errorf("failed to look up lead by email: %w", err)
	}

	body := email.Body
	if body == "" {
		body = utils.StripHTML(email.HTMLBody)
	}

	record, err := h.replies.HandleReply(ctx, ReplyEvent{
		LeadID:  lead.ID,
		From:    from,
		Subject: utils.NormalizeSubject(email.Subject),
		Body:    body,
	})
	if err != nil {
		return err
	}

	email.ExtractedData = map[string]interface{}{
		"leadId": lead.ID,
		"stage":  string(record.CurrentStage),
	}
	return nil
}

func header(email *entity.InboundEmail, name string) (string, bool) {
	for k, v := range email.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
