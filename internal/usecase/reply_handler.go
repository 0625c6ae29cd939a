package usecase

import (
	"context"
	"fmt"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"
	"outreach-service/pkg/metrics"
	"outreach-service/pkg/utils"
)

// replyPreviewLength caps the reply content kept on the record and activity.
const replyPreviewLength = 500

// ReplyEvent is an inbound reply already matched to a lead.
type ReplyEvent struct {
	LeadID  string
	From    string
	Subject string
	Body    string
}

// ReplyHandler pauses automation when a lead answers and records the reply
// as lead activity.
type ReplyHandler struct {
	automation     *AutomationService
	automationRepo repository.AutomationRepository
	leadRepo       repository.LeadRepository
	metrics        *metrics.Metrics
	logger         logger.Logger
	now            func() time.Time
}

// NewReplyHandler creates a new reply handler
func NewReplyHandler(
	automation *AutomationService,
	automationRepo repository.AutomationRepository,
	leadRepo repository.LeadRepository,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *ReplyHandler {
	return &ReplyHandler{
		automation:     automation,
		automationRepo: automationRepo,
		leadRepo:       leadRepo,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
	}
}

// HandleReply marks the lead's record replied and paused. It returns a
// wrapped repository.ErrNotFound when the lead has no automation record.
func (h *ReplyHandler) HandleReply(ctx context.Context, event ReplyEvent) (*entity.AutomationRecord, error) {
	record, err := h.automationRepo.FindByLead(ctx, event.LeadID)
	if err != nil {
		return nil, fmt.Errorf("no automation for lead %s: %w", event.LeadID, err)
	}

	content := utils.Truncate(utils.StripQuotedReply(event.Body), replyPreviewLength)
	now := h.now()

	saved, err := h.automation.mutate(ctx, record, func(r *entity.AutomationRecord) error {
		h.automation.machine.MarkReplied(r, event.Subject, content, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark lead %s replied: %w", event.LeadID, err)
	}

	activity := entity.LeadActivity{
		Type:        entity.ActivityEmailReply,
		Description: fmt.Sprintf("Replied to automated email: %s", event.Subject),
		Contact:     event.From,
		OccurredAt:  now,
	}
	if err := h.leadRepo.AddActivity(ctx, event.LeadID, activity); err != nil {
		return saved, fmt.Errorf("failed to record reply activity for lead %s: %w", event.LeadID, err)
	}

	if h.metrics != nil {
		h.metrics.RepliesHandled.Inc()
	}
	h.logger.Info("Lead reply recorded, automation paused",
		"leadId", event.LeadID,
		"from", event.From,
		"subject", event.Subject)
	return saved, nil
}
