package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"

	"github.com/google/uuid"
)

// maxSaveAttempts bounds reload-and-reapply cycles on version conflicts.
const maxSaveAttempts = 3

// RecordOutcome is what happened to one record during a scan.
type RecordOutcome string

const (
	OutcomeSent    RecordOutcome = "sent"
	OutcomeFailed  RecordOutcome = "failed"
	OutcomeSkipped RecordOutcome = "skipped"
	OutcomeNotDue  RecordOutcome = "not_due"
	OutcomeGated   RecordOutcome = "gated"
	OutcomeError   RecordOutcome = "error"
)

// RecordResult reports the processing of one record.
type RecordResult struct {
	LeadID    string           `json:"leadId"`
	Stage     entity.Stage     `json:"stage"`
	Outcome   RecordOutcome    `json:"outcome"`
	EmailType entity.EmailType `json:"emailType,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Err       error            `json:"-"`
	// NeedsAdvance is set when the Lead stage is exhausted without a reply.
	NeedsAdvance bool `json:"needsAdvance,omitempty"`
}

// AutomationService drives AutomationRecords: it runs due actions through the
// sender, applies stage transitions and pauses, and persists every mutation.
type AutomationService struct {
	automationRepo repository.AutomationRepository
	leadRepo       repository.LeadRepository
	ownerRepo      repository.OwnerRepository
	machine        *StageMachine
	sender         *RetryingSender
	renderer       TemplateRenderer
	logger         logger.Logger
	now            func() time.Time
	newID          func() string
}

// NewAutomationService creates a new automation service
func NewAutomationService(
	automationRepo repository.AutomationRepository,
	leadRepo repository.LeadRepository,
	ownerRepo repository.OwnerRepository,
	machine *StageMachine,
	sender *RetryingSender,
	renderer TemplateRenderer,
	logger logger.Logger,
) *AutomationService {
	return &AutomationService{
		automationRepo: automationRepo,
		leadRepo:       leadRepo,
		ownerRepo:      ownerRepo,
		machine:        machine,
		sender:         sender,
		renderer:       renderer,
		logger:         logger,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// Machine exposes the state machine for read-only queries.
func (s *AutomationService) Machine() *StageMachine {
	return s.machine
}

// EnsureRecord returns the lead's record, creating it at stage if absent.
func (s *AutomationService) EnsureRecord(ctx context.Context, leadID string, stage entity.Stage) (*entity.AutomationRecord, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("invalid stage %q", stage)
	}

	record, err := s.automationRepo.FindByLead(ctx, leadID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load automation for lead %s: %w", leadID, err)
	}

	record, err = s.automationRepo.Create(ctx, s.machine.NewRecord(leadID, stage, s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to create automation for lead %s: %w", leadID, err)
	}
	s.logger.Info("Automation record created", "leadId", leadID, "stage", record.CurrentStage)
	return record, nil
}

// ProcessRecord runs the next due action of one record, if any, and persists
// the result. Errors are returned inside the RecordResult.
func (s *AutomationService) ProcessRecord(ctx context.Context, record *entity.AutomationRecord) RecordResult {
	result := RecordResult{LeadID: record.LeadID, Stage: record.CurrentStage}

	lead, err := s.leadRepo.FindByID(ctx, record.LeadID)
	if err != nil {
		result.Outcome = OutcomeError
		result.Err = fmt.Errorf("failed to load lead: %w", err)
		return result
	}

	now := s.now()
	action, ok := s.machine.NextAction(record, lead, now)
	if !ok {
		result.Outcome = OutcomeNotDue
		if !s.machine.PassesGlobalGate(record, lead) {
			result.Outcome = OutcomeGated
			result.Reason = gateReason(record, lead)
		}
		result.NeedsAdvance = s.machine.ShouldAdvanceToNeverReplied(record)
		return result
	}
	result.EmailType = action.EmailType

	req, skipReason, err := s.buildRequest(ctx, action, lead, func(owner *entity.Owner) (entity.RenderedEmail, error) {
		return s.renderer.Render(action, lead, owner)
	})
	if err != nil {
		result.Outcome = OutcomeError
		result.Err = err
		return result
	}
	if skipReason != "" {
		s.logger.Info("Skipping automation action",
			"leadId", record.LeadID,
			"stage", action.Stage,
			"emailType", action.EmailType,
			"reason", skipReason)
		result.Outcome = OutcomeSkipped
		result.Reason = skipReason
		return result
	}

	entryID := s.newID()
	req.Metadata["messageId"] = entryID
	sent := s.sender.Send(ctx, req)

	outcome := SendOutcome{
		Success:   sent.Success,
		Subject:   req.Subject,
		Recipient: req.To,
		Err:       sent.Err,
		Metadata: map[string]interface{}{
			"ordinal":    action.Ordinal,
			"attempts":   sent.Attempts,
			"durationMs": sent.Duration.Milliseconds(),
		},
	}
	if sent.MessageID != "" {
		outcome.Metadata["providerMessageId"] = sent.MessageID
	}

	saved, err := s.mutate(ctx, record, func(r *entity.AutomationRecord) error {
		s.machine.ApplySendOutcome(r, action, outcome, entryID, now)
		return nil
	})
	if err != nil {
		result.Outcome = OutcomeError
		result.Err = fmt.Errorf("failed to persist send outcome: %w", err)
		return result
	}

	result.NeedsAdvance = s.machine.ShouldAdvanceToNeverReplied(saved)
	if !sent.Success {
		result.Outcome = OutcomeFailed
		result.Err = sent.Err
		return result
	}
	result.Outcome = OutcomeSent
	return result
}

// UpdateStage moves the lead's automation to stage and then alerts the owner.
func (s *AutomationService) UpdateStage(ctx context.Context, leadID string, stage entity.Stage) (*entity.AutomationRecord, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("invalid stage %q", stage)
	}

	record, err := s.automationRepo.FindByLead(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.EnsureRecord(ctx, leadID, stage)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load automation for lead %s: %w", leadID, err)
	}

	now := s.now()
	var effect TransitionEffect
	saved, err := s.mutate(ctx, record, func(r *entity.AutomationRecord) error {
		effect = s.machine.EnterStage(r, stage, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update stage for lead %s: %w", leadID, err)
	}

	s.logger.Info("Automation stage updated",
		"leadId", leadID,
		"from", effect.From,
		"to", effect.To,
		"paused", effect.Paused,
		"resumed", effect.Resumed)

	if !effect.Terminal && effect.From != effect.To {
		if alerted := s.sendStageChangeAlert(ctx, saved, effect); alerted != nil {
			saved = alerted
		}
	}
	return saved, nil
}

// Pause stops automation for the lead until Resume is called.
func (s *AutomationService) Pause(ctx context.Context, leadID string, reason entity.PauseReason) (*entity.AutomationRecord, error) {
	record, err := s.automationRepo.FindByLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load automation for lead %s: %w", leadID, err)
	}
	now := s.now()
	return s.mutate(ctx, record, func(r *entity.AutomationRecord) error {
		s.machine.Pause(r, reason, now)
		return nil
	})
}

// Resume reactivates automation regardless of why it was paused.
func (s *AutomationService) Resume(ctx context.Context, leadID string) (*entity.AutomationRecord, error) {
	record, err := s.automationRepo.FindByLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load automation for lead %s: %w", leadID, err)
	}
	now := s.now()
	return s.mutate(ctx, record, func(r *entity.AutomationRecord) error {
		s.machine.Resume(r, now)
		return nil
	})
}

// ShouldAdvanceToNeverReplied answers the pipeline's question for one lead.
func (s *AutomationService) ShouldAdvanceToNeverReplied(ctx context.Context, leadID string) (bool, error) {
	record, err := s.automationRepo.FindByLead(ctx, leadID)
	if err != nil {
		return false, fmt.Errorf("failed to load automation for lead %s: %w", leadID, err)
	}
	return s.machine.ShouldAdvanceToNeverReplied(record), nil
}

// GetDetail returns the admin projection of the lead's record.
func (s *AutomationService) GetDetail(ctx context.Context, leadID string) (*entity.AutomationDetail, error) {
	record, err := s.automationRepo.FindByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return &entity.AutomationDetail{
		LeadID:       record.LeadID,
		CurrentStage: record.CurrentStage,
		StageLabel:   record.CurrentStage.Label(),
		IsActive:     record.IsActive,
		PausedReason: record.PausedReason,
		PausedAt:     record.PausedAt,
		ResumedAt:    record.ResumedAt,
		LeadReplied:  record.LeadReplied,
		StageData:    record.StageData,
		EmailHistory: record.EmailHistory,
		LastActivity: record.LastActivity,
	}, nil
}

// mutate applies fn to record and saves it. On a version conflict the record
// is reloaded and fn applied again to the fresh copy.
func (s *AutomationService) mutate(ctx context.Context, record *entity.AutomationRecord, fn func(*entity.AutomationRecord) error) (*entity.AutomationRecord, error) {
	current := record
	for attempt := 1; ; attempt++ {
		working := current.Clone()
		if err := fn(working); err != nil {
			return nil, err
		}

		err := s.automationRepo.Save(ctx, working)
		if err == nil {
			*record = *working
			return working, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= maxSaveAttempts {
			return nil, err
		}

		s.logger.Warn("Automation record changed concurrently, reapplying",
			"leadId", record.LeadID,
			"attempt", attempt)
		current, err = s.automationRepo.FindByLead(ctx, record.LeadID)
		if err != nil {
			return nil, err
		}
	}
}

// buildRequest resolves the recipient and renders the email. A non-empty
// skip reason means the action cannot run yet and nothing should change.
func (s *AutomationService) buildRequest(
	ctx context.Context,
	action entity.Action,
	lead *entity.Lead,
	render func(owner *entity.Owner) (entity.RenderedEmail, error),
) (SendRequest, string, error) {
	var owner *entity.Owner
	if lead.HasOwner() {
		o, err := s.ownerRepo.GetByID(ctx, *lead.AssignedOwnerID)
		switch {
		case err == nil:
			owner = o
		case errors.Is(err, repository.ErrNotFound):
		default:
			return SendRequest{}, "", fmt.Errorf("failed to load owner %d: %w", *lead.AssignedOwnerID, err)
		}
	}

	req := SendRequest{
		EmailType: action.EmailType,
		Metadata: map[string]interface{}{
			"leadId":    lead.ID,
			"stage":     string(action.Stage),
			"emailType": string(action.EmailType),
		},
	}

	switch action.Kind {
	case entity.ActionNotifyOwner:
		if owner == nil {
			return SendRequest{}, "no assigned owner", nil
		}
		req.To = owner.Email
		req.ToName = owner.Name
	case entity.ActionEmailLead:
		req.To = lead.Email
		req.ToName = lead.Name
	case entity.ActionNone:
		return SendRequest{}, "no action", nil
	}

	rendered, err := render(owner)
	if err != nil {
		return SendRequest{}, "", fmt.Errorf("failed to render %s: %w", action.EmailType, err)
	}
	req.Subject = rendered.Subject
	req.HTML = rendered.HTML
	req.Text = rendered.Text
	return req, "", nil
}

// sendStageChangeAlert notifies the owner about a transition. It is best
// effort: problems are logged and recorded in history, never returned.
func (s *AutomationService) sendStageChangeAlert(ctx context.Context, record *entity.AutomationRecord, effect TransitionEffect) *entity.AutomationRecord {
	lead, err := s.leadRepo.FindByID(ctx, record.LeadID)
	if err != nil {
		s.logger.Warn("Stage change alert skipped, lead not loaded", "leadId", record.LeadID, "error", err)
		return nil
	}

	action := entity.Action{
		Kind:      entity.ActionNotifyOwner,
		Stage:     effect.To,
		EmailType: entity.EmailTypeStageChangeAlert,
	}
	req, skipReason, err := s.buildRequest(ctx, action, lead, func(owner *entity.Owner) (entity.RenderedEmail, error) {
		return s.renderer.RenderStageChange(lead, owner, effect.From, effect.To)
	})
	if err != nil || skipReason != "" {
		s.logger.Info("Stage change alert skipped", "leadId", record.LeadID, "reason", skipReason, "error", err)
		return nil
	}

	entryID := s.newID()
	req.Metadata["messageId"] = entryID
	req.Metadata["fromStage"] = string(effect.From)
	sent := s.sender.Send(ctx, req)

	now := s.now()
	outcome := SendOutcome{
		Success:   sent.Success,
		Subject:   req.Subject,
		Recipient: req.To,
		Err:       sent.Err,
		Metadata:  map[string]interface{}{"fromStage": string(effect.From), "attempts": sent.Attempts},
	}
	saved, err := s.mutate(ctx, record, func(r *entity.AutomationRecord) error {
		s.machine.ApplySendOutcome(r, action, outcome, entryID, now)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record stage change alert", "leadId", record.LeadID, "error", err)
		return nil
	}
	return saved
}

func gateReason(record *entity.AutomationRecord, lead *entity.Lead) string {
	switch {
	case !record.IsActive:
		return "automation paused"
	case lead == nil:
		return "lead missing"
	case lead.Stage.IsTerminal():
		return "lead in terminal stage"
	case lead.AgingPaused:
		return "lead aging paused"
	}
	return ""
}
