package usecase

import (
	"time"

	"outreach-service/internal/domain/entity"
)

// StageRules configures the timing of the state machine.
type StageRules struct {
	// Cadence is the gap between consecutive sends within a stage.
	Cadence time.Duration
	// ProposalFirstFollowUpDelay is the wait after entering ProposalSent
	// before its first follow-up.
	ProposalFirstFollowUpDelay time.Duration
	// FailureCooldown keeps a stage whose last dispatch failed from being
	// picked up again until it has elapsed. NextDueAt is left untouched.
	FailureCooldown time.Duration
	// LeadMaxEmails is the Lead stage ceiling for new records.
	LeadMaxEmails int
}

// DefaultStageRules returns the production timings.
func DefaultStageRules() StageRules {
	return StageRules{
		Cadence:                    48 * time.Hour,
		ProposalFirstFollowUpDelay: 24 * time.Hour,
		FailureCooldown:            time.Minute,
		LeadMaxEmails:              entity.DefaultLeadMaxEmails,
	}
}

// SendOutcome is what the state machine needs to know about a finished dispatch.
type SendOutcome struct {
	Success   bool
	Subject   string
	Recipient string
	Err       error
	Metadata  map[string]interface{}
}

// TransitionEffect describes what happened to a record in EnterStage.
type TransitionEffect struct {
	From     entity.Stage
	To       entity.Stage
	Paused   bool
	Resumed  bool
	Terminal bool
}

// StageMachine is the pure decision logic of automation. It never performs I/O.
type StageMachine struct {
	rules StageRules
}

// NewStageMachine creates a state machine with the given rules.
func NewStageMachine(rules StageRules) *StageMachine {
	if rules.LeadMaxEmails <= 0 {
		rules.LeadMaxEmails = entity.DefaultLeadMaxEmails
	}
	return &StageMachine{rules: rules}
}

// Rules returns the configured rules.
func (m *StageMachine) Rules() StageRules {
	return m.rules
}

// NewRecord builds the record of a lead entering the pipeline at stage.
func (m *StageMachine) NewRecord(leadID string, stage entity.Stage, now time.Time) *entity.AutomationRecord {
	record := &entity.AutomationRecord{
		LeadID:       leadID,
		CurrentStage: stage,
		IsActive:     true,
		StageData:    make(map[entity.Stage]*entity.StageData),
		EmailHistory: []entity.EmailHistoryEntry{},
		LastActivity: now,
		CreatedAt:    now,
	}
	for _, s := range entity.AutomatedStages {
		record.Stage(s)
	}
	record.Stage(entity.StageLead).MaxEmails = m.rules.LeadMaxEmails

	if stage.IsTerminal() {
		record.CurrentStage = entity.StageLead
		m.pause(record, entity.PauseReasonTerminalStage, now)
		return record
	}
	m.resetStage(record, stage, now)
	return record
}

// PassesGlobalGate reports whether automation may act on the record at all.
// A nil lead fails the gate.
func (m *StageMachine) PassesGlobalGate(record *entity.AutomationRecord, lead *entity.Lead) bool {
	if record == nil || !record.IsActive || lead == nil {
		return false
	}
	if lead.Stage.IsTerminal() || lead.AgingPaused {
		return false
	}
	return true
}

// IsStageDue evaluates the per-stage due condition of the record's current stage.
func (m *StageMachine) IsStageDue(record *entity.AutomationRecord, now time.Time) bool {
	return m.isDue(record, record.CurrentStage, now)
}

func (m *StageMachine) isDue(record *entity.AutomationRecord, stage entity.Stage, now time.Time) bool {
	data, ok := record.StageData[stage]
	if !ok || data == nil || data.NextDueAt == nil || data.NextDueAt.After(now) {
		return false
	}
	if data.LastFailedAt != nil && m.rules.FailureCooldown > 0 && now.Before(data.LastFailedAt.Add(m.rules.FailureCooldown)) {
		return false
	}

	switch stage {
	case entity.StageLead:
		return data.EmailsSent < m.leadCap(data)
	case entity.StageQualified, entity.StageProposalSent, entity.StageNegotiations:
		return true
	case entity.StageNeverReplied:
		return false
	}
	return false
}

// NextAction decides what to do for the record at now. The second result is
// false when nothing is due or the global gate is closed; no mutation follows.
func (m *StageMachine) NextAction(record *entity.AutomationRecord, lead *entity.Lead, now time.Time) (entity.Action, bool) {
	if !m.PassesGlobalGate(record, lead) || !m.IsStageDue(record, now) {
		return entity.Action{}, false
	}

	data := record.Current()
	switch record.CurrentStage {
	case entity.StageLead:
		action := entity.Action{
			Kind:      entity.ActionEmailLead,
			Stage:     entity.StageLead,
			EmailType: entity.EmailTypeLeadFollowUp,
			Ordinal:   data.EmailsSent,
		}
		if data.EmailsSent == 0 {
			action.EmailType = entity.EmailTypeLeadIntro
		}
		return action, true
	case entity.StageQualified:
		return entity.Action{
			Kind:      entity.ActionNotifyOwner,
			Stage:     entity.StageQualified,
			EmailType: entity.EmailTypeQualifiedNotification,
			Ordinal:   data.NotificationsSent,
		}, true
	case entity.StageProposalSent:
		return entity.Action{
			Kind:      entity.ActionEmailLead,
			Stage:     entity.StageProposalSent,
			EmailType: entity.EmailTypeProposalFollowUp,
			Ordinal:   data.EmailsSent,
		}, true
	case entity.StageNegotiations:
		return entity.Action{
			Kind:      entity.ActionNotifyOwner,
			Stage:     entity.StageNegotiations,
			EmailType: entity.EmailTypeNegotiationsNotification,
			Ordinal:   data.NotificationsSent,
		}, true
	case entity.StageNeverReplied:
		return entity.Action{}, false
	}
	return entity.Action{}, false
}

// ShouldAdvanceToNeverReplied reports whether the Lead stage ran out of emails
// without a reply. Moving the lead is up to the pipeline.
func (m *StageMachine) ShouldAdvanceToNeverReplied(record *entity.AutomationRecord) bool {
	if record == nil || record.CurrentStage != entity.StageLead || record.LeadReplied {
		return false
	}
	data := record.Stage(entity.StageLead)
	return data.EmailsSent >= m.leadCap(data)
}

// ApplySendOutcome mutates the record after a dispatch of action finished.
// Failed dispatches are recorded but leave NextDueAt where it was.
func (m *StageMachine) ApplySendOutcome(record *entity.AutomationRecord, action entity.Action, outcome SendOutcome, entryID string, now time.Time) {
	entry := entity.EmailHistoryEntry{
		ID:        entryID,
		EmailType: action.EmailType,
		Stage:     action.Stage,
		SentAt:    now,
		Subject:   outcome.Subject,
		Recipient: outcome.Recipient,
		Success:   outcome.Success,
		Metadata:  outcome.Metadata,
	}
	if outcome.Err != nil {
		entry.Error = outcome.Err.Error()
	}
	record.AppendHistory(entry)
	record.LastActivity = now

	if action.EmailType == entity.EmailTypeStageChangeAlert {
		return
	}

	data := record.Stage(action.Stage)
	if !outcome.Success {
		failedAt := now
		data.LastFailedAt = &failedAt
		return
	}

	switch action.Kind {
	case entity.ActionNotifyOwner:
		data.NotificationsSent++
	case entity.ActionEmailLead:
		data.EmailsSent++
	case entity.ActionNone:
		return
	}
	sentAt := now
	data.LastSentAt = &sentAt
	data.LastFailedAt = nil

	next := now.Add(m.rules.Cadence)
	if data.NextDueAt == nil || next.After(*data.NextDueAt) {
		data.NextDueAt = &next
	}
}

// EnterStage applies a stage transition. Terminal stages pause automation;
// other stages reset their own counters and clear a reply pause.
func (m *StageMachine) EnterStage(record *entity.AutomationRecord, stage entity.Stage, now time.Time) TransitionEffect {
	effect := TransitionEffect{From: record.CurrentStage, To: stage}
	record.LastActivity = now

	if stage.IsTerminal() {
		m.pause(record, entity.PauseReasonTerminalStage, now)
		effect.Paused = true
		effect.Terminal = true
		return effect
	}

	if !record.IsActive && record.PausedReason == entity.PauseReasonLeadReplied {
		m.resume(record, now)
		effect.Resumed = true
	}
	record.LeadReplied = false
	record.LastReplyDate = nil
	record.ReplySubject = ""
	record.ReplyContent = ""

	record.CurrentStage = stage
	m.resetStage(record, stage, now)
	return effect
}

// MarkReplied records the reply and pauses the record because the lead
// answered. A terminal or manual pause keeps its reason, so only an explicit
// Resume can lift it.
func (m *StageMachine) MarkReplied(record *entity.AutomationRecord, subject, content string, now time.Time) {
	replied := now
	record.LeadReplied = true
	record.LastReplyDate = &replied
	record.ReplySubject = subject
	record.ReplyContent = content
	if record.IsActive || record.PausedReason == entity.PauseReasonLeadReplied {
		m.pause(record, entity.PauseReasonLeadReplied, now)
	}
	record.LastActivity = now
}

// Pause stops automation for a manual reason.
func (m *StageMachine) Pause(record *entity.AutomationRecord, reason entity.PauseReason, now time.Time) {
	if reason == entity.PauseReasonNone {
		reason = entity.PauseReasonManual
	}
	m.pause(record, reason, now)
	record.LastActivity = now
}

// Resume reactivates a paused record. A current stage without a schedule
// becomes due immediately.
func (m *StageMachine) Resume(record *entity.AutomationRecord, now time.Time) bool {
	if record.IsActive {
		return false
	}
	m.resume(record, now)
	data := record.Current()
	if data.NextDueAt == nil && record.CurrentStage != entity.StageNeverReplied {
		due := now
		data.NextDueAt = &due
	}
	record.LastActivity = now
	return true
}

func (m *StageMachine) pause(record *entity.AutomationRecord, reason entity.PauseReason, now time.Time) {
	pausedAt := now
	record.IsActive = false
	record.PausedAt = &pausedAt
	record.PausedReason = reason
}

func (m *StageMachine) resume(record *entity.AutomationRecord, now time.Time) {
	resumedAt := now
	record.IsActive = true
	record.ResumedAt = &resumedAt
	record.PausedAt = nil
	record.PausedReason = entity.PauseReasonNone
}

func (m *StageMachine) resetStage(record *entity.AutomationRecord, stage entity.Stage, now time.Time) {
	data := record.Stage(stage)
	data.EmailsSent = 0
	data.NotificationsSent = 0
	data.LastSentAt = nil
	data.LastFailedAt = nil
	if stage == entity.StageLead && data.MaxEmails <= 0 {
		data.MaxEmails = m.rules.LeadMaxEmails
	}

	switch stage {
	case entity.StageNeverReplied:
		data.NextDueAt = nil
	case entity.StageProposalSent:
		due := now.Add(m.rules.ProposalFirstFollowUpDelay)
		data.NextDueAt = &due
	case entity.StageLead, entity.StageQualified, entity.StageNegotiations:
		due := now
		data.NextDueAt = &due
	}
}

func (m *StageMachine) leadCap(data *entity.StageData) int {
	if data.MaxEmails > 0 {
		return data.MaxEmails
	}
	return m.rules.LeadMaxEmails
}
