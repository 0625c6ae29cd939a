package usecase

import (
	"errors"
	"testing"
	"time"

	"outreach-service/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeLead(stage entity.Stage) *entity.Lead {
	return &entity.Lead{ID: "lead-1", Name: "Jane", Email: "jane@example.com", Stage: stage}
}

func TestNewRecord(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())

	record := m.NewRecord("lead-1", entity.StageLead, baseTime)
	assert.True(t, record.IsActive)
	assert.Equal(t, entity.StageLead, record.CurrentStage)
	assert.Equal(t, 5, record.StageData[entity.StageLead].MaxEmails)
	require.NotNil(t, record.StageData[entity.StageLead].NextDueAt)
	assert.Equal(t, baseTime, *record.StageData[entity.StageLead].NextDueAt)

	proposal := m.NewRecord("lead-2", entity.StageProposalSent, baseTime)
	assert.Equal(t, baseTime.Add(24*time.Hour), *proposal.StageData[entity.StageProposalSent].NextDueAt)

	won := m.NewRecord("lead-3", entity.StageWon, baseTime)
	assert.False(t, won.IsActive)
	assert.Equal(t, entity.PauseReasonTerminalStage, won.PausedReason)
}

func TestNextAction_PerStage(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())

	tests := []struct {
		stage     entity.Stage
		kind      entity.ActionKind
		emailType entity.EmailType
	}{
		{entity.StageLead, entity.ActionEmailLead, entity.EmailTypeLeadIntro},
		{entity.StageQualified, entity.ActionNotifyOwner, entity.EmailTypeQualifiedNotification},
		{entity.StageNegotiations, entity.ActionNotifyOwner, entity.EmailTypeNegotiationsNotification},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			record := m.NewRecord("lead-1", tt.stage, baseTime)
			action, ok := m.NextAction(record, activeLead(tt.stage), baseTime)
			require.True(t, ok)
			assert.Equal(t, tt.kind, action.Kind)
			assert.Equal(t, tt.emailType, action.EmailType)
			assert.Equal(t, tt.stage, action.Stage)
		})
	}
}

func TestNextAction_ProposalWaitsForFirstDelay(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())
	record := m.NewRecord("lead-1", entity.StageProposalSent, baseTime)
	lead := activeLead(entity.StageProposalSent)

	_, ok := m.NextAction(record, lead, baseTime.Add(23*time.Hour))
	assert.False(t, ok)

	action, ok := m.NextAction(record, lead, baseTime.Add(24*time.Hour))
	require.True(t, ok)
	assert.Equal(t, entity.EmailTypeProposalFollowUp, action.EmailType)
}

func TestNextAction_NeverRepliedIsNeverDue(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())
	record := m.NewRecord("lead-1", entity.StageNeverReplied, baseTime)

	_, ok := m.NextAction(record, activeLead(entity.StageNeverReplied), baseTime.Add(365*24*time.Hour))
	assert.False(t, ok)
}

func TestGlobalGate(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())
	record := m.NewRecord("lead-1", entity.StageLead, baseTime)

	assert.True(t, m.PassesGlobalGate(record, activeLead(entity.StageLead)))
	assert.False(t, m.PassesGlobalGate(record, nil))

	aging := activeLead(entity.StageLead)
	aging.AgingPaused = true
	assert.False(t, m.PassesGlobalGate(record, aging))

	assert.False(t, m.PassesGlobalGate(record, activeLead(entity.StageLost)))

	m.Pause(record, entity.PauseReasonManual, baseTime)
	assert.False(t, m.PassesGlobalGate(record, activeLead(entity.StageLead)))
}

// Scenario A: the intro goes out and the next follow-up is two days later.
func TestApplySendOutcome_IntroSuccess(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())
	record := m.NewRecord("lead-1", entity.StageLead, baseTime)

	action, ok := m.NextAction(record, activeLead(entity.StageLead), baseTime)
	require.True(t, ok)
	require.Equal(t, entity.EmailTypeLeadIntro, action.EmailType)

	m.ApplySendOutcome(record, action, SendOutcome{Success: true, Subject: "Hi", Recipient: "jane@example.com"}, "e1", baseTime)

	data := record.StageData[entity.StageLead]
	assert.Equal(t, 1, data.EmailsSent)
	assert.Equal(t, baseTime.Add(48*time.Hour), *data.NextDueAt)
	assert.Equal(t, baseTime, *data.LastSentAt)
	require.Len(t, record.EmailHistory, 1)
	assert.Equal(t, entity.EmailTypeLeadIntro, record.EmailHistory[0].EmailType)
	assert.True(t, record.EmailHistory[0].Success)
	assert.Equal(t, baseTime, record.LastActivity)

	next, ok := m.NextAction(record, activeLead(entity.StageLead), baseTime.Add(48*time.Hour))
	require.True(t, ok)
	assert.Equal(t, entity.EmailTypeLeadFollowUp, next.EmailType)
	assert.Equal(t, 1, next.Ordinal)
}

func TestApplySendOutcome_FailureKeepsSchedule(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())
	record := m.NewRecord("lead-1", entity.StageLead, baseTime)
	before := *record.StageData[entity.StageLead].NextDueAt

	action, _ := m.NextAction(record, activeLead(entity.StageLead), baseTime)
	m.ApplySendOutcome(record, action, SendOutcome{Success: false, Err: errors.New("Failed after 3 attempts: boom")}, "e1", baseTime)

	data := record.StageData[entity.StageLead]
	assert.Equal(t, 0, data.EmailsSent)
	assert.Equal(t, before, *data.NextDueAt)
	require.Len(t, record.EmailHistory, 1)
	assert.False(t, record.EmailHistory[0].Success)
	assert.Contains(t, record.EmailHistory[0].Error, "Failed after 3 attempts")

	// cooldown hides the failed stage, then it is due again
	assert.False(t, m.IsStageDue(record, baseTime))
	assert.True(t, m.IsStageDue(record, baseTime.Add(time.Minute)))
}

func TestApplySendOutcome_NextDueNeverMovesBackward(t *testing.T) {
	rules := DefaultStageRules()
	rules.Cadence = time.Hour
	m := NewStageMachine(rules)
	record := m.NewRecord("lead-1", entity.StageQualified, baseTime)
	later := baseTime.Add(72 * time.Hour)
	record.StageData[entity.StageQualified].NextDueAt = &later

	action := entity.Action{Kind: entity.ActionNotifyOwner, Stage: entity.StageQualified, EmailType: entity.EmailTypeQualifiedNotification}
	m.ApplySendOutcome(record, action, SendOutcome{Success: true}, "e1", baseTime)

	assert.Equal(t, later, *record.StageData[entity.StageQualified].NextDueAt)
	assert.Equal(t, 1, record.StageData[entity.StageQualified].NotificationsSent)
}

func TestApplySendOutcome_StageChangeAlertLeavesCounters(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())
	record := m.NewRecord("lead-1", entity.StageQualified, baseTime)

	action := entity.Action{Kind: entity.ActionNotifyOwner, Stage: entity.StageQualified, EmailType: entity.EmailTypeStageChangeAlert}
	m.ApplySendOutcome(record, action, SendOutcome{Success: true}, "e1", baseTime)

	assert.Equal(t, 0, record.StageData[entity.StageQualified].NotificationsSent)
	assert.Len(t, record.EmailHistory, 1)
}

// Scenario B: a full Lead stage is not due and wants to advance.
func TestLeadCapReached(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())
	record := m.NewRecord("lead-1", entity.StageLead, baseTime)
	data := record.StageData[entity.StageLead]
	data.EmailsSent = 5
	data.MaxEmails = 5

	assert.False(t, m.IsStageDue(record, baseTime.Add(1000*time.Hour)))
	assert.True(t, m.ShouldAdvanceToNeverReplied(record))

	record.LeadReplied = true
	assert.False(t, m.ShouldAdvanceToNeverReplied(record))
}

func TestLeadCapNeverExceeded(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())
	record := m.NewRecord("lead-1", entity.StageLead, baseTime)
	lead := activeLead(entity.StageLead)

	now := baseTime
	for i := 0; i < 20; i++ {
		if action, ok := m.NextAction(record, lead, now); ok {
			m.ApplySendOutcome(record, action, SendOutcome{Success: true}, "e", now)
		}
		now = now.Add(49 * time.Hour)
	}

	assert.Equal(t, 5, record.StageData[entity.StageLead].EmailsSent)
	assert.Len(t, record.EmailHistory, 5)
	assert.Equal(t, entity.EmailTypeLeadIntro, record.EmailHistory[0].EmailType)
	for _, e := range record.EmailHistory[1:] {
		assert.Equal(t, entity.EmailTypeLeadFollowUp, e.EmailType)
	}
}

func TestEnterStage(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())
	record := m.NewRecord("lead-1", entity.StageLead, baseTime)
	record.StageData[entity.StageQualified].NotificationsSent = 3

	later := baseTime.Add(time.Hour)
	effect := m.EnterStage(record, entity.StageQualified, later)

	assert.Equal(t, entity.StageLead, effect.From)
	assert.Equal(t, entity.StageQualified, effect.To)
	assert.False(t, effect.Paused)
	assert.Equal(t, entity.StageQualified, record.CurrentStage)
	assert.Equal(t, 0, record.StageData[entity.StageQualified].NotificationsSent)
	assert.Equal(t, later, *record.StageData[entity.StageQualified].NextDueAt)
	assert.Equal(t, later, record.LastActivity)
}

func TestEnterStage_Terminal(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())
	record := m.NewRecord("lead-1", entity.StageNegotiations, baseTime)

	effect := m.EnterStage(record, entity.StageWon, baseTime)

	assert.True(t, effect.Terminal)
	assert.True(t, effect.Paused)
	assert.False(t, record.IsActive)
	assert.Equal(t, entity.PauseReasonTerminalStage, record.PausedReason)
	assert.Equal(t, entity.StageNegotiations, record.CurrentStage)
}

func TestPauseResumeRoundTrip(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())

	t.Run("reply pause cleared by stage change", func(t *testing.T) {
		record := m.NewRecord("lead-1", entity.StageProposalSent, baseTime)
		m.MarkReplied(record, "Re: proposal", "Sounds good", baseTime)
		assert.False(t, record.IsActive)
		assert.Contains(t, string(record.PausedReason), "replied")

		effect := m.EnterStage(record, entity.StageNegotiations, baseTime.Add(time.Hour))
		assert.True(t, effect.Resumed)
		assert.True(t, record.IsActive)
		assert.False(t, record.LeadReplied)
		assert.Nil(t, record.LastReplyDate)
		assert.Empty(t, record.ReplyContent)
		assert.Equal(t, entity.PauseReasonNone, record.PausedReason)
	})

	t.Run("terminal pause survives stage change", func(t *testing.T) {
		record := m.NewRecord("lead-1", entity.StageNegotiations, baseTime)
		m.EnterStage(record, entity.StageLost, baseTime)

		effect := m.EnterStage(record, entity.StageQualified, baseTime.Add(time.Hour))
		assert.False(t, effect.Resumed)
		assert.False(t, record.IsActive)
		assert.Equal(t, entity.PauseReasonTerminalStage, record.PausedReason)

		assert.True(t, m.Resume(record, baseTime.Add(2*time.Hour)))
		assert.True(t, record.IsActive)
		assert.NotNil(t, record.ResumedAt)
	})

	t.Run("manual pause survives stage change", func(t *testing.T) {
		record := m.NewRecord("lead-1", entity.StageLead, baseTime)
		m.Pause(record, "", baseTime)
		assert.Equal(t, entity.PauseReasonManual, record.PausedReason)

		m.EnterStage(record, entity.StageQualified, baseTime)
		assert.False(t, record.IsActive)

		assert.False(t, m.Resume(m.NewRecord("lead-2", entity.StageLead, baseTime), baseTime))
	})
}

func TestMarkReplied_KeepsStrongerPause(t *testing.T) {
	m := NewStageMachine(DefaultStageRules())

	tests := []struct {
		name   string
		pause  func(r *entity.AutomationRecord)
		reason entity.PauseReason
	}{
		{"terminal", func(r *entity.AutomationRecord) { m.EnterStage(r, entity.StageWon, baseTime) }, entity.PauseReasonTerminalStage},
		{"manual", func(r *entity.AutomationRecord) { m.Pause(r, "", baseTime) }, entity.PauseReasonManual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := m.NewRecord("lead-1", entity.StageNegotiations, baseTime)
			tt.pause(record)
			pausedAt := *record.PausedAt

			m.MarkReplied(record, "Thanks", "Thanks!", baseTime.Add(time.Hour))

			assert.True(t, record.LeadReplied)
			assert.Equal(t, "Thanks!", record.ReplyContent)
			assert.Equal(t, tt.reason, record.PausedReason)
			assert.Equal(t, pausedAt, *record.PausedAt)

			effect := m.EnterStage(record, entity.StageQualified, baseTime.Add(2*time.Hour))
			assert.False(t, effect.Resumed)
			assert.False(t, record.IsActive)
		})
	}
}
