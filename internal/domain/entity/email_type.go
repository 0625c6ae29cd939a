package entity

// EmailType identifies what an automated send was for. It is stored on every
// history entry and used as the stats discriminant.
type EmailType string

const (
	EmailTypeLeadIntro                EmailType = "lead_intro"
	EmailTypeLeadFollowUp             EmailType = "lead_followup"
	EmailTypeProposalFollowUp         EmailType = "proposal_followup"
	EmailTypeQualifiedNotification    EmailType = "qualified_notification"
	EmailTypeNegotiationsNotification EmailType = "negotiations_notification"
	EmailTypeStageChangeAlert         EmailType = "stage_change_alert"
)

// IsInternal reports whether the email goes to the assigned owner rather than the lead.
func (t EmailType) IsInternal() bool {
	switch t {
	case EmailTypeQualifiedNotification, EmailTypeNegotiationsNotification, EmailTypeStageChangeAlert:
		return true
	}
	return false
}

// ActionKind separates lead-facing emails from internal owner notifications.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionEmailLead
	ActionNotifyOwner
)

func (k ActionKind) String() string {
	switch k {
	case ActionEmailLead:
		return "email_lead"
	case ActionNotifyOwner:
		return "notify_owner"
	}
	return "none"
}

// Action is what the state machine decided to do for one record.
type Action struct {
	Kind      ActionKind
	Stage     Stage
	EmailType EmailType
	// Ordinal is the zero-based position of this send within its stage.
	Ordinal int
}
