package entity

import (
	"time"
)

// DefaultLeadMaxEmails is the Lead stage ceiling when none is configured.
const DefaultLeadMaxEmails = 5

// PauseReason says why automation stopped for a lead.
type PauseReason string

const (
	PauseReasonNone          PauseReason = ""
	PauseReasonLeadReplied   PauseReason = "Lead replied to automated email"
	PauseReasonTerminalStage PauseReason = "Lead moved to terminal stage"
	PauseReasonManual        PauseReason = "Paused manually"
)

// StageData holds the counters of one automated stage.
type StageData struct {
	EmailsSent        int        `bson:"emailsSent" json:"emailsSent"`
	NotificationsSent int        `bson:"notificationsSent" json:"notificationsSent"`
	LastSentAt        *time.Time `bson:"lastSentAt,omitempty" json:"lastSentAt,omitempty"`
	NextDueAt         *time.Time `bson:"nextDueAt,omitempty" json:"nextDueAt,omitempty"`
	LastFailedAt      *time.Time `bson:"lastFailedAt,omitempty" json:"lastFailedAt,omitempty"`
	MaxEmails         int        `bson:"maxEmails,omitempty" json:"maxEmails,omitempty"`
}

// SentCount returns the counter that applies to the stage's action kind.
func (d *StageData) SentCount(kind ActionKind) int {
	if kind == ActionNotifyOwner {
		return d.NotificationsSent
	}
	return d.EmailsSent
}

// EmailHistoryEntry is one send attempt. Entries are appended, never edited.
type EmailHistoryEntry struct {
	ID        string                 `bson:"id" json:"id"`
	EmailType EmailType              `bson:"emailType" json:"emailType"`
	Stage     Stage                  `bson:"stage" json:"stage"`
	SentAt    time.Time              `bson:"sentAt" json:"sentAt"`
	Subject   string                 `bson:"subject" json:"subject"`
	Recipient string                 `bson:"recipient" json:"recipient"`
	Success   bool                   `bson:"success" json:"success"`
	Error     string                 `bson:"error,omitempty" json:"error,omitempty"`
	Metadata  map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// AutomationRecord is the per-lead automation ledger and the unit of scheduling.
type AutomationRecord struct {
	ID           string               `bson:"_id,omitempty" json:"id,omitempty"`
	LeadID       string               `bson:"leadId" json:"leadId"`
	CurrentStage Stage                `bson:"currentStage" json:"currentStage"`
	IsActive     bool                 `bson:"isActive" json:"isActive"`
	StageData    map[Stage]*StageData `bson:"stageData" json:"stageData"`
	EmailHistory []EmailHistoryEntry  `bson:"emailHistory" json:"emailHistory"`

	PausedAt     *time.Time  `bson:"pausedAt,omitempty" json:"pausedAt,omitempty"`
	PausedReason PauseReason `bson:"pausedReason,omitempty" json:"pausedReason,omitempty"`
	ResumedAt    *time.Time  `bson:"resumedAt,omitempty" json:"resumedAt,omitempty"`

	LeadReplied   bool       `bson:"leadReplied" json:"leadReplied"`
	LastReplyDate *time.Time `bson:"lastReplyDate,omitempty" json:"lastReplyDate,omitempty"`
	ReplySubject  string     `bson:"replySubject,omitempty" json:"replySubject,omitempty"`
	ReplyContent  string     `bson:"replyContent,omitempty" json:"replyContent,omitempty"`

	LastActivity time.Time `bson:"lastActivity" json:"lastActivity"`
	// LastScannedAt rotates due records through bounded scan batches.
	LastScannedAt *time.Time `bson:"lastScannedAt,omitempty" json:"lastScannedAt,omitempty"`
	CreatedAt     time.Time  `bson:"createdAt" json:"createdAt"`
	// Version guards read-modify-write cycles against concurrent writers.
	Version int64 `bson:"version" json:"version"`
}

// Stage returns the data of stage s, creating an empty entry if needed.
func (r *AutomationRecord) Stage(s Stage) *StageData {
	if r.StageData == nil {
		r.StageData = make(map[Stage]*StageData)
	}
	d, ok := r.StageData[s]
	if !ok || d == nil {
		d = &StageData{}
		if s == StageLead {
			d.MaxEmails = DefaultLeadMaxEmails
		}
		r.StageData[s] = d
	}
	return d
}

// Current returns the data of the current stage.
func (r *AutomationRecord) Current() *StageData {
	return r.Stage(r.CurrentStage)
}

// AppendHistory adds an entry at the end of the history.
func (r *AutomationRecord) AppendHistory(e EmailHistoryEntry) {
	r.EmailHistory = append(r.EmailHistory, e)
}

// Clone returns a deep copy so a mutation can be re-applied after a conflict.
func (r *AutomationRecord) Clone() *AutomationRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.StageData = make(map[Stage]*StageData, len(r.StageData))
	for k, v := range r.StageData {
		if v == nil {
			continue
		}
		d := *v
		c.StageData[k] = &d
	}
	c.EmailHistory = append([]EmailHistoryEntry(nil), r.EmailHistory...)
	return &c
}

// AutomationDetail is the read-only admin projection of a record.
type AutomationDetail struct {
	LeadID       string               `json:"leadId"`
	CurrentStage Stage                `json:"currentStage"`
	StageLabel   string               `json:"stageLabel"`
	IsActive     bool                 `json:"isActive"`
	PausedReason PauseReason          `json:"pausedReason,omitempty"`
	PausedAt     *time.Time           `json:"pausedAt,omitempty"`
	ResumedAt    *time.Time           `json:"resumedAt,omitempty"`
	LeadReplied  bool                 `json:"leadReplied"`
	StageData    map[Stage]*StageData `json:"stageData"`
	EmailHistory []EmailHistoryEntry  `json:"emailHistory"`
	LastActivity time.Time            `json:"lastActivity"`
}
