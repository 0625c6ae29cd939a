package entity

import "time"

// EmailStatsID is the _id of the process-wide stats document.
const EmailStatsID = "global"

// MaxRecentErrors bounds EmailStats.RecentErrors; the oldest entry is evicted first.
const MaxRecentErrors = 100

// SendErrorRecord is one entry of the recent error ring.
type SendErrorRecord struct {
	Recipient  string    `bson:"recipient" json:"recipient"`
	Subject    string    `bson:"subject" json:"subject"`
	EmailType  EmailType `bson:"emailType,omitempty" json:"emailType,omitempty"`
	Message    string    `bson:"message" json:"message"`
	OccurredAt time.Time `bson:"occurredAt" json:"occurredAt"`
}

// TypeCounters splits the unified counters per EmailType.
type TypeCounters struct {
	Sent   int64 `bson:"sent" json:"sent"`
	Failed int64 `bson:"failed" json:"failed"`
}

// EmailStats is the singleton send ledger.
type EmailStats struct {
	ID           string                     `bson:"_id" json:"-"`
	Sent         int64                      `bson:"sent" json:"sent"`
	Failed       int64                      `bson:"failed" json:"failed"`
	ByType       map[EmailType]TypeCounters `bson:"byType,omitempty" json:"byType,omitempty"`
	RecentErrors []SendErrorRecord          `bson:"recentErrors" json:"recentErrors"`
	ResetAt      *time.Time                 `bson:"resetAt,omitempty" json:"resetAt,omitempty"`
	UpdatedAt    time.Time                  `bson:"updatedAt" json:"updatedAt"`
}

// SuccessRate is sent / (sent + failed) as a percentage, 0 when nothing was sent.
func (s *EmailStats) SuccessRate() float64 {
	total := s.Sent + s.Failed
	if total == 0 {
		return 0
	}
	return float64(s.Sent) / float64(total) * 100
}

// StatsView is what administrative tooling reads.
type StatsView struct {
	Sent         int64                      `json:"sent"`
	Failed       int64                      `json:"failed"`
	SuccessRate  float64                    `json:"successRate"`
	ByType       map[EmailType]TypeCounters `json:"byType,omitempty"`
	RecentErrors []SendErrorRecord          `json:"recentErrors"`
	UpdatedAt    time.Time                  `json:"updatedAt"`
}
