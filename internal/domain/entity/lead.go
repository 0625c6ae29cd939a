package entity

import "time"

// Lead is the part of a CRM lead that automation reads. The lead store owns it.
type Lead struct {
	ID              string         `bson:"_id" json:"id"`
	Name            string         `bson:"name" json:"name"`
	Email           string         `bson:"email" json:"email"`
	Company         string         `bson:"company,omitempty" json:"company,omitempty"`
	Stage           Stage          `bson:"stage" json:"stage"`
	AgingPaused     bool           `bson:"agingPaused" json:"agingPaused"`
	AssignedOwnerID *uint          `bson:"assignedOwnerId,omitempty" json:"assignedOwnerId,omitempty"`
	LastContactedAt *time.Time     `bson:"lastContactedAt,omitempty" json:"lastContactedAt,omitempty"`
	Activities      []LeadActivity `bson:"activities,omitempty" json:"activities,omitempty"`
}

// HasOwner reports whether somebody is assigned to the lead.
func (l *Lead) HasOwner() bool {
	return l.AssignedOwnerID != nil && *l.AssignedOwnerID != 0
}

// Activity types written by automation.
const (
	ActivityEmailReply = "email_reply"
)

// LeadActivity is an engagement event recorded against a lead.
type LeadActivity struct {
	Type        string    `bson:"type" json:"type"`
	Description string    `bson:"description" json:"description"`
	Contact     string    `bson:"contact,omitempty" json:"contact,omitempty"`
	OccurredAt  time.Time `bson:"occurredAt" json:"occurredAt"`
}

// Owner is the sales user a lead is assigned to.
type Owner struct {
	ID    uint
	Name  string
	Email string
}
