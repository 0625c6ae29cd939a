package entity

import (
	"time"
)

// Inbound email process status
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusSkipped    = "SKIPPED"
)

// InboundEmail is a message fetched from the outreach mailbox.
type InboundEmail struct {
	EmailID          string                 `bson:"emailId"`
	ThreadID         string                 `bson:"threadId,omitempty"`
	From             string                 `bson:"from"`
	To               string                 `bson:"to"`
	Subject          string                 `bson:"subject"`
	Body             string                 `bson:"body"`
	HTMLBody         string                 `bson:"htmlBody"`
	Headers          map[string]string      `bson:"headers,omitempty"`
	ReceivedAt       time.Time              `bson:"receivedAt"`
	Labels           []string               `bson:"labels"`
	ProcessedAt      time.Time              `bson:"processedAt"`
	ProcessStatus    string                 `bson:"processStatus"`
	ProcessorType    string                 `bson:"processorType"`
	ProcessStartedAt time.Time              `bson:"processStartedAt"`
	ErrorDetail      string                 `bson:"errorDetail"`
	ExtractedData    map[string]interface{} `bson:"extractedData"`
}

// Text returns the plain body, falling back to the HTML body.
func (e *InboundEmail) Text() string {
	if e.Body != "" {
		return e.Body
	}
	return e.HTMLBody
}

// RenderedEmail is the output of the template renderer.
type RenderedEmail struct {
	Subject string
	HTML    string
	Text    string
}
