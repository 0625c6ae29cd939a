package repository

import (
	"context"
)

// OutboundEmail is one message handed to a DeliveryClient.
type OutboundEmail struct {
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Metadata map[string]interface{}
}

// DeliveryClient delivers a single email. It may be called repeatedly with
// the same logical message; duplicates are prevented by the caller.
type DeliveryClient interface {
	Send(ctx context.Context, email OutboundEmail) (messageID string, err error)
}
