package usecase

import (
	"context"
	"errors"

	"outreach-service/internal/domain/entity"
)

// ErrIgnored is returned by an InboundHandler for a message that needs no action.
var ErrIgnored = errors.New("inbound email ignored")

// TemplateRenderer renders the subject and bodies of automated emails.
type TemplateRenderer interface {
	Render(action entity.Action, lead *entity.Lead, owner *entity.Owner) (entity.RenderedEmail, error)
	RenderStageChange(lead *entity.Lead, owner *entity.Owner, from, to entity.Stage) (entity.RenderedEmail, error)
}

// InboundHandler defines the interface for inbound email handlers
type InboundHandler interface {
	// Name identifies the handler in logs and in the inbound email log
	Name() string

	// CanHandle determines if this handler can process the given email
	CanHandle(email *entity.InboundEmail) bool

	// Process handles the email. Returning ErrIgnored marks it skipped.
	Process(ctx context.Context, email *entity.InboundEmail) error
}

// SubjectRouter routes inbound emails to the appropriate handler
type SubjectRouter interface {
	// Register registers a handler; handlers are consulted in order
	Register(handler InboundHandler)

	// GetHandler returns the first handler that accepts the email
	GetHandler(email *entity.InboundEmail) InboundHandler
}
