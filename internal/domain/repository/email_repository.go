package repository

import (
	"context"
	"time"

	"outreach-service/internal/domain/entity"
)

// InboundEmailRepository logs messages fetched from the outreach mailbox.
type InboundEmailRepository interface {
	Save(ctx context.Context, email *entity.InboundEmail) error
	FindUnprocessed(ctx context.Context, limit int) ([]*entity.InboundEmail, error)
	GetLastEmail(ctx context.Context) (*entity.InboundEmail, error)
	ResetProcessingEmails(ctx context.Context) error
	FindByEmailIDs(ctx context.Context, emailIDs []string) (map[string]*entity.InboundEmail, error)
	UpdateStatusByEmailID(ctx context.Context, emailID string, status string, startedAt time.Time) error
	MarkAsProcessedByEmailID(ctx context.Context, emailID, status, processorType, errorDetail string, extractedData map[string]interface{}) error
}
