package delivery

import (
	"context"

	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"

	"github.com/google/uuid"
)

// LogClient only logs outgoing emails. Used in development.
type LogClient struct {
	logger logger.Logger
}

// NewLogClient creates a new logging delivery client
func NewLogClient(logger logger.Logger) *LogClient {
	return &LogClient{logger: logger}
}

func (c *LogClient) Send(ctx context.Context, email repository.OutboundEmail) (string, error) {
	id := uuid.NewString()
	c.logger.Info("Email delivery skipped, log provider",
		"messageId", id,
		"to", email.To,
		"subject", email.Subject,
		"metadata", email.Metadata)
	return id, nil
}
