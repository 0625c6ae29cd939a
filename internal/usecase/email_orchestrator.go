package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"
)

// pendingBatchSize bounds one ProcessPendingEmails pass.
const pendingBatchSize = 100

// EmailOrchestrator routes logged inbound emails to their handler and keeps
// the processing status of each message in the inbound log.
type EmailOrchestrator struct {
	emailRepo repository.InboundEmailRepository
	router    SubjectRouter
	logger    logger.Logger
	now       func() time.Time
}

// NewEmailOrchestrator creates a new email orchestrator
func NewEmailOrchestrator(
	emailRepo repository.InboundEmailRepository,
	router SubjectRouter,
	logger logger.Logger,
) *EmailOrchestrator {
	return &EmailOrchestrator{
		emailRepo: emailRepo,
		router:    router,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessEmail processes a single email immediately after fetching
func (o *EmailOrchestrator) ProcessEmail(ctx context.Context, email *entity.InboundEmail) error {
	handler := o.router.GetHandler(email)
	if handler == nil {
		o.logger.Debug("No handler found for email",
			"subject", email.Subject,
			"emailID", email.EmailID)

		// not an error, the message is simply not ours
		return o.emailRepo.MarkAsProcessedByEmailID(
			ctx,
			email.EmailID,
			entity.StatusSkipped,
			"none",
			"No matching handler found",
			map[string]interface{}{
				"subject": email.Subject,
				"reason":  "no_matching_handler",
			},
		)
	}

	handlerName := handler.Name()
	o.logger.Info("Processing email with handler",
		"emailID", email.EmailID,
		"handler", handlerName,
		"subject", email.Subject)

	if err := o.emailRepo.UpdateStatusByEmailID(ctx, email.EmailID, entity.StatusProcessing, o.now()); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	err := handler.Process(ctx, email)
	switch {
	case errors.Is(err, ErrIgnored):
		o.logger.Info("Email ignored by handler",
			"emailID", email.EmailID,
			"handler", handlerName,
			"reason", err)
		return o.emailRepo.MarkAsProcessedByEmailID(ctx, email.EmailID, entity.StatusSkipped, handlerName, err.Error(), nil)
	case err != nil:
		o.logger.Error("Handler failed to process email",
			"emailID", email.EmailID,
			"handler", handlerName,
			"error", err)

		// keep going with the other emails
		if markErr := o.emailRepo.MarkAsProcessedByEmailID(ctx, email.EmailID, entity.StatusFailed, handlerName, err.Error(), nil); markErr != nil {
			o.logger.Error("Failed to mark email as failed", "emailID", email.EmailID, "error", markErr)
		}
		return nil
	}

	o.logger.Info("Email processed successfully",
		"emailID", email.EmailID,
		"handler", handlerName)

	return o.emailRepo.MarkAsProcessedByEmailID(ctx, email.EmailID, entity.StatusCompleted, handlerName, "", email.ExtractedData)
}

// ProcessPendingEmails processes any emails that were missed or failed
func (o *EmailOrchestrator) ProcessPendingEmails(ctx context.Context) error {
	if err := o.emailRepo.ResetProcessingEmails(ctx); err != nil {
		o.logger.Error("Failed to reset stale emails", "error", err)
	}

	emails, err := o.emailRepo.FindUnprocessed(ctx, pendingBatchSize)
	if err != nil {
		return fmt.Errorf("failed to find unprocessed emails: %w", err)
	}

	if len(emails) == 0 {
		return nil
	}

	o.logger.Info("Processing pending emails", "count", len(emails))

	for _, email := range emails {
		if err := o.ProcessEmail(ctx, email); err != nil {
			o.logger.Error("Failed to process pending email",
				"emailID", email.EmailID,
				"error", err)
		}
	}

	return nil
}
