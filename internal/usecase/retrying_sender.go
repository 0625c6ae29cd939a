package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"
	"outreach-service/pkg/metrics"

	"github.com/go-playground/validator/v10"
)

// SendRequest is one email or owner notification to deliver.
type SendRequest struct {
	To        string `validate:"required,email"`
	ToName    string
	Subject   string `validate:"required"`
	HTML      string `validate:"required_without=Text"`
	Text      string `validate:"required_without=HTML"`
	EmailType entity.EmailType
	Metadata  map[string]interface{}
}

// SendResult is the terminal outcome of RetryingSender.Send.
type SendResult struct {
	Success   bool
	MessageID string
	Attempts  int
	Duration  time.Duration
	Err       error
}

// ValidationError reports a request that can never be delivered. It is not retried.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid send request: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DeliveryError is returned when every attempt failed.
type DeliveryError struct {
	Attempts int
	Last     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("Failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *DeliveryError) Unwrap() error {
	return e.Last
}

// SenderConfig tunes the retry loop.
type SenderConfig struct {
	MaxRetries int
	// RetryDelay is multiplied by the number of the attempt that just failed.
	RetryDelay time.Duration
}

// RetryingSender wraps a DeliveryClient with bounded retries and records every
// terminal outcome in the stats ledger.
type RetryingSender struct {
	client   repository.DeliveryClient
	stats    *StatsService
	metrics  *metrics.Metrics
	logger   logger.Logger
	config   SenderConfig
	validate *validator.Validate
	sleep    func(time.Duration)
	now      func() time.Time
}

// NewRetryingSender creates a new retrying sender
func NewRetryingSender(
	client repository.DeliveryClient,
	stats *StatsService,
	metrics *metrics.Metrics,
	logger logger.Logger,
	config SenderConfig,
) *RetryingSender {
	if config.MaxRetries < 1 {
		config.MaxRetries = 3
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	return &RetryingSender{
		client:   client,
		stats:    stats,
		metrics:  metrics,
		logger:   logger,
		config:   config,
		validate: validator.New(),
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Send delivers req. Once started a dispatch runs to completion even if ctx
// is cancelled; the retry loop is bounded by MaxRetries.
func (s *RetryingSender) Send(ctx context.Context, req SendRequest) SendResult {
	start := s.now()
	ctx = context.WithoutCancel(ctx)

	if err := s.validate.Struct(req); err != nil {
		verr := &ValidationError{Err: err}
		s.logger.Warn("Rejected invalid send request",
			"to", req.To,
			"emailType", req.EmailType,
			"error", err)
		s.recordFailure(ctx, req, verr)
		return SendResult{Err: verr, Duration: s.now().Sub(start)}
	}

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		if s.metrics != nil {
			s.metrics.DeliveryAttempts.Inc()
		}

		messageID, err := s.client.Send(ctx, repository.OutboundEmail{
			To:       req.To,
			ToName:   req.ToName,
			Subject:  req.Subject,
			HTML:     req.HTML,
			Text:     req.Text,
			Metadata: req.Metadata,
		})
		if err == nil {
			result := SendResult{
				Success:   true,
				MessageID: messageID,
				Attempts:  attempt,
				Duration:  s.now().Sub(start),
			}
			s.recordSuccess(ctx, req, result)
			return result
		}

		lastErr = err
		s.logger.Warn("Delivery attempt failed",
			"to", req.To,
			"emailType", req.EmailType,
			"attempt", attempt,
			"maxRetries", s.config.MaxRetries,
			"error", err)

		if attempt < s.config.MaxRetries {
			s.sleep(s.config.RetryDelay * time.Duration(attempt))
		}
	}

	derr := &DeliveryError{Attempts: s.config.MaxRetries, Last: lastErr}
	s.recordFailure(ctx, req, derr)
	return SendResult{
		Attempts: s.config.MaxRetries,
		Duration: s.now().Sub(start),
		Err:      derr,
	}
}

func (s *RetryingSender) recordSuccess(ctx context.Context, req SendRequest, result SendResult) {
	if s.metrics != nil {
		s.metrics.EmailsSent.WithLabelValues(string(req.EmailType)).Inc()
		s.metrics.SendDuration.Observe(result.Duration.Seconds())
	}
	s.logger.Info("Email sent",
		"to", req.To,
		"emailType", req.EmailType,
		"attempts", result.Attempts,
		"duration", result.Duration)
	if s.stats != nil {
		s.stats.RecordSuccess(ctx, req.EmailType)
	}
}

func (s *RetryingSender) recordFailure(ctx context.Context, req SendRequest, err error) {
	if s.metrics != nil {
		s.metrics.EmailsFailed.WithLabelValues(string(req.EmailType)).Inc()
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		s.logger.Error("Email delivery failed",
			"to", req.To,
			"emailType", req.EmailType,
			"error", err)
	}
	if s.stats != nil {
		s.stats.RecordFailure(ctx, entity.SendErrorRecord{
			Recipient:  req.To,
			Subject:    req.Subject,
			EmailType:  req.EmailType,
			Message:    err.Error(),
			OccurredAt: s.now(),
		})
	}
}
