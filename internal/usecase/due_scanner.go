package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"
	"outreach-service/pkg/metrics"
)

// ErrScanInProgress is returned when a scan is requested while another runs.
var ErrScanInProgress = errors.New("scan already in progress")

// ScanSummary reports one scan cycle.
type ScanSummary struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Found      int       `json:"found"`
	Processed  int       `json:"processed"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	// NeedsAdvance lists leads that used up the Lead stage without replying.
	NeedsAdvance []string       `json:"needsAdvance,omitempty"`
	Results      []RecordResult `json:"results"`
}

// DueScanner loads due automation records and drives each one through the
// automation service, one at a time.
type DueScanner struct {
	automationRepo repository.AutomationRepository
	automation     *AutomationService
	metrics        *metrics.Metrics
	logger         logger.Logger
	batchLimit     int
	running        atomic.Bool
	now            func() time.Time
}

// NewDueScanner creates a new due-work scanner. batchLimit <= 0 means no limit.
func NewDueScanner(
	automationRepo repository.AutomationRepository,
	automation *AutomationService,
	metrics *metrics.Metrics,
	logger logger.Logger,
	batchLimit int,
) *DueScanner {
	return &DueScanner{
		automationRepo: automationRepo,
		automation:     automation,
		metrics:        metrics,
		logger:         logger,
		batchLimit:     batchLimit,
		now:            time.Now,
	}
}

// RunScan performs one scan cycle. Failures of single records are counted in
// the summary; only a failed store query or an overlapping call return an error.
// If ctx is cancelled the scan stops between records.
func (s *DueScanner) RunScan(ctx context.Context) (*ScanSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		if s.metrics != nil {
			s.metrics.ScansSkipped.Inc()
		}
		s.logger.Warn("Skipping scan, previous scan still running")
		return nil, ErrScanInProgress
	}
	defer s.running.Store(false)

	summary := &ScanSummary{StartedAt: s.now(), Results: []RecordResult{}}
	defer func() {
		summary.FinishedAt = s.now()
		if s.metrics != nil {
			s.metrics.ScanDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
		}
	}()

	records, err := s.automationRepo.FindDue(ctx, summary.StartedAt, s.automation.Machine().Rules().LeadMaxEmails, s.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to find due automations: %w", err)
	}
	summary.Found = len(records)
	if len(records) == 0 {
		s.logger.Debug("No due automations")
		return summary, nil
	}

	s.logger.Info("Processing due automations", "count", len(records))

	scanned := make([]string, 0, len(records))
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("Scan interrupted",
				"processed", summary.Processed,
				"remaining", len(records)-summary.Processed,
				"error", err)
			break
		}

		result := s.processOne(record.LeadID, func() RecordResult {
			return s.automation.ProcessRecord(ctx, record)
		})
		s.tally(summary, result)
		scanned = append(scanned, record.LeadID)
	}

	// records that are still due go to the back of the next batch
	if err := s.automationRepo.MarkScanned(context.WithoutCancel(ctx), scanned, summary.StartedAt); err != nil {
		s.logger.Warn("Failed to mark scanned automations", "count", len(scanned), "error", err)
	}

	s.logger.Info("Scan completed",
		"found", summary.Found,
		"processed", summary.Processed,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"needsAdvance", len(summary.NeedsAdvance))
	return summary, nil
}

// processOne isolates a record so that a panic does not end the scan.
func (s *DueScanner) processOne(leadID string, fn func() RecordResult) (result RecordResult) {
	defer func() {
		if r := recover(); r != nil {
			result = RecordResult{
				LeadID:  leadID,
				Outcome: OutcomeError,
				Err:     fmt.Errorf("panic while processing automation: %v", r),
			}
		}
	}()
	return fn()
}

func (s *DueScanner) tally(summary *ScanSummary, result RecordResult) {
	summary.Processed++
	summary.Results = append(summary.Results, result)
	if result.NeedsAdvance {
		summary.NeedsAdvance = append(summary.NeedsAdvance, result.LeadID)
	}

	switch result.Outcome {
	case OutcomeSent:
		summary.Sent++
	case OutcomeFailed:
		summary.Failed++
		s.logger.Warn("Automation send failed",
			"leadId", result.LeadID,
			"stage", result.Stage,
			"emailType", result.EmailType,
			"error", result.Err)
	case OutcomeSkipped, OutcomeNotDue, OutcomeGated:
		summary.Skipped++
	case OutcomeError:
		summary.Errors++
		s.logger.Error("Failed to process automation",
			"leadId", result.LeadID,
			"stage", result.Stage,
			"error", result.Err)
	}

	if s.metrics != nil {
		s.metrics.ScanRecords.WithLabelValues(string(result.Outcome)).Inc()
	}
}
