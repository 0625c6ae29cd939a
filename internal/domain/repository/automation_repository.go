package repository

import (
	"context"
	"time"

	"outreach-service/internal/domain/entity"
)

// AutomationRepository persists AutomationRecords.
type AutomationRepository interface {
	FindByLead(ctx context.Context, leadID string) (*entity.AutomationRecord, error)
	// Create inserts the record unless one already exists for the lead, and
	// returns whichever record is stored afterwards.
	Create(ctx context.Context, record *entity.AutomationRecord) (*entity.AutomationRecord, error)
	// Save writes the record if its Version still matches the stored one and
	// bumps Version. It returns ErrVersionConflict otherwise.
	Save(ctx context.Context, record *entity.AutomationRecord) error
	// FindDue returns active records for which at least one stage condition
	// holds at now, least recently scanned first.
	FindDue(ctx context.Context, now time.Time, leadMaxEmails int, limit int) ([]*entity.AutomationRecord, error)
	// MarkScanned stamps LastScannedAt on the records without touching Version.
	MarkScanned(ctx context.Context, leadIDs []string, at time.Time) error
}
