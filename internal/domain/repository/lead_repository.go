package repository

import (
	"context"

	"outreach-service/internal/domain/entity"
)

// LeadRepository is the CRM lead store as seen by automation.
type LeadRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Lead, error)
	FindByEmail(ctx context.Context, email string) (*entity.Lead, error)
	// AddActivity records an engagement event and resets the lead's aging timer.
	AddActivity(ctx context.Context, leadID string, activity entity.LeadActivity) error
}

// OwnerRepository resolves assigned sales owners.
type OwnerRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Owner, error)
}
