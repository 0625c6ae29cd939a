package repository

import (
	"context"
	"errors"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormOwnerRepository implements the OwnerRepository interface
type GormOwnerRepository struct {
	db *gorm.DB
}

// NewGormOwnerRepository creates a new GORM owner repository
func NewGormOwnerRepository(db *gorm.DB) repository.OwnerRepository {
	return &GormOwnerRepository{
		db: db,
	}
}

// Users GORM model for database mapping
type Users struct {
	ID        uint           `gorm:"primaryKey"`
	Name      string         `gorm:"column:name"`
	Email     string         `gorm:"column:email;unique"`
	Active    bool           `gorm:"column:active"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name
func (Users) TableName() string {
	return "users"
}

// GetByID finds an active sales user by ID
func (r *GormOwnerRepository) GetByID(ctx context.Context, id uint) (*entity.Owner, error) {
	var user Users
	result := r.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&user)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, result.Error
	}

	// Convert GORM model to domain entity
	return &entity.Owner{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}, nil
}
