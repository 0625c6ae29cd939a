package repository

import (
	"context"
	"fmt"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEmailStatsRepository keeps the stats singleton. Every write is a single
// atomic update so concurrent senders never lose increments.
type MongoEmailStatsRepository struct {
	collection *mongo.Collection
}

// NewMongoEmailStatsRepository creates a new MongoDB email stats repository
func NewMongoEmailStatsRepository(db *mongo.Database) repository.EmailStatsRepository {
	return &MongoEmailStatsRepository{
		collection: db.Collection("emailStats"),
	}
}

// Get returns the stats document, creating it on first access.
func (r *MongoEmailStatsRepository) Get(ctx context.Context) (*entity.EmailStats, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	update := bson.M{
		"$setOnInsert": bson.M{
			"sent":         int64(0),
			"failed":       int64(0),
			"recentErrors": bson.A{},
			"updatedAt":    time.Now(),
		},
	}

	var stats entity.EmailStats
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": entity.EmailStatsID}, update, opts).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to load email stats: %w", err)
	}
	if stats.RecentErrors == nil {
		stats.RecentErrors = []entity.SendErrorRecord{}
	}
	return &stats, nil
}

// IncrementSent counts one delivered email
func (r *MongoEmailStatsRepository) IncrementSent(ctx context.Context, emailType entity.EmailType, at time.Time) error {
	inc := bson.M{"sent": 1}
	if emailType != "" {
		inc["byType."+string(emailType)+".sent"] = 1
	}

	return r.update(ctx, bson.M{
		"$inc": inc,
		"$set": bson.M{"updatedAt": at},
	})
}

// IncrementFailed counts one failed email and pushes it onto the bounded error ring.
func (r *MongoEmailStatsRepository) IncrementFailed(ctx context.Context, record entity.SendErrorRecord) error {
	inc := bson.M{"failed": 1}
	if record.EmailType != "" {
		inc["byType."+string(record.EmailType)+".failed"] = 1
	}

	return r.update(ctx, bson.M{
		"$inc": inc,
		"$set": bson.M{"updatedAt": record.OccurredAt},
		"$push": bson.M{
			"recentErrors": bson.M{
				"$each":  bson.A{record},
				"$slice": -entity.MaxRecentErrors,
			},
		},
	})
}

// ResetCounters zeroes all counters and clears the error ring.
func (r *MongoEmailStatsRepository) ResetCounters(ctx context.Context, at time.Time) error {
	return r.update(ctx, bson.M{
		"$set": bson.M{
			"sent":         int64(0),
			"failed":       int64(0),
			"byType":       bson.M{},
			"recentErrors": bson.A{},
			"resetAt":      at,
			"updatedAt":    at,
		},
	})
}

func (r *MongoEmailStatsRepository) update(ctx context.Context, update bson.M) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": entity.EmailStatsID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to update email stats: %w", err)
	}
	return nil
}
