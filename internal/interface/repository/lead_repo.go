package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLeadRepository reads the CRM leads collection
type MongoLeadRepository struct {
	collection *mongo.Collection
}

// NewMongoLeadRepository creates a new MongoDB lead repository
func NewMongoLeadRepository(db *mongo.Database) repository.LeadRepository {
	return &MongoLeadRepository{
		collection: db.Collection("leads"),
	}
}

// FindByID finds a lead by ID
func (r *MongoLeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail finds the most recently contacted lead with the address, ignoring case.
func (r *MongoLeadRepository) FindByEmail(ctx context.Context, email string) (*entity.Lead, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, repository.ErrNotFound
	}
	filter := bson.M{"email": bson.M{"$regex": "^" + regexp.QuoteMeta(email) + "$", "$options": "i"}}
	return r.findOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "lastContactedAt", Value: -1}}))
}

// AddActivity appends an activity and refreshes lastContactedAt
func (r *MongoLeadRepository) AddActivity(ctx context.Context, leadID string, activity entity.LeadActivity) error {
	update := bson.M{
		"$push": bson.M{"activities": activity},
		"$set":  bson.M{"lastContactedAt": activity.OccurredAt},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": leadID}, update)
	if err != nil {
		return fmt.Errorf("failed to add lead activity: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("lead %s: %w", leadID, repository.ErrNotFound)
	}
	return nil
}

func (r *MongoLeadRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*entity.Lead, error) {
	var lead entity.Lead
	// activities are not needed by automation
	projection := options.FindOne().SetProjection(bson.M{"activities": 0})
	err := r.collection.FindOne(ctx, filter, append([]*options.FindOneOptions{projection}, opts...)...).Decode(&lead)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &lead, nil
}
