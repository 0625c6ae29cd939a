package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// staleProcessingAfter is how long a message may stay PROCESSING before it is retried.
const staleProcessingAfter = 5 * time.Minute

// MongoInboundEmailRepository implements the InboundEmailRepository interface
type MongoInboundEmailRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoInboundEmailRepository creates a new MongoDB inbound email repository
func NewMongoInboundEmailRepository(ctx context.Context, db *mongo.Database) (repository.InboundEmailRepository, error) {
	collection := db.Collection("inboundEmails")

	emailIDIndex := mongo.IndexModel{
		Keys:    bson.M{"emailId": 1},
		Options: options.Index().SetUnique(true),
	}

	receivedAtIndex := mongo.IndexModel{
		Keys: bson.M{"receivedAt": -1},
	}

	// finding unprocessed emails oldest first
	unprocessedIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "processStatus", Value: 1},
			{Key: "receivedAt", Value: 1},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		emailIDIndex,
		receivedAtIndex,
		unprocessedIndex,
	}); err != nil {
		return nil, fmt.Errorf("failed to create inbound email indexes: %w", err)
	}

	return &MongoInboundEmailRepository{
		collection: collection,
		now:        time.Now,
	}, nil
}

// Save logs an email. Saving a message twice is not an error.
func (r *MongoInboundEmailRepository) Save(ctx context.Context, email *entity.InboundEmail) error {
	if email.ProcessStatus == "" {
		email.ProcessStatus = entity.StatusPending
	}

	_, err := r.collection.InsertOne(ctx, email)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// FindUnprocessed finds unprocessed emails (PENDING status or empty)
func (r *MongoInboundEmailRepository) FindUnprocessed(ctx context.Context, limit int) ([]*entity.InboundEmail, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"processStatus": ""},
			{"processStatus": entity.StatusPending},
			{"processStatus": bson.M{"$exists": false}},
		},
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "receivedAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var emails []*entity.InboundEmail
	if err := cursor.All(ctx, &emails); err != nil {
		return nil, err
	}

	return emails, nil
}

// ResetProcessingEmails resets emails stuck in PROCESSING state back to PENDING
func (r *MongoInboundEmailRepository) ResetProcessingEmails(ctx context.Context) error {
	staleTime := r.now().Add(-staleProcessingAfter)

	filter := bson.M{
		"processStatus": entity.StatusProcessing,
		"$or": []bson.M{
			{"processStartedAt": bson.M{"$lt": staleTime}},
			{"processStartedAt": bson.M{"$exists": false}},
		},
	}

	update := bson.M{
		"$set": bson.M{
			"processStatus": entity.StatusPending,
			"errorDetail":   "Reset from stale PROCESSING state",
		},
	}

	_, err := r.collection.UpdateMany(ctx, filter, update)
	return err
}

// GetLastEmail gets the most recently received email, or nil if none is logged.
func (r *MongoInboundEmailRepository) GetLastEmail(ctx context.Context) (*entity.InboundEmail, error) {
	var email entity.InboundEmail
	opts := options.FindOne().SetSort(bson.D{{Key: "receivedAt", Value: -1}})
	err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

// FindByEmailIDs finds multiple emails by Gmail message IDs (batch operation)
func (r *MongoInboundEmailRepository) FindByEmailIDs(ctx context.Context, emailIDs []string) (map[string]*entity.InboundEmail, error) {
	if len(emailIDs) == 0 {
		return make(map[string]*entity.InboundEmail), nil
	}

	filter := bson.M{"emailId": bson.M{"$in": emailIDs}}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make(map[string]*entity.InboundEmail)
	for cursor.Next(ctx) {
		var email entity.InboundEmail
		if err := cursor.Decode(&email); err != nil {
			continue
		}
		result[email.EmailID] = &email
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *MongoInboundEmailRepository) UpdateStatusByEmailID(ctx context.Context, emailID string, status string, startedAt time.Time) error {
	set := bson.M{"processStatus": status}
	if status == entity.StatusProcessing && !startedAt.IsZero() {
		set["processStartedAt"] = startedAt
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"emailId": emailID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("no document found with emailID %s: %w", emailID, repository.ErrNotFound)
	}

	return nil
}

func (r *MongoInboundEmailRepository) MarkAsProcessedByEmailID(ctx context.Context, emailID, status, processorType, errorDetail string, extractedData map[string]interface{}) error {
	set := bson.M{
		"processedAt":   r.now(),
		"processStatus": status,
		"processorType": processorType,
	}
	if len(extractedData) > 0 {
		set["extractedData"] = extractedData
	}
	if errorDetail != "" {
		set["errorDetail"] = errorDetail
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"emailId": emailID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("no document found with emailID %s: %w", emailID, repository.ErrNotFound)
	}

	return nil
}
