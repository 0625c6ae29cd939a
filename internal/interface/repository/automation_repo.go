package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAutomationRepository implements the AutomationRepository interface
type MongoAutomationRepository struct {
	collection *mongo.Collection
}

// NewMongoAutomationRepository creates a new MongoDB automation repository
func NewMongoAutomationRepository(ctx context.Context, db *mongo.Database) (repository.AutomationRepository, error) {
	collection := db.Collection("leadAutomations")

	leadIndex := mongo.IndexModel{
		Keys:    bson.M{"leadId": 1},
		Options: options.Index().SetUnique(true),
	}

	// the due scan filters on isActive and walks least recently scanned first
	dueIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "isActive", Value: 1},
			{Key: "lastScannedAt", Value: 1},
			{Key: "lastActivity", Value: 1},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{leadIndex, dueIndex}); err != nil {
		return nil, fmt.Errorf("failed to create automation indexes: %w", err)
	}

	return &MongoAutomationRepository{
		collection: collection,
	}, nil
}

// FindByLead finds the record of a lead
func (r *MongoAutomationRepository) FindByLead(ctx context.Context, leadID string) (*entity.AutomationRecord, error) {
	var record entity.AutomationRecord
	err := r.collection.FindOne(ctx, bson.M{"leadId": leadID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Create inserts the record if the lead has none yet and returns the stored one.
func (r *MongoAutomationRepository) Create(ctx context.Context, record *entity.AutomationRecord) (*entity.AutomationRecord, error) {
	if record.ID == "" {
		record.ID = primitive.NewObjectID().Hex()
	}

	raw, err := bson.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode automation record: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode automation record: %w", err)
	}
	// set from the filter on insert
	delete(doc, "leadId")

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"leadId": record.LeadID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	// a concurrent upsert lost the race on the unique index; the record exists
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, err
	}

	return r.FindByLead(ctx, record.LeadID)
}

// Save replaces the record if nobody else wrote it since it was loaded.
func (r *MongoAutomationRepository) Save(ctx context.Context, record *entity.AutomationRecord) error {
	loaded := record.Version
	next := *record
	next.Version = loaded + 1

	filter := bson.M{"leadId": record.LeadID, "version": loaded}
	if loaded == 0 {
		// documents written before versioning have no field
		filter["version"] = bson.M{"$in": bson.A{0, nil}}
	}

	result, err := r.collection.ReplaceOne(ctx, filter, &next)
	if err != nil {
		return fmt.Errorf("failed to save automation for lead %s: %w", record.LeadID, err)
	}

	if result.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"leadId": record.LeadID})
		if err != nil {
			return err
		}
		if count == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}

	record.Version = next.Version
	return nil
}

// FindDue returns active records whose current stage has work due at now.
func (r *MongoAutomationRepository) FindDue(ctx context.Context, now time.Time, leadMaxEmails int, limit int) ([]*entity.AutomationRecord, error) {
	filter := bson.M{
		"isActive": true,
		"$or":      dueConditions(now, leadMaxEmails),
	}

	opts := options.Find().SetSort(dueSort())
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*entity.AutomationRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	return records, nil
}

// MarkScanned stamps the records handled by a scan. Records that stay due
// without a send (no owner yet, cooldown) move behind the others, so a full
// batch of them cannot starve the rest.
func (r *MongoAutomationRepository) MarkScanned(ctx context.Context, leadIDs []string, at time.Time) error {
	if len(leadIDs) == 0 {
		return nil
	}
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"leadId": bson.M{"$in": leadIDs}},
		bson.M{"$set": bson.M{"lastScannedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark %d automations scanned: %w", len(leadIDs), err)
	}
	return nil
}

// dueSort puts never scanned records first, then the least recently scanned.
func dueSort() bson.D {
	return bson.D{
		{Key: "lastScannedAt", Value: 1},
		{Key: "lastActivity", Value: 1},
	}
}

// dueConditions is one branch per automated stage that can fire.
func dueConditions(now time.Time, leadMaxEmails int) []bson.M {
	stageDue := func(stage entity.Stage) bson.M {
		return bson.M{
			"currentStage": stage,
			"stageData." + string(stage) + ".nextDueAt": bson.M{"$lte": now},
		}
	}

	lead := stageDue(entity.StageLead)
	lead["$expr"] = bson.M{
		"$lt": bson.A{
			bson.M{"$ifNull": bson.A{"$stageData.lead.emailsSent", 0}},
			bson.M{"$ifNull": bson.A{"$stageData.lead.maxEmails", leadMaxEmails}},
		},
	}

	return []bson.M{
		lead,
		stageDue(entity.StageQualified),
		stageDue(entity.StageProposalSent),
		stageDue(entity.StageNegotiations),
	}
}
