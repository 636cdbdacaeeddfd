package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/config"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/model"
)

// MongoStore is the durable ReviewStore backend. Documents live in the
// "reviews" collection; every write touches a single document, so no
// cross-submission contention exists.
type MongoStore struct {
	reviews *mongo.Collection
}

func NewMongoStore(ctx context.Context, cfg *config.StoreConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	coll := client.Database(cfg.Database).Collection("reviews")

	// Dedup lookups filter on code_hash + status sorted by created_at
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "code_hash", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("creating reviews index: %w", err)
	}

	return &MongoStore{reviews: coll}, nil
}

func (f ListFilter) toBSON() bson.M {
	query := bson.M{}
	if f.Language != "" {
		query["language"] = f.Language
	}
	if f.Status != "" {
		query["status"] = f.Status
	}
	created := bson.M{}
	if !f.From.IsZero() {
		created["$gte"] = f.From
	}
	if !f.To.IsZero() {
		created["$lte"] = f.To
	}
	if len(created) > 0 {
		query["created_at"] = created
	}
	return query
}

func (s *MongoStore) Insert(ctx context.Context, sub *model.Submission) error {
	if _, err := s.reviews.InsertOne(ctx, sub); err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*model.Submission, error) {
	var sub model.Submission
	err := s.reviews.FindOne(ctx, bson.M{"_id": id}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding submission: %w", err)
	}
	return &sub, nil
}

func (s *MongoStore) List(ctx context.Context, filter ListFilter, skip, limit int) ([]*model.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if skip > 0 {
		opts.SetSkip(int64(skip))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.reviews.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer cursor.Close(ctx)

	subs := make([]*model.Submission, 0)
	for cursor.Next(ctx) {
		var sub model.Submission
		if err := cursor.Decode(&sub); err != nil {
			return nil, fmt.Errorf("decoding submission: %w", err)
		}
		subs = append(subs, &sub)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating submissions: %w", err)
	}
	return subs, nil
}

func (s *MongoStore) FindCompletedByHash(ctx context.Context, codeHash string) (*model.Submission, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var sub model.Submission
	err := s.reviews.FindOne(ctx, bson.M{
		"code_hash": codeHash,
		"status":    model.StatusCompleted,
	}, opts).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding cached review: %w", err)
	}
	return &sub, nil
}

// transition applies an update only when the current status admits it and
// returns the updated document, so concurrent writers cannot move a
// submission backwards.
func (s *MongoStore) transition(ctx context.Context, id string, allowed bson.M, update bson.M) (*model.Submission, error) {
	filter := bson.M{"_id": id}
	for k, v := range allowed {
		filter[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var sub model.Submission
	err := s.reviews.FindOneAndUpdate(ctx, filter, bson.M{"$set": update}, opts).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the id is unknown or the submission already moved on
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("submission %s is not in an updatable state", id)
	}
	if err != nil {
		return nil, fmt.Errorf("updating submission: %w", err)
	}
	return &sub, nil
}

func (s *MongoStore) MarkInProgress(ctx context.Context, id string) (*model.Submission, error) {
	return s.transition(ctx, id,
		bson.M{"status": model.StatusPending},
		bson.M{"status": model.StatusInProgress},
	)
}

func (s *MongoStore) MarkCompleted(ctx context.Context, id string, feedback *model.Feedback) (*model.Submission, error) {
	return s.transition(ctx, id,
		bson.M{"status": bson.M{"$in": []string{model.StatusPending, model.StatusInProgress}}},
		bson.M{
			"status":       model.StatusCompleted,
			"feedback":     feedback,
			"completed_at": time.Now(),
		},
	)
}

func (s *MongoStore) MarkFailed(ctx context.Context, id string, errMsg string) (*model.Submission, error) {
	return s.transition(ctx, id,
		bson.M{"status": bson.M{"$in": []string{model.StatusPending, model.StatusInProgress}}},
		bson.M{
			"status":    model.StatusFailed,
			"error_msg": errMsg,
			"failed_at": time.Now(),
		},
	)
}
