package queue

import (
	"context"
	"time"

	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Publisher is the producer side of the queue, all webhook and scheduler
// code depends on.
type Publisher interface {
	Publish(ctx context.Context, event common_models.ChangeEvent) error
}

type QueueRepository interface {
	Publisher
	Dequeue(ctx context.Context, visibility time.Duration) (*Message, error)
	Ack(ctx context.Context, id primitive.ObjectID) error
	Nack(ctx context.Context, id primitive.ObjectID, delay time.Duration, maxAttempts int, reason string) error
	EnsureIndexes(ctx context.Context) error
}

type QueueRepositoryImpl struct {
	collection *mongo.Collection
}

func NewQueueRepository(db *database.MongodbDB) QueueRepository {
	return &QueueRepositoryImpl{
		collection: db.DB.Collection("sync_events"),
	}
}

func (r *QueueRepositoryImpl) Publish(ctx context.Context, event common_models.ChangeEvent) error {
	now := time.Now()
	msg := Message{
		ID:          primitive.NewObjectID(),
		Event:       event,
		Status:      StatusPending,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.collection.InsertOne(ctx, msg)
	return err
}

// Dequeue atomically claims the oldest deliverable message. The claim makes
// the message invisible for the visibility window; a crashed worker's claim
// simply expires and the message is redelivered.
func (r *QueueRepositoryImpl) Dequeue(ctx context.Context, visibility time.Duration) (*Message, error) {
	now := time.Now()
	filter := bson.M{
		"status":       bson.M{"$in": []string{StatusPending, StatusInflight}},
		"available_at": bson.M{"$lte": now},
	}
	update := bson.M{
		"$set": bson.M{
			"status":       StatusInflight,
			"available_at": now.Add(visibility),
			"updated_at":   now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetReturnDocument(options.After)

	var msg Message
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *QueueRepositoryImpl) Ack(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Nack makes the message deliverable again after a delay, or parks it as
// dead once the attempt budget is spent.
func (r *QueueRepositoryImpl) Nack(ctx context.Context, id primitive.ObjectID, delay time.Duration, maxAttempts int, reason string) error {
	var msg Message
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return err
	}

	status := StatusPending
	if msg.Attempts >= maxAttempts {
		status = StatusDead
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":       status,
			"available_at": time.Now().Add(delay),
			"last_error":   reason,
			"updated_at":   time.Now(),
		},
	})
	return err
}

func (r *QueueRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "available_at", Value: 1},
			{Key: "created_at", Value: 1},
		},
	})
	return err
}
