package sync

import (
	"context"
	"time"

	"b24-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SyncRunRepository interface {
	Create(ctx context.Context, run *SyncRun) error
	Update(ctx context.Context, run *SyncRun) error
	List(ctx context.Context, limit int64) ([]SyncRun, error)
}

type SyncRunRepositoryImpl struct {
	collection *mongo.Collection
}

func NewSyncRunRepository(db *database.MongodbDB) SyncRunRepository {
	return &SyncRunRepositoryImpl{
		collection: db.DB.Collection("sync_runs"),
	}
}

func (r *SyncRunRepositoryImpl) Create(ctx context.Context, run *SyncRun) error {
	if run.ID.IsZero() {
		run.ID = primitive.NewObjectID()
	}
	if run.StartTime.IsZero() {
		run.StartTime = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, run)
	return err
}

func (r *SyncRunRepositoryImpl) Update(ctx context.Context, run *SyncRun) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": run.ID}, run)
	return err
}

func (r *SyncRunRepositoryImpl) List(ctx context.Context, limit int64) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []SyncRun
	if err = cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}
