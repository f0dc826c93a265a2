package dailysync

import (
	"context"
	"time"

	"b24-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DailyRunRepository interface {
	Create(ctx context.Context, run *DailyRun) error
	Update(ctx context.Context, run *DailyRun) error
	List(ctx context.Context, limit int64) ([]DailyRun, error)
}

type DailyRunRepositoryImpl struct {
	collection *mongo.Collection
}

func NewDailyRunRepository(db *database.MongodbDB) DailyRunRepository {
	return &DailyRunRepositoryImpl{
		collection: db.DB.Collection("daily_sync_runs"),
	}
}

func (r *DailyRunRepositoryImpl) Create(ctx context.Context, run *DailyRun) error {
	if run.ID.IsZero() {
		run.ID = primitive.NewObjectID()
	}
	if run.StartTime.IsZero() {
		run.StartTime = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, run)
	return err
}

func (r *DailyRunRepositoryImpl) Update(ctx context.Context, run *DailyRun) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": run.ID}, run)
	return err
}

func (r *DailyRunRepositoryImpl) List(ctx context.Context, limit int64) ([]DailyRun, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []DailyRun
	if err = cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}
