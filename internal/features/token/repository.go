package token

import (
	"context"
	"time"

	"b24-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SecretRepository interface {
	Save(ctx context.Context, name, value string) error
	Latest(ctx context.Context, name string) (*Secret, error)
}

type SecretRepositoryImpl struct {
	collection *mongo.Collection
}

func NewSecretRepository(db *database.MongodbDB) SecretRepository {
	return &SecretRepositoryImpl{
		collection: db.DB.Collection("secrets"),
	}
}

// Save inserts a new version and destroys every older version of the same
// name. Readers always see exactly one enabled version per secret.
func (r *SecretRepositoryImpl) Save(ctx context.Context, name, value string) error {
	secret := Secret{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Value:     value,
		CreatedAt: time.Now(),
	}
	if _, err := r.collection.InsertOne(ctx, secret); err != nil {
		return err
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{
		"name": name,
		"_id":  bson.M{"$ne": secret.ID},
	})
	return err
}

func (r *SecretRepositoryImpl) Latest(ctx context.Context, name string) (*Secret, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var secret Secret
	err := r.collection.FindOne(ctx, bson.M{"name": name}, opts).Decode(&secret)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &secret, nil
}
