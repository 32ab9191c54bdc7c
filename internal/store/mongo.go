package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo stores each value as a document whose _id is the key.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func OpenMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &Mongo{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

func (m *Mongo) Get(ctx context.Context, key string) (string, bool, error) {
	var result struct {
		Content string `bson:"content"`
	}

	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return result.Content, true, nil
}

func (m *Mongo) Set(ctx context.Context, key, value string) error {
	filter := bson.M{"_id": key}
	update := bson.M{
		"$set":         bson.M{"content": value},
		"$currentDate": bson.M{"updated_at": true},
	}

	_, err := m.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}
