package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps entries in a MongoDB collection, one document per key.
// Intended for deployments that already run MongoDB and want cache contents
// inspectable alongside their other data.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoEntry struct {
	Key       string             `bson:"_id"`
	Data      primitive.Binary   `bson:"data"`
	WrittenAt primitive.DateTime `bson:"written_at"`
}

// NewMongoStore connects to MongoDB and uses the named database and
// collection for all entries.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var e mongoEntry
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return e.Data.Data, e.WrittenAt.Time().UTC(), true, nil
}

func (s *MongoStore) Put(ctx context.Context, key string, data []byte) error {
	e := mongoEntry{
		Key:       key,
		Data:      primitive.Binary{Data: data},
		WrittenAt: primitive.NewDateTimeFromTime(time.Now().UTC()),
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, e, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (s *MongoStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	res, err := s.coll.DeleteMany(ctx, prefixFilter(prefix))
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (s *MongoStore) Count(ctx context.Context, prefix string) (int, error) {
	n, err := s.coll.CountDocuments(ctx, prefixFilter(prefix))
	return int(n), err
}

// prefixFilter anchors a regex at the start of the key, quoting regex
// metacharacters so namespace separators like '.' match literally.
func prefixFilter(prefix string) bson.M {
	return bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
