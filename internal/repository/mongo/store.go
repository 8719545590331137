package mongo

import (
	"alcyxob/personal-coach/internal/repository"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repository.DocumentStore = (*Store)(nil)

// Store implements repository.DocumentStore on a MongoDB database. Document
// ids are stored in _id; the rest of the document is written as given.
type Store struct {
	db *mongo.Database
}

// NewStore creates a Store. It expects a connected *mongo.Database instance.
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Get retrieves a document by id.
func (s *Store) Get(ctx context.Context, coll, id string) (*repository.Snapshot, error) {
	var raw bson.Raw
	err := s.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return repository.NewSnapshot(id, raw), nil
}

// Set replaces the document with the given id, inserting it if missing.
func (s *Store) Set(ctx context.Context, coll, id string, doc interface{}) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(coll).ReplaceOne(ctx, bson.M{"_id": id}, doc, opts)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s/%s: %w", coll, id, repository.ErrDuplicateKey)
	}
	return err
}

// Update translates field updates into $set, $addToSet and $pullAll.
func (s *Store) Update(ctx context.Context, coll, id string, updates ...repository.FieldUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	set := bson.M{}
	addToSet := bson.M{}
	pullAll := bson.M{}
	for _, u := range updates {
		switch u.Op {
		case repository.OpSet:
			set[u.Field] = u.Value
		case repository.OpArrayUnion:
			addToSet[u.Field] = bson.M{"$each": u.Values}
		case repository.OpArrayRemove:
			pullAll[u.Field] = u.Values
		default:
			return fmt.Errorf("%w: unknown operation %d", repository.ErrInvalidUpdate, u.Op)
		}
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(pullAll) > 0 {
		update["$pullAll"] = pullAll
	}

	result, err := s.db.Collection(coll).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	// ModifiedCount can be 0 when $addToSet found the value already present.
	return nil
}

// Delete removes the document with the given id.
func (s *Store) Delete(ctx context.Context, coll, id string) error {
	_, err := s.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Query runs an equality-filtered find without sorting.
func (s *Store) Query(ctx context.Context, coll string, filters ...repository.Filter) ([]*repository.Snapshot, error) {
	filter := bson.D{}
	for _, f := range filters {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}

	cursor, err := s.db.Collection(coll).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := []*repository.Snapshot{}
	for cursor.Next(ctx) {
		raw := append(bson.Raw(nil), cursor.Current...)
		id, ok := raw.Lookup("_id").StringValueOK()
		if !ok {
			return nil, fmt.Errorf("document in %s has a non-string _id", coll)
		}
		results = append(results, repository.NewSnapshot(id, raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// NewID allocates an ObjectID-shaped hex id.
func (s *Store) NewID(string) string {
	return primitive.NewObjectID().Hex()
}
