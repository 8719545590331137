package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Error constants for the repository layer.
var (
	ErrNotFound      = RepositoryError("not found")
	ErrInvalidUpdate = RepositoryError("invalid update")
	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = RepositoryError("duplicate key")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Collection names. These are part of the persisted wire contract.
const (
	UsersCollection       = "users"
	ExercisesCollection   = "exercises"
	WorkoutsCollection    = "workouts"
	FeedbacksCollection   = "feedbacks"
	CredentialsCollection = "credentials"
)

// DocumentStore is the document database the core is written against. It
// offers single-document operations only; there are no cross-document
// transactions.
type DocumentStore interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
	// Set creates the document or replaces it entirely.
	Set(ctx context.Context, collection, id string, doc interface{}) error
	// Update applies field-level changes to an existing document and returns
	// ErrNotFound when it does not exist.
	Update(ctx context.Context, collection, id string, updates ...FieldUpdate) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query returns the documents matching every equality filter, in the
	// store's native order.
	Query(ctx context.Context, collection string, filters ...Filter) ([]*Snapshot, error)
	// NewID allocates a fresh document id for collection.
	NewID(collection string) string
}

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value interface{}
}

// Where builds an equality filter.
func Where(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// UpdateOp enumerates the field-level update operations.
type UpdateOp int

const (
	OpSet UpdateOp = iota
	OpArrayUnion
	OpArrayRemove
)

// FieldUpdate is a single field-level change applied by DocumentStore.Update.
type FieldUpdate struct {
	Op     UpdateOp
	Field  string
	Value  interface{}   // OpSet
	Values []interface{} // OpArrayUnion, OpArrayRemove
}

// Set overwrites field with value.
func Set(field string, value interface{}) FieldUpdate {
	return FieldUpdate{Op: OpSet, Field: field, Value: value}
}

// ArrayUnion appends the values that the array field does not already hold.
func ArrayUnion(field string, values ...interface{}) FieldUpdate {
	return FieldUpdate{Op: OpArrayUnion, Field: field, Values: values}
}

// ArrayRemove removes every occurrence of values from the array field.
func ArrayRemove(field string, values ...interface{}) FieldUpdate {
	return FieldUpdate{Op: OpArrayRemove, Field: field, Values: values}
}

// Snapshot is a document read from a DocumentStore.
type Snapshot struct {
	ID  string
	raw bson.Raw
}

// NewSnapshot wraps an encoded document. Store implementations use it.
func NewSnapshot(id string, raw bson.Raw) *Snapshot {
	return &Snapshot{ID: id, raw: raw}
}

// DataTo decodes the document into v, a pointer to a struct or map.
func (s *Snapshot) DataTo(v interface{}) error {
	return bson.Unmarshal(s.raw, v)
}

// Raw exposes the encoded document.
func (s *Snapshot) Raw() bson.Raw {
	return s.raw
}
