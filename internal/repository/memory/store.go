// Package memory provides an in-memory DocumentStore used by tests and by the
// "memory" database driver for ephemeral environments. Documents are kept
// bson-encoded so that decoding behaves exactly as it does against MongoDB.
package memory

import (
	"alcyxob/personal-coach/internal/repository"
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Compile-time check that Store satisfies the repository contract.
var _ repository.DocumentStore = (*Store)(nil)

// Op names a store operation for fault injection.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpQuery  Op = "query"
)

// FaultFunc is consulted before every operation; a non-nil error aborts the
// operation and is returned to the caller. id is empty for queries.
type FaultFunc func(op Op, collection, id string) error

type collection struct {
	order []string // insertion order, used as the native query order
	docs  map[string]bson.Raw
}

// Store is a goroutine-safe in-memory document store.
type Store struct {
	mu    sync.RWMutex
	colls map[string]*collection
	fault FaultFunc
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{colls: make(map[string]*collection)}
}

// InjectFault installs f as the fault hook; nil removes it.
func (s *Store) InjectFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

func (s *Store) checkFault(op Op, coll, id string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, coll, id)
}

func (s *Store) coll(name string) *collection {
	c, ok := s.colls[name]
	if !ok {
		c = &collection{docs: make(map[string]bson.Raw)}
		s.colls[name] = c
	}
	return c
}

// Get returns the document or repository.ErrNotFound.
func (s *Store) Get(ctx context.Context, coll, id string) (*repository.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkFault(OpGet, coll, id); err != nil {
		return nil, err
	}
	c, ok := s.colls[coll]
	if !ok {
		return nil, repository.ErrNotFound
	}
	raw, ok := c.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return repository.NewSnapshot(id, cloneRaw(raw)), nil
}

// Set creates or replaces the document.
func (s *Store) Set(ctx context.Context, coll, id string, doc interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault(OpSet, coll, id); err != nil {
		return err
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", coll, id, err)
	}
	c := s.coll(coll)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = raw
	return nil
}

// Update applies field-level changes to an existing document.
func (s *Store) Update(ctx context.Context, coll, id string, updates ...repository.FieldUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault(OpUpdate, coll, id); err != nil {
		return err
	}
	c, ok := s.colls[coll]
	if !ok {
		return repository.ErrNotFound
	}
	raw, ok := c.docs[id]
	if !ok {
		return repository.ErrNotFound
	}

	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode %s/%s: %w", coll, id, err)
	}
	for _, u := range updates {
		var err error
		doc, err = apply(doc, u)
		if err != nil {
			return err
		}
	}

	encoded, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", coll, id, err)
	}
	c.docs[id] = encoded
	return nil
}

// Delete removes the document if present.
func (s *Store) Delete(ctx context.Context, coll, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkFault(OpDelete, coll, id); err != nil {
		return err
	}
	c, ok := s.colls[coll]
	if !ok {
		return nil
	}
	if _, exists := c.docs[id]; !exists {
		return nil
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Query returns the documents matching all filters in insertion order.
func (s *Store) Query(ctx context.Context, coll string, filters ...repository.Filter) ([]*repository.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkFault(OpQuery, coll, ""); err != nil {
		return nil, err
	}
	c, ok := s.colls[coll]
	if !ok {
		return []*repository.Snapshot{}, nil
	}

	results := []*repository.Snapshot{}
	for _, id := range c.order {
		raw := c.docs[id]
		if matches(raw, filters) {
			results = append(results, repository.NewSnapshot(id, cloneRaw(raw)))
		}
	}
	return results, nil
}

// NewID returns a random id.
func (s *Store) NewID(string) string {
	return uuid.NewString()
}

func matches(raw bson.Raw, filters []repository.Filter) bool {
	for _, f := range filters {
		rv, err := raw.LookupErr(f.Field)
		if f.Value == nil {
			if err == nil && rv.Type != bsontype.Null {
				return false
			}
			continue
		}
		if err != nil {
			return false
		}
		t, data, err := bson.MarshalValue(f.Value)
		if err != nil || t != rv.Type || !bytes.Equal(data, rv.Value) {
			return false
		}
	}
	return true
}

func apply(doc bson.D, u repository.FieldUpdate) (bson.D, error) {
	idx := -1
	for i, e := range doc {
		if e.Key == u.Field {
			idx = i
			break
		}
	}

	switch u.Op {
	case repository.OpSet:
		if idx >= 0 {
			doc[idx].Value = u.Value
		} else {
			doc = append(doc, bson.E{Key: u.Field, Value: u.Value})
		}
		return doc, nil

	case repository.OpArrayUnion, repository.OpArrayRemove:
		var current primitive.A
		if idx >= 0 && doc[idx].Value != nil {
			arr, ok := doc[idx].Value.(primitive.A)
			if !ok {
				return nil, fmt.Errorf("%w: field %q is not an array", repository.ErrInvalidUpdate, u.Field)
			}
			current = arr
		}

		var next primitive.A
		if u.Op == repository.OpArrayUnion {
			next = append(primitive.A{}, current...)
			for _, v := range u.Values {
				if !containsValue(next, v) {
					next = append(next, v)
				}
			}
		} else {
			next = primitive.A{}
			for _, existing := range current {
				if !containsValue(u.Values, existing) {
					next = append(next, existing)
				}
			}
		}

		if idx >= 0 {
			doc[idx].Value = next
		} else {
			doc = append(doc, bson.E{Key: u.Field, Value: next})
		}
		return doc, nil
	}

	return nil, fmt.Errorf("%w: unknown operation %d", repository.ErrInvalidUpdate, u.Op)
}

func containsValue(values []interface{}, v interface{}) bool {
	for _, existing := range values {
		if sameValue(existing, v) {
			return true
		}
	}
	return false
}

func sameValue(a, b interface{}) bool {
	ta, da, errA := bson.MarshalValue(a)
	tb, db, errB := bson.MarshalValue(b)
	if errA != nil || errB != nil {
		return false
	}
	return ta == tb && bytes.Equal(da, db)
}

func cloneRaw(raw bson.Raw) bson.Raw {
	return append(bson.Raw(nil), raw...)
}
