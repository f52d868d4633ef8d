// Package gomemdb is an AttributeStore on top of hashicorp/go-memdb.
package gomemdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"user-record-service/internal/core/domain"
	"user-record-service/internal/core/ports/driven"
)

const (
	AttributeTable = "attribute" // also, memdb schema name

	ID        = "id"
	ByGroupID = "group_id"
	ByName    = "name"
	ByValue   = "value"
)

// attributeRecord is the object stored in the attribute table.
// Stored objects are never mutated; an overwrite inserts a new one.
type attributeRecord struct {
	GroupID string
	Name    string
	Value   string
}

func (r *attributeRecord) toDomain() domain.Attribute {
	return domain.Attribute{GroupID: r.GroupID, Name: r.Name, Value: r.Value}
}

// AttributeSchema returns the memdb schema of the attribute table
func AttributeSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			AttributeTable: {
				Name: AttributeTable,
				Indexes: map[string]*memdb.IndexSchema{
					ID: {
						Name:   ID,
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "GroupID"},
								&memdb.StringFieldIndex{Field: "Name"},
							},
						},
					},
					ByGroupID: {
						Name:    ByGroupID,
						Indexer: &memdb.StringFieldIndex{Field: "GroupID"},
					},
					ByName: {
						Name:    ByName,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
					// empty values are not indexed, see GetByValue
					ByValue: {
						Name:         ByValue,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "Value"},
					},
				},
			},
		},
	}
}

// AttributeStoreImpl implements driven.AttributeStore with go-memdb.
// Every write call runs in one write transaction, so a batch is either
// fully committed or aborted.
type AttributeStoreImpl struct {
	db *memdb.MemDB
}

// NewAttributeStore creates an empty AttributeStoreImpl.
func NewAttributeStore() (driven.AttributeStore, error) {
	db, err := memdb.NewMemDB(AttributeSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}
	return &AttributeStoreImpl{db: db}, nil
}

func (s *AttributeStoreImpl) Put(ctx context.Context, name, value, groupID string) (domain.Attribute, error) {
	if err := domain.ValidateAttributeNames(name); err != nil {
		return domain.Attribute{}, err
	}

	id, err := s.write(groupID, map[string]string{name: value})
	if err != nil {
		return domain.Attribute{}, err
	}
	return domain.Attribute{GroupID: id, Name: name, Value: value}, nil
}

func (s *AttributeStoreImpl) PutGroup(ctx context.Context, groupID string, attrs map[string]string) (string, error) {
	if err := domain.ValidateAttributeBatch(attrs); err != nil {
		return "", err
	}
	return s.write(groupID, attrs)
}

func (s *AttributeStoreImpl) write(groupID string, attrs map[string]string) (string, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	groupID, err := resolveGroup(txn, groupID)
	if err != nil {
		return "", err
	}
	for name, value := range attrs {
		rec := &attributeRecord{GroupID: groupID, Name: name, Value: value}
		if err := txn.Insert(AttributeTable, rec); err != nil {
			return "", fmt.Errorf("failed to insert attribute %q: %w", name, err)
		}
	}
	txn.Commit()
	return groupID, nil
}

func resolveGroup(txn *memdb.Txn, groupID string) (string, error) {
	if groupID == "" {
		for {
			id := uuid.NewString()
			exists, err := groupExists(txn, id)
			if err != nil {
				return "", err
			}
			if !exists {
				return id, nil
			}
		}
	}

	exists, err := groupExists(txn, groupID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("group %q: %w", groupID, domain.ErrNoGroupFound)
	}
	return groupID, nil
}

func groupExists(txn *memdb.Txn, groupID string) (bool, error) {
	it, err := txn.Get(AttributeTable, ByGroupID, groupID)
	if err != nil {
		return false, err
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if obj.(*attributeRecord).GroupID == groupID {
			return true, nil
		}
	}
	return false, nil
}

func (s *AttributeStoreImpl) GetByGroupID(ctx context.Context, groupID string) ([]domain.Attribute, error) {
	if groupID == "" {
		return []domain.Attribute{}, nil
	}
	return s.query(func(r *attributeRecord) bool { return r.GroupID == groupID }, ByGroupID, groupID)
}

func (s *AttributeStoreImpl) GetByAttributeName(ctx context.Context, name string) ([]domain.Attribute, error) {
	if name == "" {
		return []domain.Attribute{}, nil
	}
	return s.query(func(r *attributeRecord) bool { return r.Name == name }, ByName, name)
}

func (s *AttributeStoreImpl) GetByValue(ctx context.Context, value string) ([]domain.Attribute, error) {
	if value == "" {
		return s.query(func(r *attributeRecord) bool { return r.Value == "" }, ID)
	}
	return s.query(func(r *attributeRecord) bool { return r.Value == value }, ByValue, value)
}

func (s *AttributeStoreImpl) GetByAttributeNameAndValue(ctx context.Context, name, value string) ([]domain.Attribute, error) {
	if name == "" {
		return []domain.Attribute{}, nil
	}
	return s.query(func(r *attributeRecord) bool { return r.Name == name && r.Value == value }, ByName, name)
}

func (s *AttributeStoreImpl) DeleteByGroupID(ctx context.Context, groupID string) error {
	if groupID == "" {
		return nil
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(AttributeTable, ByGroupID, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group %q: %w", groupID, err)
	}
	var doomed []*attributeRecord
	for obj := it.Next(); obj != nil; obj = it.Next() {
		if rec := obj.(*attributeRecord); rec.GroupID == groupID {
			doomed = append(doomed, rec)
		}
	}
	for _, rec := range doomed {
		if err := txn.Delete(AttributeTable, rec); err != nil {
			return fmt.Errorf("failed to delete group %q: %w", groupID, err)
		}
	}
	txn.Commit()
	return nil
}

// query reads the index in a read-only snapshot, keeping the records accepted
// by match. String indexes match by prefix when the stored string holds a NUL
// byte, so match must compare the indexed field exactly.
func (s *AttributeStoreImpl) query(match func(*attributeRecord) bool, index string, args ...interface{}) ([]domain.Attribute, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(AttributeTable, index, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", index, err)
	}

	result := make([]domain.Attribute, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		rec := obj.(*attributeRecord)
		if match(rec) {
			result = append(result, rec.toDomain())
		}
	}
	domain.SortAttributes(result)
	return result, nil
}
