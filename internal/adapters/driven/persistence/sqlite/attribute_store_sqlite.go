package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"user-record-service/internal/core/domain"
	"user-record-service/internal/core/ports/driven"
)

// DefaultDSN keeps the database in memory, so it lives as long as the process
const DefaultDSN = "file::memory:?cache=shared"

// AttributeDB represents a row in the attributes table
type AttributeDB struct {
	ID        uint   `gorm:"primaryKey"`
	GroupID   string `gorm:"uniqueIndex:idx_group_attribute;index"`
	Attribute string `gorm:"uniqueIndex:idx_group_attribute;index"`
	Value     string `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the gorm default
func (AttributeDB) TableName() string {
	return "attributes"
}

func (a AttributeDB) toDomain() domain.Attribute {
	return domain.Attribute{GroupID: a.GroupID, Name: a.Attribute, Value: a.Value}
}

// Open connects to a SQLite database. A single connection is kept open so an
// in-memory database is not dropped between calls.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQLite connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return db, nil
}

// AttributeStoreImpl implements driven.AttributeStore for SQLite.
type AttributeStoreImpl struct {
	db *gorm.DB
}

// NewAttributeStore creates a new AttributeStoreImpl.
func NewAttributeStore(db *gorm.DB) (driven.AttributeStore, error) {
	// Auto-migrate the table
	if err := db.AutoMigrate(&AttributeDB{}); err != nil {
		return nil, fmt.Errorf("failed to migrate attribute table: %w", err)
	}
	return &AttributeStoreImpl{db: db}, nil
}

func (r *AttributeStoreImpl) Put(ctx context.Context, name, value, groupID string) (domain.Attribute, error) {
	if err := domain.ValidateAttributeNames(name); err != nil {
		return domain.Attribute{}, err
	}

	id, err := r.write(ctx, groupID, map[string]string{name: value})
	if err != nil {
		return domain.Attribute{}, err
	}
	return domain.Attribute{GroupID: id, Name: name, Value: value}, nil
}

func (r *AttributeStoreImpl) PutGroup(ctx context.Context, groupID string, attrs map[string]string) (string, error) {
	if err := domain.ValidateAttributeBatch(attrs); err != nil {
		return "", err
	}
	return r.write(ctx, groupID, attrs)
}

func (r *AttributeStoreImpl) write(ctx context.Context, groupID string, attrs map[string]string) (string, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		groupID, err = resolveGroup(tx, groupID)
		if err != nil {
			return err
		}
		for name, value := range attrs {
			if err := setAttribute(tx, groupID, name, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return groupID, nil
}

func resolveGroup(tx *gorm.DB, groupID string) (string, error) {
	if groupID == "" {
		for {
			id := uuid.NewString()
			exists, err := groupExists(tx, id)
			if err != nil {
				return "", err
			}
			if !exists {
				return id, nil
			}
		}
	}

	exists, err := groupExists(tx, groupID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("group %q: %w", groupID, domain.ErrNoGroupFound)
	}
	return groupID, nil
}

func groupExists(tx *gorm.DB, groupID string) (bool, error) {
	var count int64
	result := tx.Model(&AttributeDB{}).Where("group_id = ?", groupID).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func setAttribute(tx *gorm.DB, groupID, name, value string) error {
	var existingAttr AttributeDB
	result := tx.Where("group_id = ? AND attribute = ?", groupID, name).First(&existingAttr)

	if result.Error == nil {
		// Update existing attribute
		existingAttr.Value = value
		existingAttr.UpdatedAt = time.Now()
		result = tx.Save(&existingAttr)
	} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		// Create new attribute
		newAttr := AttributeDB{
			GroupID:   groupID,
			Attribute: name,
			Value:     value,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		result = tx.Create(&newAttr)
	} else {
		return result.Error
	}

	return result.Error
}

func (r *AttributeStoreImpl) GetByGroupID(ctx context.Context, groupID string) ([]domain.Attribute, error) {
	return r.find(ctx, "group_id = ?", groupID)
}

func (r *AttributeStoreImpl) GetByAttributeName(ctx context.Context, name string) ([]domain.Attribute, error) {
	return r.find(ctx, "attribute = ?", name)
}

func (r *AttributeStoreImpl) GetByValue(ctx context.Context, value string) ([]domain.Attribute, error) {
	return r.find(ctx, "value = ?", value)
}

func (r *AttributeStoreImpl) GetByAttributeNameAndValue(ctx context.Context, name, value string) ([]domain.Attribute, error) {
	return r.find(ctx, "attribute = ? AND value = ?", name, value)
}

func (r *AttributeStoreImpl) DeleteByGroupID(ctx context.Context, groupID string) error {
	if groupID == "" {
		return nil
	}
	result := r.db.WithContext(ctx).Where("group_id = ?", groupID).Delete(&AttributeDB{})
	return result.Error
}

func (r *AttributeStoreImpl) find(ctx context.Context, query string, args ...interface{}) ([]domain.Attribute, error) {
	var attrs []AttributeDB
	result := r.db.WithContext(ctx).Where(query, args...).Order("group_id, attribute").Find(&attrs)
	if result.Error != nil {
		return nil, result.Error
	}

	attributes := make([]domain.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		attributes = append(attributes, attr.toDomain())
	}
	return attributes, nil
}
