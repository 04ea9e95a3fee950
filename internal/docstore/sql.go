package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/acaifrutal/storefront-backend/pkg/db"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type documentRecord struct {
	Path      string `gorm:"primaryKey"`
	Parent    string `gorm:"index"`
	DocID     string
	Data      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (documentRecord) TableName() string { return "documents" }

// ChangeNotifier propagates document changes to every API instance.
type ChangeNotifier interface {
	Publish(ctx context.Context, path string) error
}

// SQLStore persists documents in the documents table (postgres, or sqlite for local runs).
type SQLStore struct {
	db       *gorm.DB
	hub      *hub
	notifier ChangeNotifier
	logg     *logger.Logger
}

// NewSQLStore builds a store over db. With a nil notifier changes are only fanned out
// to subscribers of this process.
func NewSQLStore(db *gorm.DB, notifier ChangeNotifier, logg *logger.Logger) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &SQLStore{db: db, hub: newHub(), notifier: notifier, logg: logg}, nil
}

// Changed feeds a change observed elsewhere (for example through redis) to local subscribers.
func (s *SQLStore) Changed(path string) {
	s.hub.changed(path)
}

func (s *SQLStore) Get(ctx context.Context, path string) (Document, error) {
	if err := ValidatePath(path); err != nil {
		return Document{}, err
	}
	var rec documentRecord
	err := s.db.WithContext(ctx).Where("path = ?", path).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", path, err)
	}
	return rec.toDocument()
}

func (s *SQLStore) Set(ctx context.Context, path string, fields map[string]any) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if err := s.upsert(s.db.WithContext(ctx), path, fields); err != nil {
		return err
	}
	s.notify(ctx, path)
	return nil
}

func (s *SQLStore) Merge(ctx context.Context, path string, fields map[string]any) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	err := db.Transact(ctx, s.db, func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var rec documentRecord
		existing := map[string]any{}
		err := query.Where("path = ?", path).Take(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return fmt.Errorf("load document %s: %w", path, err)
		default:
			if err := json.Unmarshal([]byte(rec.Data), &existing); err != nil {
				return fmt.Errorf("decode document %s: %w", path, err)
			}
		}

		update, err := normalize(fields)
		if err != nil {
			return err
		}
		return s.upsert(tx, path, mergeFields(existing, update))
	})
	if err != nil {
		return err
	}
	s.notify(ctx, path)
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("path = ?", path).Delete(&documentRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete document %s: %w", path, res.Error)
	}
	if res.RowsAffected > 0 {
		s.notify(ctx, path)
	}
	return nil
}

func (s *SQLStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ValidatePath(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.Set(ctx, Child(collection, id), fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLStore) List(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ValidatePath(collection); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Where("parent = ?", collection)
	if q.WhereField != "" {
		query = s.whereField(query, q.WhereField, q.WhereValue)
	}

	var recs []documentRecord
	if err := query.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(recs))
	for _, rec := range recs {
		doc, err := rec.toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return q.apply(docs), nil
}

func (s *SQLStore) SubscribeDoc(ctx context.Context, path string) (<-chan Snapshot, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	return s.hub.subscribe(ctx, path, false, docLoader(s.Get, path)), nil
}

func (s *SQLStore) SubscribeCollection(ctx context.Context, collection string, q Query) (<-chan Snapshot, error) {
	if err := ValidatePath(collection); err != nil {
		return nil, err
	}
	return s.hub.subscribe(ctx, collection, true, collectionLoader(s.List, collection, q)), nil
}

// whereField pushes the equality filter down to the database JSON functions.
func (s *SQLStore) whereField(query *gorm.DB, field string, value any) *gorm.DB {
	if s.db.Dialector.Name() == "postgres" {
		return query.Where("CAST(data AS jsonb) ->> ? = ?", field, fmt.Sprint(value))
	}
	return query.Where("CAST(json_extract(data, ?) AS TEXT) = ?", "$."+field, fmt.Sprint(value))
}

func (s *SQLStore) upsert(tx *gorm.DB, path string, fields map[string]any) error {
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", path, err)
	}

	parent, id := Split(path)
	now := time.Now().UTC()
	rec := documentRecord{
		Path:      path,
		Parent:    parent,
		DocID:     id,
		Data:      string(raw),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("write document %s: %w", path, err)
	}
	return nil
}

func (s *SQLStore) notify(ctx context.Context, path string) {
	if s.notifier == nil {
		s.hub.changed(path)
		return
	}
	if err := s.notifier.Publish(ctx, path); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "path", path), "docstore.notify_failed", err)
		s.hub.changed(path)
	}
}

func (r documentRecord) toDocument() (Document, error) {
	fields := map[string]any{}
	if r.Data != "" {
		if err := json.Unmarshal([]byte(r.Data), &fields); err != nil {
			return Document{}, fmt.Errorf("decode document %s: %w", r.Path, err)
		}
	}
	return Document{
		ID:        r.DocID,
		Path:      r.Path,
		Data:      fields,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}
