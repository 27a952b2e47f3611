package signup

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// StorageEntry is a persisted key/value row.
type StorageEntry struct {
	bun.BaseModel `bun:"table:local_storage,alias:ls"`
	Name          string    `bun:"name,pk" json:"name"`
	Value         string    `bun:"value,notnull" json:"value"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// BunStorage persists entries in a single table through bun.
type BunStorage struct {
	db  bun.IDB
	now func() time.Time
}

// NewBunStorage returns a Storage backed by db. Call Init once before use.
func NewBunStorage(db bun.IDB) *BunStorage {
	return &BunStorage{
		db:  db,
		now: time.Now,
	}
}

// Init creates the backing table when it does not exist.
func (s *BunStorage) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*StorageEntry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create local storage table")
	}
	return nil
}

func (s *BunStorage) Get(ctx context.Context, key string) (string, bool, error) {
	entry := &StorageEntry{}
	err := s.db.NewSelect().
		Model(entry).
		Where("?TableAlias.name = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read local storage").
			WithMetadata(map[string]any{"key": key})
	}
	return entry.Value, true, nil
}

func (s *BunStorage) Set(ctx context.Context, key, value string) error {
	entry := &StorageEntry{
		Name:      key,
		Value:     value,
		UpdatedAt: s.now().UTC(),
	}

	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write local storage").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

func (s *BunStorage) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*StorageEntry)(nil)).
		Where("name = ?", key).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete local storage entry").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}
