package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nitesh/readme_service/internal/config"
	"github.com/nitesh/readme_service/pkg/models"
)

var (
	// ErrRecordNotFound means no intake record exists for the article id or handle.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateKey means an intake record already exists for the article id.
	ErrDuplicateKey = errors.New("record already exists for article")
)

// IntakeStore persists one intake record per article id. Handles are store-assigned
// integers that stay valid for the life of the record.
type IntakeStore interface {
	Find(ctx context.Context, articleID int64) (*models.IntakeRecord, error)
	FindIndex(ctx context.Context, articleID int64) (int64, error)
	Insert(ctx context.Context, rec models.IntakeRecord) (int64, error)
	Update(ctx context.Context, handle int64, rec models.IntakeRecord) error
	// Upsert inserts rec or replaces the existing record for rec.ArticleID in a
	// single atomic step and returns the record's handle.
	Upsert(ctx context.Context, rec models.IntakeRecord) (int64, error)
	Close() error
}

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (IntakeStore, error) {
	var (
		s   IntakeStore
		err error
	)
	switch cfg.Driver {
	case "", "jsonfile":
		s, err = OpenJSONFile(cfg.Path)
	case "sqlite":
		s, err = OpenSQLite(cfg.Path)
	case "postgres":
		s, err = OpenPostgres(ctx, cfg.DSN)
	case "mongo":
		s, err = OpenMongo(ctx, cfg.DSN, cfg.Mongo.Database, cfg.Mongo.Collection)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
