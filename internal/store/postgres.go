package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nitesh/readme_service/pkg/models"
)

// PgStore keeps intake records in Postgres.
type PgStore struct {
	db *sqlx.DB
}

var _ IntakeStore = (*PgStore)(nil)

// OpenPostgres connects, waits for the database to come up and runs migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PgStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// simple ping + wait (db might be starting in docker)
	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to db: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return NewPgStore(db), nil
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{db: sqlx.NewDb(db, "postgres")}
}

func RunMigrations(db *sql.DB) error {
	initSQL := `
CREATE TABLE IF NOT EXISTS intake_records(
  doc_id BIGSERIAL PRIMARY KEY,
  article_id BIGINT NOT NULL,
  curation_id BIGINT,
  citation TEXT NOT NULL DEFAULT '',
  summary TEXT NOT NULL DEFAULT '',
  files TEXT NOT NULL DEFAULT '',
  materials TEXT NOT NULL DEFAULT '',
  contributors TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_intake_article ON intake_records(article_id);
`
	_, err := db.Exec(initSQL)
	return err
}

func (p *PgStore) Close() error {
	return p.db.Close()
}

func (p *PgStore) Find(ctx context.Context, articleID int64) (*models.IntakeRecord, error) {
	var rec models.IntakeRecord
	query := `
SELECT article_id,curation_id,citation,summary,files,materials,contributors,notes
FROM intake_records
WHERE article_id = $1
LIMIT 1
`
	err := p.db.GetContext(ctx, &rec, query, articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find article %d: %w", articleID, err)
	}
	return &rec, nil
}

func (p *PgStore) FindIndex(ctx context.Context, articleID int64) (int64, error) {
	var id int64
	err := p.db.GetContext(ctx, &id, "SELECT doc_id FROM intake_records WHERE article_id = $1", articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrRecordNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find index article %d: %w", articleID, err)
	}
	return id, nil
}

func (p *PgStore) Insert(ctx context.Context, rec models.IntakeRecord) (int64, error) {
	stmt := `
INSERT INTO intake_records (article_id, curation_id, citation, summary, files, materials, contributors, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING doc_id
`
	var id int64
	err := p.db.QueryRowxContext(ctx, stmt, recordValues(rec)...).Scan(&id)
	if err != nil {
		if isPgUnique(err) {
			return 0, fmt.Errorf("article %d: %w", rec.ArticleID, ErrDuplicateKey)
		}
		return 0, fmt.Errorf("insert article %d: %w", rec.ArticleID, err)
	}
	return id, nil
}

func (p *PgStore) Update(ctx context.Context, handle int64, rec models.IntakeRecord) error {
	stmt := `
UPDATE intake_records SET
 article_id=:article_id,
 curation_id=:curation_id,
 citation=:citation,
 summary=:summary,
 files=:files,
 materials=:materials,
 contributors=:contributors,
 notes=:notes
WHERE doc_id=:doc_id
`
	arg := struct {
		models.IntakeRecord
		DocID int64 `db:"doc_id"`
	}{rec, handle}

	res, err := p.db.NamedExecContext(ctx, stmt, arg)
	if err != nil {
		if isPgUnique(err) {
			return fmt.Errorf("article %d: %w", rec.ArticleID, ErrDuplicateKey)
		}
		return fmt.Errorf("update doc %d: %w", handle, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update doc %d: %w", handle, err)
	}
	if n == 0 {
		return fmt.Errorf("doc %d: %w", handle, ErrRecordNotFound)
	}
	return nil
}

func (p *PgStore) Upsert(ctx context.Context, rec models.IntakeRecord) (int64, error) {
	stmt := `
INSERT INTO intake_records (article_id, curation_id, citation, summary, files, materials, contributors, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
` + upsertSuffix

	var id int64
	if err := p.db.QueryRowxContext(ctx, stmt, recordValues(rec)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert article %d: %w", rec.ArticleID, err)
	}
	return id, nil
}

func isPgUnique(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
