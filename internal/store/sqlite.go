package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/nitesh/readme_service/pkg/models"
)

const intakeTable = "intake_records"

var intakeColumns = []string{"article_id", "curation_id", "citation", "summary", "files", "materials", "contributors", "notes"}

// SQLiteStore keeps intake records in a SQLite file. A UNIQUE index on article_id
// backs ErrDuplicateKey and the ON CONFLICT upsert.
type SQLiteStore struct {
	db *sql.DB
}

var _ IntakeStore = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS intake_records (
			doc_id INTEGER PRIMARY KEY AUTOINCREMENT,
			article_id INTEGER NOT NULL,
			curation_id INTEGER,
			citation TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			files TEXT NOT NULL DEFAULT '',
			materials TEXT NOT NULL DEFAULT '',
			contributors TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT ''
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_intake_article ON intake_records(article_id);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Find(ctx context.Context, articleID int64) (*models.IntakeRecord, error) {
	query, args, err := sq.Select(intakeColumns...).From(intakeTable).
		Where(sq.Eq{"article_id": articleID}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find: %w", err)
	}

	var rec models.IntakeRecord
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&rec.ArticleID, &rec.CurationID, &rec.Citation, &rec.Summary,
		&rec.Files, &rec.Materials, &rec.Contributors, &rec.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find article %d: %w", articleID, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) FindIndex(ctx context.Context, articleID int64) (int64, error) {
	query, args, err := sq.Select("doc_id").From(intakeTable).
		Where(sq.Eq{"article_id": articleID}).Limit(1).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build find index: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrRecordNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find index article %d: %w", articleID, err)
	}
	return id, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec models.IntakeRecord) (int64, error) {
	query, args, err := sq.Insert(intakeTable).Columns(intakeColumns...).
		Values(recordValues(rec)...).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isSQLiteUnique(err) {
			return 0, fmt.Errorf("article %d: %w", rec.ArticleID, ErrDuplicateKey)
		}
		return 0, fmt.Errorf("insert article %d: %w", rec.ArticleID, err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) Update(ctx context.Context, handle int64, rec models.IntakeRecord) error {
	query, args, err := sq.Update(intakeTable).SetMap(recordMap(rec)).
		Where(sq.Eq{"doc_id": handle}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isSQLiteUnique(err) {
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

func (s *SQLiteStore) Upsert(ctx context.Context, rec models.IntakeRecord) (int64, error) {
	query, args, err := sq.Insert(intakeTable).Columns(intakeColumns...).
		Values(recordValues(rec)...).
		Suffix(upsertSuffix).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build upsert: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert article %d: %w", rec.ArticleID, err)
	}
	return id, nil
}

// upsertSuffix is valid for both SQLite (>= 3.35) and Postgres.
const upsertSuffix = `ON CONFLICT (article_id) DO UPDATE SET
 curation_id=EXCLUDED.curation_id,
 citation=EXCLUDED.citation,
 summary=EXCLUDED.summary,
 files=EXCLUDED.files,
 materials=EXCLUDED.materials,
 contributors=EXCLUDED.contributors,
 notes=EXCLUDED.notes
RETURNING doc_id`

func recordValues(rec models.IntakeRecord) []interface{} {
	return []interface{}{
		rec.ArticleID, rec.CurationID, rec.Citation, rec.Summary,
		rec.Files, rec.Materials, rec.Contributors, rec.Notes,
	}
}

func recordMap(rec models.IntakeRecord) map[string]interface{} {
	vals := recordValues(rec)
	m := make(map[string]interface{}, len(intakeColumns))
	for i, col := range intakeColumns {
		m[col] = vals[i]
	}
	return m
}

func isSQLiteUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
