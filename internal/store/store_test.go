package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nitesh/readme_service/internal/config"
	dbtypes "github.com/nitesh/readme_service/internal/db"
	"github.com/nitesh/readme_service/pkg/models"
)

func sampleRecord(articleID int64) models.IntakeRecord {
	return models.IntakeRecord{
		ArticleID:    articleID,
		CurationID:   dbtypes.SomeID(540005),
		Citation:     "Smith, J. (2020)",
		Summary:      "Summary data for add",
		Files:        "Files data for add",
		Materials:    "microscope",
		Contributors: "J. Smith: analysis",
		Notes:        "",
	}
}

// runStoreSuite exercises the IntakeStore contract against any backend.
func runStoreSuite(t *testing.T, open func(t *testing.T) IntakeStore) {
	t.Run("find missing", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if _, err := s.Find(ctx, 87654321); !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("Find: expected ErrRecordNotFound, got %v", err)
		}
		if _, err := s.FindIndex(ctx, 87654321); !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("FindIndex: expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("insert round trip", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := sampleRecord(12966581)

		id, err := s.Insert(ctx, rec)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		got, err := s.Find(ctx, rec.ArticleID)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if *got != rec {
			t.Fatalf("Find() = %+v, want %+v", *got, rec)
		}
		idx, err := s.FindIndex(ctx, rec.ArticleID)
		if err != nil {
			t.Fatalf("FindIndex: %v", err)
		}
		if idx != id {
			t.Fatalf("FindIndex() = %d, Insert returned %d", idx, id)
		}
	})

	t.Run("insert without curation id", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		rec := sampleRecord(1)
		rec.CurationID = dbtypes.OptionalID{}

		if _, err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		got, err := s.Find(ctx, 1)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if got.CurationID.Valid {
			t.Fatalf("curation id should be unset, got %+v", got.CurationID)
		}
	})

	t.Run("duplicate insert", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if _, err := s.Insert(ctx, sampleRecord(5)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if _, err := s.Insert(ctx, sampleRecord(5)); !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})

	t.Run("update by handle", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		id, err := s.Insert(ctx, sampleRecord(7))
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		changed := sampleRecord(7)
		changed.Notes = "updated"
		if err := s.Update(ctx, id, changed); err != nil {
			t.Fatalf("Update: %v", err)
		}
		got, err := s.Find(ctx, 7)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if got.Notes != "updated" {
			t.Fatalf("update not applied: %+v", got)
		}

		if err := s.Update(ctx, id+1000, changed); !errors.Is(err, ErrRecordNotFound) {
			t.Fatalf("expected ErrRecordNotFound for stale handle, got %v", err)
		}
	})

	t.Run("upsert twice keeps one record", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		first := sampleRecord(12966581)
		id1, err := s.Upsert(ctx, first)
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		second := sampleRecord(12966581)
		second.Summary = "second submission"
		second.Files = ""
		id2, err := s.Upsert(ctx, second)
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if id1 != id2 {
			t.Fatalf("upsert changed handle: %d -> %d", id1, id2)
		}
		got, err := s.Find(ctx, 12966581)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if *got != second {
			t.Fatalf("second submission should win: %+v", *got)
		}
		if _, err := s.Insert(ctx, first); !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("upserted record must still be unique, got %v", err)
		}
	})

	t.Run("concurrent upserts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := sampleRecord(42)
				rec.Notes = string(rune('a' + i))
				if _, err := s.Upsert(ctx, rec); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("Upsert: %v", err)
		}
		if _, err := s.Insert(ctx, sampleRecord(42)); !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected exactly one record, insert returned %v", err)
		}
	})
}

func TestJSONFileStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) IntakeStore {
		s, err := OpenJSONFile(filepath.Join(t.TempDir(), "intake.json"))
		if err != nil {
			t.Fatalf("OpenJSONFile: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) IntakeStore {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "intake.db"))
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	runStoreSuite(t, func(t *testing.T) IntakeStore {
		s, err := OpenPostgres(context.Background(), dsn)
		if err != nil {
			t.Fatalf("OpenPostgres: %v", err)
		}
		if _, err := s.db.Exec("TRUNCATE intake_records"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	runStoreSuite(t, func(t *testing.T) IntakeStore {
		s, err := OpenMongo(context.Background(), uri, "readme_test", "intake")
		if err != nil {
			t.Fatalf("OpenMongo: %v", err)
		}
		if _, err := s.records.DeleteMany(context.Background(), map[string]interface{}{}); err != nil {
			t.Fatalf("clear: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestJSONFileReadsTinyDBLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tinydb.json")
	legacy := `{"_default": {"1": {"article_id": 12966581, "curation_id": null, "citation": "",
		"summary": "Summary", "files": "", "materials": "", "contributors": "", "notes": ""},
		"3": {"article_id": 12966581, "summary": "duplicate"}}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := OpenJSONFile(path)
	if err != nil {
		t.Fatalf("OpenJSONFile: %v", err)
	}
	ctx := context.Background()

	idx, err := s.FindIndex(ctx, 12966581)
	if err != nil {
		t.Fatalf("FindIndex: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected lowest doc id 1, got %d", idx)
	}
	id, err := s.Insert(ctx, sampleRecord(87654321))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != 4 {
		t.Fatalf("expected next doc id 4, got %d", id)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.StoreConfig{Driver: "cassandra"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
