package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	dbtypes "github.com/nitesh/readme_service/internal/db"
	"github.com/nitesh/readme_service/pkg/models"
)

const countersCollection = "counters"

// MongoStore keeps intake records in a MongoDB collection with a unique index on
// article_id. Handles come from a counter document so they are small integers.
type MongoStore struct {
	client   *mongo.Client
	records  *mongo.Collection
	counters *mongo.Collection
}

var _ IntakeStore = (*MongoStore)(nil)

type mongoIntake struct {
	DocID        int64  `bson:"doc_id"`
	ArticleID    int64  `bson:"article_id"`
	CurationID   *int64 `bson:"curation_id"`
	Citation     string `bson:"citation"`
	Summary      string `bson:"summary"`
	Files        string `bson:"files"`
	Materials    string `bson:"materials"`
	Contributors string `bson:"contributors"`
	Notes        string `bson:"notes"`
}

func (m mongoIntake) record() models.IntakeRecord {
	return models.IntakeRecord{
		ArticleID:    m.ArticleID,
		CurationID:   dbtypes.IDFromPtr(m.CurationID),
		Citation:     m.Citation,
		Summary:      m.Summary,
		Files:        m.Files,
		Materials:    m.Materials,
		Contributors: m.Contributors,
		Notes:        m.Notes,
	}
}

func fieldsOf(rec models.IntakeRecord) bson.M {
	return bson.M{
		"article_id":   rec.ArticleID,
		"curation_id":  rec.CurationID.Ptr(),
		"citation":     rec.Citation,
		"summary":      rec.Summary,
		"files":        rec.Files,
		"materials":    rec.Materials,
		"contributors": rec.Contributors,
		"notes":        rec.Notes,
	}
}

// OpenMongo connects to uri and ensures the indexes exist.
func OpenMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		records:  db.Collection(collection),
		counters: db.Collection(countersCollection),
	}
	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't create indices: %w", err)
	}
	return s, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	_, err := s.records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "article_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "doc_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*mongoIntake, error) {
	var doc mongoIntake
	err := s.records.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) Find(ctx context.Context, articleID int64) (*models.IntakeRecord, error) {
	doc, err := s.findOne(ctx, bson.M{"article_id": articleID})
	if err != nil {
		return nil, fmt.Errorf("find article %d: %w", articleID, err)
	}
	rec := doc.record()
	return &rec, nil
}

func (s *MongoStore) FindIndex(ctx context.Context, articleID int64) (int64, error) {
	doc, err := s.findOne(ctx, bson.M{"article_id": articleID})
	if err != nil {
		return 0, fmt.Errorf("find index article %d: %w", articleID, err)
	}
	return doc.DocID, nil
}

func (s *MongoStore) nextDocID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": s.records.Name()},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next doc id: %w", err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) Insert(ctx context.Context, rec models.IntakeRecord) (int64, error) {
	id, err := s.nextDocID(ctx)
	if err != nil {
		return 0, err
	}
	doc := fieldsOf(rec)
	doc["doc_id"] = id
	if _, err := s.records.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("article %d: %w", rec.ArticleID, ErrDuplicateKey)
		}
		return 0, fmt.Errorf("insert article %d: %w", rec.ArticleID, err)
	}
	return id, nil
}

func (s *MongoStore) Update(ctx context.Context, handle int64, rec models.IntakeRecord) error {
	res, err := s.records.UpdateOne(ctx, bson.M{"doc_id": handle}, bson.M{"$set": fieldsOf(rec)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("article %d: %w", rec.ArticleID, ErrDuplicateKey)
		}
		return fmt.Errorf("update doc %d: %w", handle, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("doc %d: %w", handle, ErrRecordNotFound)
	}
	return nil
}

// Upsert replaces the fields of the article's document, creating it with a fresh
// handle if absent. Two concurrent first writers can both attempt the insert; the
// loser sees a duplicate key error and retries once, which then matches the
// winner's document.
func (s *MongoStore) Upsert(ctx context.Context, rec models.IntakeRecord) (int64, error) {
	id, err := s.upsertOnce(ctx, rec)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		id, err = s.upsertOnce(ctx, rec)
	}
	if err != nil {
		return 0, fmt.Errorf("upsert article %d: %w", rec.ArticleID, err)
	}
	return id, nil
}

func (s *MongoStore) upsertOnce(ctx context.Context, rec models.IntakeRecord) (int64, error) {
	if doc, err := s.findOne(ctx, bson.M{"article_id": rec.ArticleID}); err == nil {
		_, err := s.records.UpdateOne(ctx, bson.M{"doc_id": doc.DocID}, bson.M{"$set": fieldsOf(rec)})
		return doc.DocID, err
	} else if !errors.Is(err, ErrRecordNotFound) {
		return 0, err
	}

	newID, err := s.nextDocID(ctx)
	if err != nil {
		return 0, err
	}
	var out mongoIntake
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err = s.records.FindOneAndUpdate(ctx,
		bson.M{"article_id": rec.ArticleID},
		bson.M{"$set": fieldsOf(rec), "$setOnInsert": bson.M{"doc_id": newID}},
		opts,
	).Decode(&out)
	if err != nil {
		return 0, err
	}
	return out.DocID, nil
}
