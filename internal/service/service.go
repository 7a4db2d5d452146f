package service

import (
	"context"
	"errors"
	"fmt"

	dbtypes "github.com/nitesh/readme_service/internal/db"
	"github.com/nitesh/readme_service/internal/figshare"
	"github.com/nitesh/readme_service/internal/logger"
	"github.com/nitesh/readme_service/internal/readme"
	"github.com/nitesh/readme_service/internal/store"
	"github.com/nitesh/readme_service/pkg/models"
)

// Resolver fetches upstream figshare payloads.
type Resolver interface {
	Fetch(ctx context.Context, req figshare.Request) (figshare.Payload, error)
}

// ArticleCache holds raw public article payloads. A nil cache is allowed.
type ArticleCache interface {
	Get(ctx context.Context, articleID int64, stage bool) ([]byte, bool)
	Set(ctx context.Context, articleID int64, stage bool, raw []byte)
}

// Service ties the resolver, normalizer and intake store together.
type Service struct {
	resolver   Resolver
	normalizer *readme.Normalizer
	repo       store.IntakeStore
	cache      ArticleCache
	log        *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the public article cache.
func WithCache(c ArticleCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithNormalizer replaces the default citation rule.
func WithNormalizer(n *readme.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(resolver Resolver, repo store.IntakeStore, opts ...Option) *Service {
	s := &Service{
		resolver:   resolver,
		normalizer: readme.NewNormalizer(nil),
		repo:       repo,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FormData is what the intake form is rendered from.
type FormData struct {
	Metadata models.ReadmeMetadata
	Record   models.IntakeRecord
	// Existing is false when the form is shown with empty defaults.
	Existing bool
}

// Figshare returns the resolved upstream payload. Public articles go through the
// cache when one is configured.
func (s *Service) Figshare(ctx context.Context, req figshare.Request) (figshare.Payload, error) {
	if req.Public && s.cache != nil {
		if raw, ok := s.cache.Get(ctx, req.ArticleID, req.Stage); ok {
			if p, err := figshare.Decode(raw); err == nil {
				return p, nil
			}
			s.log.Warn("discarding undecodable cache entry", "article_id", req.ArticleID)
		}
	}

	p, err := s.resolver.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Public && s.cache != nil {
		s.cache.Set(ctx, req.ArticleID, req.Stage, p.Raw())
	}
	return p, nil
}

// Metadata resolves and normalizes the README record for an article.
func (s *Service) Metadata(ctx context.Context, req figshare.Request) (models.ReadmeMetadata, error) {
	p, err := s.Figshare(ctx, req)
	if err != nil {
		return models.ReadmeMetadata{}, err
	}
	return s.normalizer.Normalize(p)
}

// FormData loads metadata and the stored intake record. A missing record yields
// empty defaults rather than an error.
func (s *Service) FormData(ctx context.Context, req figshare.Request) (FormData, error) {
	md, err := s.Metadata(ctx, req)
	if err != nil {
		return FormData{}, err
	}

	rec, err := s.repo.Find(ctx, req.ArticleID)
	switch {
	case err == nil:
		return FormData{Metadata: md, Record: *rec, Existing: true}, nil
	case errors.Is(err, store.ErrRecordNotFound):
		return FormData{Metadata: md, Record: emptyRecord(md)}, nil
	default:
		return FormData{}, fmt.Errorf("load intake record: %w", err)
	}
}

func emptyRecord(md models.ReadmeMetadata) models.IntakeRecord {
	return models.IntakeRecord{ArticleID: md.ArticleID, CurationID: idFromMetadata(md)}
}

func idFromMetadata(md models.ReadmeMetadata) dbtypes.OptionalID {
	return dbtypes.IDFromPtr(md.CurationID)
}

// Submit stores the curator's fields for the article, replacing any earlier
// submission. Article and curation ids come from the resolved metadata, not from
// the form.
func (s *Service) Submit(ctx context.Context, req figshare.Request, fields models.IntakeRecord) (models.ReadmeMetadata, models.IntakeRecord, error) {
	md, err := s.Metadata(ctx, req)
	if err != nil {
		return models.ReadmeMetadata{}, models.IntakeRecord{}, err
	}

	rec := fields
	rec.ArticleID = md.ArticleID
	rec.CurationID = idFromMetadata(md)

	handle, err := s.repo.Upsert(ctx, rec)
	if err != nil {
		return models.ReadmeMetadata{}, models.IntakeRecord{}, fmt.Errorf("save intake record: %w", err)
	}
	s.log.Info("intake record saved", "article_id", rec.ArticleID, "doc_id", handle)
	return md, rec, nil
}

// ReadRecord returns the stored record for an article.
func (s *Service) ReadRecord(ctx context.Context, articleID int64) (*models.IntakeRecord, error) {
	return s.repo.Find(ctx, articleID)
}

// RecordIndex returns the store handle of an article's record.
func (s *Service) RecordIndex(ctx context.Context, articleID int64) (int64, error) {
	return s.repo.FindIndex(ctx, articleID)
}

// CreateRecord inserts rec and fails with store.ErrDuplicateKey if the article
// already has one.
func (s *Service) CreateRecord(ctx context.Context, rec models.IntakeRecord) (int64, error) {
	return s.repo.Insert(ctx, rec)
}

// UpdateRecord overwrites the record behind handle.
func (s *Service) UpdateRecord(ctx context.Context, handle int64, rec models.IntakeRecord) error {
	return s.repo.Update(ctx, handle, rec)
}
