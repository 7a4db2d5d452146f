// Package readme turns figshare payloads into the shortened README metadata record.
package readme

import (
	"fmt"
	"strings"

	"github.com/nitesh/readme_service/internal/figshare"
	"github.com/nitesh/readme_service/pkg/models"
)

// ErrMalformedUpstreamData is returned when a payload is missing a field the
// README record needs or its citation cannot be split.
var ErrMalformedUpstreamData = figshare.ErrMalformedUpstreamData

const doiResolver = "https://doi.org/"

// CitationParser splits a formatted citation into preferred-citation entries.
type CitationParser interface {
	Parse(citation string) ([]string, error)
}

// CitationParserFunc adapts a function to CitationParser.
type CitationParserFunc func(string) ([]string, error)

func (f CitationParserFunc) Parse(citation string) ([]string, error) { return f(citation) }

// Normalizer builds ReadmeMetadata from figshare payloads.
type Normalizer struct {
	citations CitationParser
}

// NewNormalizer returns a Normalizer; a nil parser means SplitCitation.
func NewNormalizer(p CitationParser) *Normalizer {
	if p == nil {
		p = CitationParserFunc(SplitCitation)
	}
	return &Normalizer{citations: p}
}

var defaultNormalizer = NewNormalizer(nil)

// Normalize uses the default citation rule.
func Normalize(p figshare.Payload) (models.ReadmeMetadata, error) {
	return defaultNormalizer.Normalize(p)
}

// NormalizeJSON decodes raw figshare JSON and normalizes it.
func NormalizeJSON(raw []byte) (models.ReadmeMetadata, error) {
	p, err := figshare.Decode(raw)
	if err != nil {
		return models.ReadmeMetadata{}, err
	}
	return defaultNormalizer.Normalize(p)
}

// Normalize maps a payload to ReadmeMetadata. For a curation the article id comes
// from the wrapped item and the curation id from the envelope.
func (n *Normalizer) Normalize(p figshare.Payload) (models.ReadmeMetadata, error) {
	var (
		article    models.UpstreamArticle
		curationID *int64
	)
	switch v := p.(type) {
	case *figshare.ArticlePayload:
		article = v.Article
	case *figshare.CurationPayload:
		article = v.Curation.Item
		id := v.Curation.ID
		curationID = &id
	default:
		return models.ReadmeMetadata{}, fmt.Errorf("%w: unsupported payload %T", ErrMalformedUpstreamData, p)
	}

	authors, err := n.citations.Parse(article.Citation)
	if err != nil {
		return models.ReadmeMetadata{}, fmt.Errorf("article %d: %w", article.ID, err)
	}

	return models.ReadmeMetadata{
		ArticleID:         article.ID,
		CurationID:        curationID,
		Title:             article.Title,
		Description:       article.Description,
		DOI:               doiResolver + article.DOI,
		PreferredCitation: authors,
		License:           article.License,
		Summary:           article.Description,
		References:        article.References,
	}, nil
}

// SplitCitation splits a figshare citation such as
// "Smith, J. (2020): Title. A note" into
// ["Smith, J. (2020).", "Title.", "A note."].
//
// The first entry is everything before the first "):" plus ")."; the rest is the
// text after the first "): " (up to a second "): ", if any) split on ". ".
// A period inside an author list or title splits it too.
func SplitCitation(citation string) ([]string, error) {
	head, _, found := strings.Cut(citation, "):")
	if !found {
		return nil, fmt.Errorf("%w: citation has no \"):\" boundary: %q", ErrMalformedUpstreamData, citation)
	}
	parts := strings.Split(citation, "): ")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: citation has no \"): \" boundary: %q", ErrMalformedUpstreamData, citation)
	}

	authors := []string{head + ")."}
	for _, row := range strings.Split(parts[1], ". ") {
		authors = append(authors, row+".")
	}
	return authors, nil
}
