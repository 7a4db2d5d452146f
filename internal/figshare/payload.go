package figshare

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nitesh/readme_service/pkg/models"
)

// Payload is what the resolver hands back: either a bare article or a curation
// review wrapping one. The two cases are *ArticlePayload and *CurationPayload.
type Payload interface {
	// Raw is the upstream JSON exactly as received.
	Raw() json.RawMessage
	isPayload()
}

// ArticlePayload is a public article response.
type ArticlePayload struct {
	Article models.UpstreamArticle
	raw     json.RawMessage
}

func (p *ArticlePayload) Raw() json.RawMessage { return p.raw }
func (*ArticlePayload) isPayload()             {}

// CurationPayload is an institution review response; Curation.Item is the article.
type CurationPayload struct {
	Curation models.UpstreamCuration
	raw      json.RawMessage
}

func (p *CurationPayload) Raw() json.RawMessage { return p.raw }
func (*CurationPayload) isPayload()             {}

var articleKeys = []string{"id", "title", "description", "doi", "citation", "license", "references"}

// Decode classifies raw upstream JSON: an object with an "item" key is a curation,
// anything else must be an article. Missing required keys yield ErrMalformedUpstreamData.
func Decode(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrEmptyResponse
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpstreamData, err)
	}

	item, wrapped := fields["item"]
	if !wrapped {
		article, err := decodeArticle(fields)
		if err != nil {
			return nil, err
		}
		return &ArticlePayload{Article: article, raw: json.RawMessage(raw)}, nil
	}

	var cur struct {
		ID     *int64 `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &cur); err != nil {
		return nil, fmt.Errorf("%w: curation: %v", ErrMalformedUpstreamData, err)
	}
	if cur.ID == nil {
		return nil, fmt.Errorf("%w: curation: missing key %q", ErrMalformedUpstreamData, "id")
	}

	var itemFields map[string]json.RawMessage
	if err := json.Unmarshal(item, &itemFields); err != nil {
		return nil, fmt.Errorf("%w: curation item: %v", ErrMalformedUpstreamData, err)
	}
	article, err := decodeArticle(itemFields)
	if err != nil {
		return nil, fmt.Errorf("curation item: %w", err)
	}

	return &CurationPayload{
		Curation: models.UpstreamCuration{ID: *cur.ID, Status: cur.Status, Item: article},
		raw:      json.RawMessage(raw),
	}, nil
}

func decodeArticle(fields map[string]json.RawMessage) (models.UpstreamArticle, error) {
	var a models.UpstreamArticle
	for _, k := range articleKeys {
		if _, ok := fields[k]; !ok {
			return a, fmt.Errorf("%w: missing key %q", ErrMalformedUpstreamData, k)
		}
	}

	if err := json.Unmarshal(fields["id"], &a.ID); err != nil {
		return a, fmt.Errorf("%w: id: %v", ErrMalformedUpstreamData, err)
	}
	for k, dst := range map[string]*string{
		"title":       &a.Title,
		"description": &a.Description,
		"doi":         &a.DOI,
		"citation":    &a.Citation,
	} {
		if err := json.Unmarshal(fields[k], dst); err != nil {
			return a, fmt.Errorf("%w: %s: %v", ErrMalformedUpstreamData, k, err)
		}
	}
	if err := json.Unmarshal(fields["references"], &a.References); err != nil {
		return a, fmt.Errorf("%w: references: %v", ErrMalformedUpstreamData, err)
	}
	a.License = fields["license"]
	return a, nil
}
