package models

import (
	"encoding/json"

	dbtypes "github.com/nitesh/readme_service/internal/db"
)

// UpstreamArticle is the subset of a Figshare article used by the service.
type UpstreamArticle struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DOI         string          `json:"doi"`
	License     json.RawMessage `json:"license"`
	Citation    string          `json:"citation"`
	References  []string        `json:"references"`
}

// UpstreamCuration is a Figshare institution review wrapping an article.
type UpstreamCuration struct {
	ID     int64           `json:"id"`
	Status string          `json:"status"`
	Item   UpstreamArticle `json:"item"`
}

// ReadmeMetadata is the shortened record shown on the form and returned by /metadata.
type ReadmeMetadata struct {
	ArticleID         int64           `json:"article_id"`
	CurationID        *int64          `json:"curation_id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	DOI               string          `json:"doi"`
	PreferredCitation []string        `json:"preferred_citation"`
	License           json.RawMessage `json:"license"`
	Summary           string          `json:"summary"`
	References        []string        `json:"references"`
}

// IntakeRecord holds the free-text fields a curator submits through the form.
type IntakeRecord struct {
	ArticleID    int64              `db:"article_id" json:"article_id"`
	CurationID   dbtypes.OptionalID `db:"curation_id" json:"curation_id"`
	Citation     string             `db:"citation" json:"citation"`
	Summary      string             `db:"summary" json:"summary"`
	Files        string             `db:"files" json:"files"`
	Materials    string             `db:"materials" json:"materials"`
	Contributors string             `db:"contributors" json:"contributors"`
	Notes        string             `db:"notes" json:"notes"`
}

// IntakeFields maps the free-text form fields to their display labels, in form order.
var IntakeFields = []struct {
	Name  string
	Label string
}{
	{"citation", "Preferred Citation"},
	{"summary", "Summary"},
	{"files", "Files and Folders"},
	{"materials", "Materials and Methods"},
	{"contributors", "Contributor Roles"},
	{"notes", "Notes"},
}

// Values returns the free-text fields keyed by form field name.
func (r IntakeRecord) Values() map[string]string {
	return map[string]string{
		"citation":     r.Citation,
		"summary":      r.Summary,
		"files":        r.Files,
		"materials":    r.Materials,
		"contributors": r.Contributors,
		"notes":        r.Notes,
	}
}

// Version describes the running build.
type Version struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
}
