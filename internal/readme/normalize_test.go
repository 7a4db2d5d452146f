package readme

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/nitesh/readme_service/internal/figshare"
)

func articleJSON(id int64, citation string) string {
	return fmt.Sprintf(`{"id": %d, "title": "Sample data", "description": "<p>About the data</p>",
		"doi": "10.1234/x", "citation": %q, "license": {"value": 1, "name": "CC BY 4.0"},
		"references": ["https://example.org/a", "https://example.org/b"]}`, id, citation)
}

func TestSplitCitation(t *testing.T) {
	tests := []struct {
		name     string
		citation string
		want     []string
		wantErr  bool
	}{
		{
			name:     "authors and notes",
			citation: "Smith, J. (2020): Title. A note. Another note",
			want:     []string{"Smith, J. (2020).", "Title.", "A note.", "Another note."},
		},
		{
			name:     "title only",
			citation: "Ly, C.; Doe, J. (2021): Dataset",
			want:     []string{"Ly, C.; Doe, J. (2021).", "Dataset."},
		},
		{
			name:     "trailing period is kept",
			citation: "Doe, J. (2019): Title. https://doi.org/10.1/x.",
			want:     []string{"Doe, J. (2019).", "Title.", "https://doi.org/10.1/x.."},
		},
		{
			name:     "no boundary",
			citation: "Smith, J. 2020. Title",
			wantErr:  true,
		},
		{
			name:     "boundary without space",
			citation: "Smith, J. (2020):Title",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitCitation(tt.citation)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedUpstreamData) {
					t.Fatalf("expected ErrMalformedUpstreamData, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitCitation: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("SplitCitation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeArticle(t *testing.T) {
	md, err := NormalizeJSON([]byte(articleJSON(12735992, "Smith, J. (2020): Title. A note. Another note")))
	if err != nil {
		t.Fatalf("NormalizeJSON: %v", err)
	}

	if md.ArticleID != 12735992 {
		t.Fatalf("unexpected article id: %d", md.ArticleID)
	}
	if md.CurationID != nil {
		t.Fatalf("article payload must not set curation id, got %d", *md.CurationID)
	}
	if md.DOI != "https://doi.org/10.1234/x" {
		t.Fatalf("unexpected doi: %s", md.DOI)
	}
	if md.Summary != md.Description || md.Description != "<p>About the data</p>" {
		t.Fatalf("summary should copy description: %q / %q", md.Summary, md.Description)
	}
	want := []string{"Smith, J. (2020).", "Title.", "A note.", "Another note."}
	if !reflect.DeepEqual(md.PreferredCitation, want) {
		t.Fatalf("unexpected citation: %q", md.PreferredCitation)
	}
	if len(md.References) != 2 {
		t.Fatalf("unexpected references: %v", md.References)
	}
	if !strings.Contains(string(md.License), "CC BY 4.0") {
		t.Fatalf("unexpected license: %s", md.License)
	}
}

func TestNormalizeCuration(t *testing.T) {
	raw := fmt.Sprintf(`{"id": 540005, "status": "pending", "item": %s}`,
		articleJSON(12966581, "Smith, J. (2020): Title"))

	md, err := NormalizeJSON([]byte(raw))
	if err != nil {
		t.Fatalf("NormalizeJSON: %v", err)
	}
	if md.ArticleID != 12966581 {
		t.Fatalf("article id must come from the item, got %d", md.ArticleID)
	}
	if md.CurationID == nil || *md.CurationID != 540005 {
		t.Fatalf("unexpected curation id: %v", md.CurationID)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing references", raw: `{"id": 1, "title": "", "description": "", "doi": "", "citation": "A (1): B", "license": null}`},
		{name: "bad citation", raw: articleJSON(1, "no boundary here")},
		{name: "curation item missing citation", raw: `{"id": 2, "item": {"id": 1, "title": "", "description": "", "doi": "", "license": null, "references": []}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NormalizeJSON([]byte(tt.raw)); !errors.Is(err, ErrMalformedUpstreamData) {
				t.Fatalf("expected ErrMalformedUpstreamData, got %v", err)
			}
		})
	}
}

func TestNormalizerCustomParser(t *testing.T) {
	n := NewNormalizer(CitationParserFunc(func(c string) ([]string, error) {
		return []string{strings.ToUpper(c)}, nil
	}))

	md, err := NormalizeJSON([]byte(articleJSON(3, "Smith, J. (2020): Title")))
	if err != nil {
		t.Fatalf("NormalizeJSON: %v", err)
	}
	if len(md.PreferredCitation) != 2 {
		t.Fatalf("default parser expected, got %q", md.PreferredCitation)
	}

	p := mustDecode(t, articleJSON(3, "no boundary"))
	md, err = n.Normalize(p)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !reflect.DeepEqual(md.PreferredCitation, []string{"NO BOUNDARY"}) {
		t.Fatalf("custom parser not used: %q", md.PreferredCitation)
	}
}

func mustDecode(t *testing.T, raw string) figshare.Payload {
	t.Helper()
	p, err := figshare.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return p
}
