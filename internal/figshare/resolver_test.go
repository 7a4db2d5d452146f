package figshare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const citation = "Smith, J. (2020): Title. A note. Another note"

func articleJSON(id int64) string {
	return fmt.Sprintf(`{"id": %d, "title": "Data", "description": "<p>desc</p>", "doi": "10.1234/x",
		"citation": %q, "license": {"value": 1, "name": "CC BY 4.0"}, "references": ["https://example.org/ref"]}`, id, citation)
}

func curationJSON(curationID, articleID int64, status string) string {
	return fmt.Sprintf(`{"id": %d, "status": %q, "article_id": %d, "item": %s}`, curationID, status, articleID, articleJSON(articleID))
}

// fakeFigshare serves canned review listings and details and records what it saw.
type fakeFigshare struct {
	mu       sync.Mutex
	reviews  map[string]string // article_id+status -> listing JSON
	details  map[string]string // curation id -> detail JSON
	articles map[string]string
	auth     []string
	queries  []string
}

func (f *fakeFigshare) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.queries = append(f.queries, r.URL.RawQuery)
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/v2/account/institution/reviews":
		key := r.URL.Query().Get("article_id") + "/" + r.URL.Query().Get("status")
		body, ok := f.reviews[key]
		if !ok {
			body = "[]"
		}
		_, _ = w.Write([]byte(body))
	case strings.HasPrefix(r.URL.Path, "/v2/account/institution/review/"):
		body, ok := f.details[strings.TrimPrefix(r.URL.Path, "/v2/account/institution/review/")]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "Entity not found: review", "code": "EntityNotFound"}`))
			return
		}
		_, _ = w.Write([]byte(body))
	case strings.HasPrefix(r.URL.Path, "/v2/articles/"):
		body, ok := f.articles[strings.TrimPrefix(r.URL.Path, "/v2/articles/")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message": "Invalid article id"}`))
			return
		}
		_, _ = w.Write([]byte(body))
	default:
		w.WriteHeader(http.StatusTeapot)
	}
}

func (f *fakeFigshare) seen() (auth, queries []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...), append([]string(nil), f.queries...)
}

func newTestClient(t *testing.T, f *fakeFigshare) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(Credentials{Production: "prod-key", Stage: "stage-key"},
		WithHTTPClient(srv.Client()),
		WithBaseURLs(srv.URL, srv.URL+"/"),
	)
}

func int64Ptr(v int64) *int64 { return &v }

func TestBaseURLSelection(t *testing.T) {
	t.Parallel()

	c := NewClient(Credentials{})
	if got := c.BaseURL(false); got != "https://api.figshare.com" {
		t.Fatalf("production base url = %s", got)
	}
	if got := c.BaseURL(true); got != "https://api.figsh.com" {
		t.Fatalf("stage base url = %s", got)
	}
}

func TestResolveNoMatchingReview(t *testing.T) {
	t.Parallel()

	f := &fakeFigshare{}
	c := newTestClient(t, f)

	_, err := c.Resolve(context.Background(), Request{ArticleID: 12966581})
	if !errors.Is(err, ErrNoMatchingReview) {
		t.Fatalf("expected ErrNoMatchingReview, got %v", err)
	}
	if !IsNotFound(err) {
		t.Fatal("ErrNoMatchingReview should be reported as not found")
	}
	_, queries := f.seen()
	if !strings.Contains(queries[0], "status=pending") || !strings.Contains(queries[0], "limit=1000") ||
		!strings.Contains(queries[0], "offset=0") {
		t.Fatalf("unexpected listing query: %s", queries[0])
	}
}

func TestResolveAllowApprovedFindsApprovedReview(t *testing.T) {
	t.Parallel()

	f := &fakeFigshare{
		reviews: map[string]string{"12966581/": `[{"id": 540005, "status": "approved"}]`},
		details: map[string]string{"540005": curationJSON(540005, 12966581, "approved")},
	}
	c := newTestClient(t, f)

	// Without allow_approved the pending-filtered listing is empty.
	if _, err := c.Resolve(context.Background(), Request{ArticleID: 12966581}); !errors.Is(err, ErrNoMatchingReview) {
		t.Fatalf("expected ErrNoMatchingReview, got %v", err)
	}

	cur, err := c.Resolve(context.Background(), Request{ArticleID: 12966581, AllowApproved: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cur.Curation.ID != 540005 || cur.Curation.Item.ID != 12966581 {
		t.Fatalf("unexpected curation: %+v", cur.Curation)
	}
	_, queries := f.seen()
	if strings.Contains(queries[1], "status=") {
		t.Fatalf("allow_approved listing must not filter status: %s", queries[1])
	}
}

func TestResolveReviewNotPending(t *testing.T) {
	t.Parallel()

	f := &fakeFigshare{details: map[string]string{"540005": curationJSON(540005, 12966581, "approved")}}
	c := newTestClient(t, f)

	_, err := c.Resolve(context.Background(), Request{ArticleID: 12966581, CurationID: int64Ptr(540005)})
	if !errors.Is(err, ErrReviewNotPending) {
		t.Fatalf("expected ErrReviewNotPending, got %v", err)
	}
	if !IsNotFound(err) {
		t.Fatal("ErrReviewNotPending should be reported as not found")
	}
	if _, queries := f.seen(); len(queries) != 1 {
		t.Fatalf("listing should be skipped when curation id is given, saw %d requests", len(queries))
	}
}

func TestResolvePendingUsesFirstMatchAndCredential(t *testing.T) {
	t.Parallel()

	f := &fakeFigshare{
		reviews: map[string]string{"12966581/pending": `[{"id": 540005, "status": "pending"}, {"id": 1, "status": "pending"}]`},
		details: map[string]string{"540005": curationJSON(540005, 12966581, "pending")},
	}
	c := newTestClient(t, f)

	cur, err := c.Resolve(context.Background(), Request{ArticleID: 12966581, Stage: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cur.Curation.ID != 540005 {
		t.Fatalf("expected first listing match, got %d", cur.Curation.ID)
	}
	if !strings.Contains(string(cur.Raw()), `"article_id": 12966581`) {
		t.Fatalf("raw payload not preserved: %s", cur.Raw())
	}
	auth, _ := f.seen()
	for _, a := range auth {
		if a != "token stage-key" {
			t.Fatalf("expected stage credential, got %q", a)
		}
	}
}

func TestResolveUpstreamErrorIsRelayed(t *testing.T) {
	t.Parallel()

	f := &fakeFigshare{}
	c := newTestClient(t, f)

	_, err := c.Resolve(context.Background(), Request{ArticleID: 1, CurationID: int64Ptr(999)})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", reqErr.StatusCode)
	}
	if !strings.Contains(string(reqErr.Body), "EntityNotFound") {
		t.Fatalf("body not kept verbatim: %s", reqErr.Body)
	}
	if reqErr.ContentType != "application/json" {
		t.Fatalf("unexpected content type: %s", reqErr.ContentType)
	}
}

func TestArticleIsPublic(t *testing.T) {
	t.Parallel()

	f := &fakeFigshare{articles: map[string]string{"12735992": articleJSON(12735992)}}
	c := newTestClient(t, f)

	p, err := c.Fetch(context.Background(), Request{ArticleID: 12735992, Public: true})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	a, ok := p.(*ArticlePayload)
	if !ok {
		t.Fatalf("expected *ArticlePayload, got %T", p)
	}
	if a.Article.ID != 12735992 || a.Article.DOI != "10.1234/x" {
		t.Fatalf("unexpected article: %+v", a.Article)
	}
	if auth, _ := f.seen(); auth[0] != "" {
		t.Fatalf("public endpoint must not carry a credential, got %q", auth[0])
	}

	_, err = c.Article(context.Background(), 42, false)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 RequestError, got %v", err)
	}
}

func TestEmptyResponse(t *testing.T) {
	t.Parallel()

	f := &fakeFigshare{articles: map[string]string{"5": ""}}
	c := newTestClient(t, f)

	_, err := c.Article(context.Background(), 5, false)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if !IsNotFound(err) {
		t.Fatal("empty response should map to not found")
	}
}
