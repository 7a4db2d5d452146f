package figshare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// StatusPending is the review status a curator can still act on.
const StatusPending = "pending"

// Request identifies what to fetch from figshare.
type Request struct {
	ArticleID int64
	// CurationID skips the reviews listing when set.
	CurationID *int64
	// Stage selects the stage deployment and its credential.
	Stage bool
	// AllowApproved accepts reviews whose status is not pending.
	AllowApproved bool
	// Public fetches the public article endpoint instead of a review.
	Public bool
}

// Fetch resolves req to either the public article or its curation review.
func (c *Client) Fetch(ctx context.Context, req Request) (Payload, error) {
	if req.Public {
		a, err := c.Article(ctx, req.ArticleID, req.Stage)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	cur, err := c.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// Article fetches a public article. No credential is sent.
func (c *Client) Article(ctx context.Context, articleID int64, stage bool) (*ArticlePayload, error) {
	body, err := c.get(ctx, stage, false, "/v2/articles/"+strconv.FormatInt(articleID, 10), nil)
	if err != nil {
		return nil, err
	}
	p, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("article %d: %w", articleID, err)
	}
	article, ok := p.(*ArticlePayload)
	if !ok {
		return nil, fmt.Errorf("article %d: %w: got a curation envelope", articleID, ErrMalformedUpstreamData)
	}
	return article, nil
}

// Resolve finds the curation review for an article. Without a curation id the
// reviews listing is consulted and its first match is used; the review detail is
// then fetched and, unless AllowApproved is set, must still be pending.
func (c *Client) Resolve(ctx context.Context, req Request) (*CurationPayload, error) {
	var curationID int64
	if req.CurationID != nil {
		curationID = *req.CurationID
	} else {
		id, err := c.findReview(ctx, req)
		if err != nil {
			return nil, err
		}
		curationID = id
	}

	body, err := c.get(ctx, req.Stage, true, "/v2/account/institution/review/"+strconv.FormatInt(curationID, 10), nil)
	if err != nil {
		return nil, err
	}
	p, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("review %d: %w", curationID, err)
	}
	cur, ok := p.(*CurationPayload)
	if !ok {
		return nil, fmt.Errorf("review %d: %w: missing key %q", curationID, ErrMalformedUpstreamData, "item")
	}

	if !req.AllowApproved && cur.Curation.Status != StatusPending {
		return nil, fmt.Errorf("review %d has status %q: %w", curationID, cur.Curation.Status, ErrReviewNotPending)
	}
	return cur, nil
}

type reviewSummary struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (c *Client) findReview(ctx context.Context, req Request) (int64, error) {
	q := url.Values{}
	q.Set("article_id", strconv.FormatInt(req.ArticleID, 10))
	if !req.AllowApproved {
		q.Set("status", StatusPending)
	}
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", "0")

	body, err := c.get(ctx, req.Stage, true, "/v2/account/institution/reviews", q)
	if err != nil {
		return 0, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return 0, fmt.Errorf("reviews for article %d: %w", req.ArticleID, ErrEmptyResponse)
	}

	var reviews []reviewSummary
	if err := json.Unmarshal(body, &reviews); err != nil {
		return 0, fmt.Errorf("reviews for article %d: %w: %v", req.ArticleID, ErrMalformedUpstreamData, err)
	}
	if len(reviews) == 0 {
		return 0, fmt.Errorf("article %d: %w", req.ArticleID, ErrNoMatchingReview)
	}
	return reviews[0].ID, nil
}
