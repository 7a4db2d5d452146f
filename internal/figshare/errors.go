package figshare

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoMatchingReview means the reviews listing had no entry for the article.
	ErrNoMatchingReview = errors.New("no matching figshare review")

	// ErrReviewNotPending means the review exists but is no longer pending and
	// approved reviews were not allowed.
	ErrReviewNotPending = errors.New("figshare review is not pending")

	// ErrEmptyResponse means figshare answered 2xx with an empty body, which it does
	// for some invalid article ids.
	ErrEmptyResponse = errors.New("empty response from figshare")

	// ErrMalformedUpstreamData means a 2xx payload lacked a required field or could
	// not be decoded.
	ErrMalformedUpstreamData = errors.New("malformed figshare data")
)

// RequestError is a non-2xx answer from figshare. Body is kept verbatim so it can
// be relayed to the caller unchanged.
type RequestError struct {
	StatusCode  int
	Body        []byte
	ContentType string
	URL         string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("figshare request failed: status=%d url=%s body=%s",
		e.StatusCode, e.URL, strings.TrimSpace(string(e.Body)))
}

// IsNotFound reports whether err should be presented to callers as "not found".
// Upstream 404s count as well.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNoMatchingReview) || errors.Is(err, ErrReviewNotPending) || errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode == 404
	}
	return false
}
