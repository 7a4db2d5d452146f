package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/nitesh/readme_service/internal/figshare"
	"github.com/nitesh/readme_service/internal/store"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes the standard error envelope.
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// classify maps a service error to an HTTP status and a log/envelope code.
func classify(err error) (int, string) {
	var urlErr *url.Error
	switch {
	case errors.Is(err, figshare.ErrNoMatchingReview):
		return http.StatusNotFound, "no_matching_review"
	case errors.Is(err, figshare.ErrReviewNotPending):
		return http.StatusNotFound, "review_not_pending"
	case errors.Is(err, figshare.ErrEmptyResponse):
		return http.StatusNotFound, "empty_upstream_response"
	case errors.Is(err, figshare.ErrMalformedUpstreamData):
		return http.StatusInternalServerError, "malformed_upstream_data"
	case errors.Is(err, store.ErrRecordNotFound):
		return http.StatusNotFound, "record_not_found"
	case errors.Is(err, store.ErrDuplicateKey):
		return http.StatusConflict, "duplicate_record"
	case errors.As(err, &urlErr):
		return http.StatusBadGateway, "upstream_unreachable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// isUpstreamFailure reports whether err came from resolving figshare data rather
// than from the intake store.
func isUpstreamFailure(err error) bool {
	var reqErr *figshare.RequestError
	var urlErr *url.Error
	return errors.As(err, &reqErr) ||
		errors.Is(err, figshare.ErrNoMatchingReview) ||
		errors.Is(err, figshare.ErrReviewNotPending) ||
		errors.Is(err, figshare.ErrEmptyResponse) ||
		errors.Is(err, figshare.ErrMalformedUpstreamData) ||
		errors.As(err, &urlErr)
}

// respondServiceError relays upstream failures verbatim and maps everything else
// through classify.
func (h *Handler) respondServiceError(c *gin.Context, err error) {
	var reqErr *figshare.RequestError
	if errors.As(err, &reqErr) {
		h.log.Warn("figshare request failed", "code", "upstream_request_failed",
			"status", reqErr.StatusCode, "url", reqErr.URL)
		ct := reqErr.ContentType
		if ct == "" {
			ct = "application/json"
		}
		c.Data(reqErr.StatusCode, ct, reqErr.Body)
		return
	}

	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "code", code, "path", c.FullPath(), "error", err)
	} else {
		h.log.Warn("request failed", "code", code, "path", c.FullPath(), "error", err)
	}
	RespondError(c, status, code, err)
}
