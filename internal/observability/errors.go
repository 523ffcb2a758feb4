package observability

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/httpx"
)

const (
	ErrorNetwork   = "network"
	ErrorTimeout   = "timeout"
	ErrorParsing   = "parsing"
	ErrorAI        = "ai"
	ErrorRateLimit = "rate_limit"
	ErrorBlocked   = "blocked"
	ErrorSchema    = "schema"
	ErrorStore     = "store"
	ErrorUnknown   = "unknown"
)

func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Status == http.StatusTooManyRequests:
			return ErrorRateLimit
		case fe.Status == http.StatusForbidden:
			return ErrorBlocked
		default:
			return ErrorNetwork
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "robots.txt") || strings.Contains(msg, "forbidden") {
		return ErrorBlocked
	}
	return ErrorUnknown
}

func ClassifyUpstreamError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if kind := ClassifyFetchError(err); kind != ErrorUnknown {
		return kind
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "parse") ||
		strings.Contains(msg, "decode") ||
		strings.Contains(msg, "unmarshal") ||
		strings.Contains(msg, "invalid character") {
		return ErrorParsing
	}
	return ErrorNetwork
}
