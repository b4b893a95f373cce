package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP client with the standard timeout used by all
// climate source adapters. Per-request deadlines still come from the
// caller's context; this is the hard upper bound.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
	}
}
