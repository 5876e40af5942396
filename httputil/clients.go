package httputil

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewAPIClient returns a plain client for the store and harvest APIs.
// Those calls are single-attempt with a fixed timeout, never retried.
func NewAPIClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// NewDownloadClient returns a retrying client for media downloads.
func NewDownloadClient(timeout time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	return rc.StandardClient()
}
