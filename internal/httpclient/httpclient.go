// Package httpclient provides the shared HTTP client used for outbound
// oracle calls, with connection pooling and conservative timeouts.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// New returns an HTTP client with the given overall request timeout.
// Transport-level timeouts guard against stalled dials and handshakes
// independently of the per-request deadline.
func New(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
