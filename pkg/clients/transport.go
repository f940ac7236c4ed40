package clients

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns a client with a pooled transport for model and
// embedding calls. The timeout bounds a whole request including the
// streamed body.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxConnsPerHost:     32,
			MaxIdleConnsPerHost: 8,
			MaxIdleConns:        32,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}
