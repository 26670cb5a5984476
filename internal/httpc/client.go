// Package httpc builds HTTP clients for outbound provider calls.
// Never use http.DefaultClient: it has no timeout.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	DefaultTLSTimeout      = 10 * time.Second
)

// transport is shared so clients with different timeouts reuse connections.
var transport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   DefaultConnectTimeout,
		KeepAlive: DefaultKeepAlive,
	}).DialContext,
	MaxIdleConns:          20,
	MaxIdleConnsPerHost:   4,
	IdleConnTimeout:       DefaultIdleConnTimeout,
	TLSHandshakeTimeout:   DefaultTLSTimeout,
	ExpectContinueTimeout: 1 * time.Second,
}

// New returns a client with the given overall request timeout.
// A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// CloseIdle drops pooled connections. Call on shutdown.
func CloseIdle() {
	transport.CloseIdleConnections()
}
