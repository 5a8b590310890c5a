// Package netx provides connectivity probes used as the sync
// precondition and as the application's isOnline signal.
package netx

import (
	"context"
	"net/http"
	"time"

	"github.com/tessadoran/stride/internal/remote"
)

// HTTPProbe reports connectivity by issuing a HEAD request against a
// well-known endpoint. Any response at all counts as online; the probe
// asks "can this device reach the network", not "is the endpoint healthy".
type HTTPProbe struct {
	URL     string
	Timeout time.Duration

	client *http.Client
}

// NewHTTPProbe creates a probe against url with the given per-check
// timeout. A zero timeout defaults to 3 seconds.
func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProbe{
		URL:     url,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Online reports whether the endpoint answered.
func (p *HTTPProbe) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// GatewayProbe reports connectivity by pinging the remote store itself.
// This is the strictest probe: online means "the store we sync against is
// reachable right now".
type GatewayProbe struct {
	Gateway remote.Gateway
	Timeout time.Duration
}

// NewGatewayProbe creates a probe that pings gateway. A zero timeout
// defaults to 3 seconds.
func NewGatewayProbe(gateway remote.Gateway, timeout time.Duration) *GatewayProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &GatewayProbe{Gateway: gateway, Timeout: timeout}
}

// Online reports whether the remote store answered a ping.
func (p *GatewayProbe) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return p.Gateway.Ping(ctx) == nil
}

// Static always answers the same way. Local-only mode uses Static(false)
// so nothing ever tries the network; tests use both values.
type Static bool

// Online implements the probe contract.
func (s Static) Online(context.Context) bool { return bool(s) }
