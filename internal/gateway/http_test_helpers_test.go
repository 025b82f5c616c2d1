package gateway

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/aws-agent/console/pkg/circuitbreaker"
	"github.com/aws-agent/console/pkg/retry"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestGateway(rt roundTripFunc, tokens TokenSource) *Client {
	client := NewClient(Config{
		BaseURL:       "https://backend.example.com/api",
		Timeout:       time.Second,
		CountingLimit: 10000,
		Retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
		},
		Breaker: circuitbreaker.Config{FailureThreshold: 10},
	}, tokens)
	client.httpClient = &http.Client{Transport: rt}
	return client
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}
