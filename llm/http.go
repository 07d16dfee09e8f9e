package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

const defaultTimeout = 60 * time.Second

// NewHTTPClient returns a client with HTTP/2 enabled on its transport.
// Provider clients share one so connections are reused between dictations.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		slog.Warn("configure http2 transport", "error", err)
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
}

// DefaultHTTPClient returns the shared client used when none is supplied.
var DefaultHTTPClient = sync.OnceValue(func() *http.Client {
	return NewHTTPClient(defaultTimeout)
})

// StatusError is a non-2xx reply that carried no provider error envelope.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: %d - %s", e.Status, e.Body)
}

// envelope is a provider response that may embed an error object.
type envelope interface {
	apiError() error
}

// postJSON sends in as JSON and decodes the reply into out. A provider error
// envelope wins over the bare status so its type and message survive.
func postJSON(ctx context.Context, hc *http.Client, endpoint string, header http.Header, in any, out envelope) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if err := json.Unmarshal(body, out); err != nil {
		if !ok {
			return &StatusError{Status: resp.StatusCode, Body: string(body)}
		}
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := out.apiError(); err != nil {
		return err
	}
	if !ok {
		return &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}
