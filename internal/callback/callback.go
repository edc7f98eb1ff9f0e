package callback

import (
	"bytes"
	"context"
	"net/http"
	"snapshot-diff/internal/retry"
	"time"

	"golang.org/x/xerrors"
)

type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		// retry.Transport has no per-try timeout, so the client timeout covers every attempt.
		httpClient: retry.NewClient(5*time.Second, retry.NewExponentialBackOff(10*time.Millisecond, 1*time.Second, 3, nil), retry.NewDefaultRetryOn()),
	}
}

// Send PATCHes a JSON report to url.
func (c *Client) Send(ctx context.Context, url string, data []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		return xerrors.Errorf("callback returned %s", response.Status)
	}

	return nil
}
