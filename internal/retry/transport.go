package retry

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

// Transport retries round trips according to RetryOn, waiting RetryStrategy between attempts.
// Request bodies are replayed through GetBody, or buffered once when GetBody is not set.
type Transport struct {
	Base          http.RoundTripper
	RetryStrategy Strategy
	RetryOn       *On
}

// NewClient returns an http.Client retrying through Transport. timeout bounds all attempts together.
func NewClient(timeout time.Duration, strategy Strategy, on *On) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &Transport{
			Base:          http.DefaultTransport,
			RetryStrategy: strategy,
			RetryOn:       on,
		},
	}
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	getBody, err := replayableBody(request)
	if err != nil {
		return nil, err
	}

	for retryCount := uint(0); ; retryCount++ {
		attempt := request
		if retryCount > 0 && getBody != nil {
			body, err := getBody()
			if err != nil {
				return nil, xerrors.Errorf("failed to rewind request body: %w", err)
			}
			attempt = request.Clone(request.Context())
			attempt.Body = body
		}

		response, err := t.base().RoundTrip(attempt)

		retry := false
		if err != nil {
			retry = t.RetryOn != nil && t.RetryOn.CheckError(err)
		} else {
			retry = t.RetryOn != nil && t.RetryOn.CheckResponse(response)
		}
		if !retry {
			return response, err
		}

		sleep, exceeded := t.retryStrategy().Sleep(retryCount)
		if exceeded {
			return response, err
		}
		if response != nil {
			_, _ = io.Copy(io.Discard, response.Body)
			_ = response.Body.Close()
		}

		if err := request.Context().Err(); err != nil {
			return nil, err
		}
		timer := time.NewTimer(sleep)
		select {
		case <-request.Context().Done():
			timer.Stop()
			return nil, request.Context().Err()
		case <-timer.C:
		}
	}
}

func replayableBody(request *http.Request) (func() (io.ReadCloser, error), error) {
	if request.Body == nil || request.Body == http.NoBody {
		return nil, nil
	}
	if request.GetBody != nil {
		return request.GetBody, nil
	}

	data, err := io.ReadAll(request.Body)
	if err != nil {
		return nil, xerrors.Errorf("failed to buffer request body: %w", err)
	}
	_ = request.Body.Close()
	request.Body = io.NopCloser(bytes.NewReader(data))

	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) retryStrategy() Strategy {
	if t.RetryStrategy != nil {
		return t.RetryStrategy
	}
	return NewNever()
}
