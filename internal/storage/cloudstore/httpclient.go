package cloudstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
)

// httpClient is the account-scoped bearer-token client shared by the
// metadata and blob legs, wrapping requests in exponential backoff with
// jitter and categorized retry behavior, adapted from the
// teacher's retry-wrapper-over-an-interface pattern but applied to HTTP
// calls directly since cenkalti/backoff/v4 supplies the retry loop itself.
type httpClient struct {
	baseURL    string
	bearer     string
	httpClient *http.Client
	maxRetries int
}

func newHTTPClient(baseURL, bearer string, timeout time.Duration, maxRetries int) *httpClient {
	return &httpClient{
		baseURL:    baseURL,
		bearer:     bearer,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

// doJSON issues method/path with an optional JSON body, retrying on network
// errors, 429, and 5xx; never retrying other 4xx, 413, or 507.
func (c *httpClient) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return merrors.Storage(err, "encoding request body")
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(merrors.Network(err, "building request"))
		}
		req.Header.Set("Content-Type", "application/json")
		if c.bearer != "" {
			req.Header.Set("Authorization", "Bearer "+c.bearer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return merrors.Network(err, "%s %s", method, path)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusNoContent {
			if out != nil && resp.StatusCode != http.StatusNoContent {
				if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
					return backoff.Permanent(merrors.Storage(err, "decoding response"))
				}
			}
			return nil
		}

		return classifyStatus(resp)
	}

	if err := backoff.Retry(operation, bo); err != nil {
		return err
	}
	return nil
}

// classifyStatus turns an HTTP error response into a retryable or permanent
// *merrors.Error per the retry-classification table above.
func classifyStatus(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	baseErr := fmt.Errorf("status %d: %s", resp.StatusCode, string(data))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return merrors.Network(baseErr, "rate limited")
	case resp.StatusCode == http.StatusRequestEntityTooLarge || resp.StatusCode == http.StatusInsufficientStorage:
		return backoff.Permanent(merrors.Limit("payload rejected: %s", baseErr))
	case resp.StatusCode >= 500:
		return merrors.Network(baseErr, "server error")
	default:
		return backoff.Permanent(merrors.Storage(baseErr, "request rejected"))
	}
}
