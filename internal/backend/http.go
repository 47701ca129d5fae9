package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// restClient is the HTTP plumbing shared by the REST backends.
type restClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	mu         sync.RWMutex
	connected  bool
}

func newRESTClient(baseURL string, opts Options) *restClient {
	// Remove trailing slash
	baseURL = strings.TrimSuffix(baseURL, "/")

	rc := &restClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: opts.timeout(),
		},
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		rc.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return rc
}

// ping checks that path answers 200 and marks the client connected.
func (rc *restClient) ping(ctx context.Context, path string) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrNotConnected, resp.StatusCode)
	}

	rc.connected = true
	return nil
}

func (rc *restClient) close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.connected = false
}

func (rc *restClient) isConnected() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.connected
}

// get performs a rate-limited GET and decodes the JSON body into result.
func (rc *restClient) get(ctx context.Context, path string, result interface{}) error {
	if rc.limiter != nil {
		if err := rc.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.baseURL+path, nil)
	if err != nil {
		return err
	}

	// Add cache-busting headers to avoid stale CDN responses
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrAddressNotFound
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
