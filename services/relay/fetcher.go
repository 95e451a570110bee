// Package relay fetches upstream guide pages through a rotating pool of
// proxy endpoints. Relays are unreliable; the fetcher remembers the last
// relay that worked and starts there on the next call.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"guiatv/config"
)

// ErrAllRelaysFailed indicates every relay failed in every retry pass.
var ErrAllRelaysFailed = errors.New("all relays failed")

// Fetcher performs HTTP GETs through the relay pool with retry and backoff.
type Fetcher struct {
	endpoints    []string // URL templates with a %s slot for the escaped target
	client       *http.Client
	userAgent    string
	minBodyBytes int
	maxPasses    int

	mu     sync.Mutex
	cursor int // index of the last relay that succeeded
}

// NewFetcher creates a fetcher from relay settings. The provided client may
// be nil, in which case a client with the configured timeout is used.
func NewFetcher(cfg config.RelaySettings, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	maxPasses := cfg.MaxPasses
	if maxPasses < 1 {
		maxPasses = 1
	}
	return &Fetcher{
		endpoints:    append([]string(nil), cfg.Endpoints...),
		client:       client,
		userAgent:    cfg.UserAgent,
		minBodyBytes: cfg.MinBodyBytes,
		maxPasses:    maxPasses,
	}
}

// Fetch retrieves targetURL through the relay pool. It tries every relay in
// order starting at the sticky cursor; after a full failed pass it backs off
// (1s, 2s, 4s, ...) and tries again, up to the configured number of passes.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	if len(f.endpoints) == 0 {
		return "", errors.New("no relay endpoints configured")
	}

	var body string
	err := retry.Do(
		func() error {
			b, err := f.tryAllRelays(ctx, targetURL)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Attempts(uint(f.maxPasses)),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAllRelaysFailed, err)
	}
	return body, nil
}

// tryAllRelays makes one pass over the relay list starting at the cursor.
// There is no delay between relays within a pass; a 429 just advances to the
// next relay immediately.
func (f *Fetcher) tryAllRelays(ctx context.Context, targetURL string) (string, error) {
	f.mu.Lock()
	start := f.cursor
	f.mu.Unlock()

	var lastErr error
	for i := 0; i < len(f.endpoints); i++ {
		idx := (start + i) % len(f.endpoints)

		body, err := f.tryRelay(ctx, f.endpoints[idx], targetURL)
		if err == nil {
			f.mu.Lock()
			f.cursor = idx
			f.mu.Unlock()
			return body, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no relays tried")
	}
	return "", lastErr
}

// tryRelay issues a single GET through one relay endpoint.
func (f *Fetcher) tryRelay(ctx context.Context, endpoint, targetURL string) (string, error) {
	relayURL := buildRelayURL(endpoint, targetURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, relayURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("relay rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("relay returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read relay response: %w", err)
	}
	if len(data) <= f.minBodyBytes {
		return "", fmt.Errorf("relay body too small (%d bytes)", len(data))
	}
	return string(data), nil
}

// Cursor returns the index of the relay the next fetch will start from.
func (f *Fetcher) Cursor() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

// buildRelayURL substitutes the target into the relay template. Templates
// without a %s slot get the escaped target appended.
func buildRelayURL(endpoint, targetURL string) string {
	escaped := url.QueryEscape(targetURL)
	if strings.Contains(endpoint, "%s") {
		return fmt.Sprintf(endpoint, escaped)
	}
	log.Printf("[relay] endpoint %q has no %%s slot, appending target", endpoint)
	return endpoint + escaped
}
