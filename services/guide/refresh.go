package guide

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"guiatv/models"
	"guiatv/services/parser"
	"guiatv/services/sources"
)

// inflight is a shared awaitable result for one channel's pending fetch.
// At most one fetch runs per channel; later requests await the same result.
type inflight struct {
	done     chan struct{}
	programs []models.Program
	err      error
}

// refreshChannel runs the resolve→fetch→parse→cache pipeline for one
// channel, deduplicating against any fetch already in flight.
func (s *Service) refreshChannel(ctx context.Context, channelID string) ([]models.Program, error) {
	s.mu.Lock()
	if fl, ok := s.pending[channelID]; ok {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-fl.done:
			return fl.programs, fl.err
		}
	}
	fl := &inflight{done: make(chan struct{})}
	s.pending[channelID] = fl
	s.mu.Unlock()

	programs, err := s.fetchChannel(ctx, channelID)

	fl.programs, fl.err = programs, err
	s.mu.Lock()
	delete(s.pending, channelID)
	s.mu.Unlock()
	close(fl.done)

	return programs, err
}

// fetchChannel performs one resolve→fetch→parse→cache cycle.
func (s *Service) fetchChannel(ctx context.Context, channelID string) ([]models.Program, error) {
	sel, err := s.resolver.Resolve(channelID)
	if err != nil {
		if errors.Is(err, sources.ErrNotFound) {
			// Unmapped channels keep an empty schedule until the external
			// mapping table learns about them.
			s.cache.Put(channelID, nil, time.Now())
		}
		return nil, fmt.Errorf("resolve %s: %w", channelID, err)
	}

	body, err := s.fetcher.Fetch(ctx, s.targetURL(sel))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", channelID, err)
	}

	var programs []models.Program
	switch sel.Upstream {
	case sources.UpstreamSecondary:
		programs = parser.ParseSecondary(channelID, body, time.Now())
	default:
		programs = parser.ParsePrimary(channelID, body, time.Now())
	}
	if len(programs) == 0 {
		// Markup came back but no pattern matched; leave the cache alone and
		// retry on the next pass, the upstream layout may have changed.
		return nil, fmt.Errorf("parse %s: no programs found in %s markup", channelID, sel.Upstream)
	}

	s.cache.Put(channelID, programs, time.Now())
	s.hub.Publish(channelID, programs)
	return programs, nil
}

// refreshAsync refreshes one channel in the background through the in-flight
// dedup map. Callers never wait on it.
func (s *Service) refreshAsync(channelID string) {
	s.runMu.Lock()
	ctx := s.ctx
	s.runMu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.refreshChannel(ctx, channelID); err != nil {
			log.Printf("[guide] background refresh failed for %s: %v", channelID, err)
		}
	}()
}

// RefreshOne synchronously refreshes a single channel and persists the cache.
func (s *Service) RefreshOne(ctx context.Context, channelID string) error {
	s.cache.Evict(channelID)
	if _, err := s.refreshChannel(ctx, channelID); err != nil {
		return err
	}
	s.persist()
	return nil
}

// RefreshStale refreshes every known channel whose cache entry is stale and
// returns the set of channel ids that were successfully refreshed.
func (s *Service) RefreshStale(ctx context.Context) map[string]struct{} {
	now := time.Now()
	var stale []string
	for _, id := range s.resolver.ChannelIDs() {
		if s.cache.IsStale(id, now) {
			stale = append(stale, id)
		}
	}
	return s.refreshSet(ctx, stale)
}

// RefreshAll refreshes every known channel regardless of staleness.
func (s *Service) RefreshAll(ctx context.Context) map[string]struct{} {
	return s.refreshSet(ctx, s.resolver.ChannelIDs())
}

// refreshSet processes channels in fixed-size batches, fetching concurrently
// within a batch and pausing between batches so the relays are not hammered.
// Per-channel failures are logged and skipped; they never abort the pass.
func (s *Service) refreshSet(ctx context.Context, channelIDs []string) map[string]struct{} {
	refreshed := make(map[string]struct{})
	if len(channelIDs) == 0 {
		return refreshed
	}

	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		log.Println("[guide] refresh already in progress, skipping duplicate request")
		return refreshed
	}
	s.refreshing = true
	s.lastError = ""
	onProgress := s.onProgress
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	batchSize := s.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 3
	}
	batchPause := time.Duration(s.cfg.BatchPauseMillis) * time.Millisecond

	total := len(channelIDs)
	processed := 0
	var refreshedMu sync.Mutex

	log.Printf("[guide] refreshing %d channels in batches of %d", total, batchSize)

	for start := 0; start < total; start += batchSize {
		// Cooperative stop: finish the current batch, start no new ones.
		if ctx.Err() != nil {
			log.Printf("[guide] refresh stopped after %d/%d channels", processed, total)
			break
		}

		end := start + batchSize
		if end > total {
			end = total
		}
		batch := channelIDs[start:end]

		p := pool.New().WithMaxGoroutines(len(batch))
		for _, id := range batch {
			id := id
			p.Go(func() {
				if _, err := s.refreshChannel(ctx, id); err != nil {
					log.Printf("[guide] refresh failed for %s: %v", id, err)
					s.mu.Lock()
					s.lastError = err.Error()
					s.mu.Unlock()
					return
				}
				refreshedMu.Lock()
				refreshed[id] = struct{}{}
				refreshedMu.Unlock()
			})
		}
		p.Wait()

		processed += len(batch)
		if onProgress != nil {
			onProgress(processed, total)
		}

		if end < total {
			select {
			case <-ctx.Done():
			case <-time.After(batchPause):
			}
		}
	}

	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()
	s.persist()

	log.Printf("[guide] refresh complete: %d/%d channels refreshed", len(refreshed), total)
	return refreshed
}

// Start begins the background refresh loop: one pass over stale channels at
// startup, then periodic passes.
func (s *Service) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.run()

	log.Println("[guide] refresh scheduler started")
	return nil
}

func (s *Service) run() {
	defer s.wg.Done()

	s.RefreshStale(s.ctx)

	interval := time.Duration(s.cfg.RefreshIntervalHours) * time.Hour
	if interval < time.Hour {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RefreshStale(s.ctx)
		}
	}
}

// Stop cancels the refresh loop and waits for in-flight work, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if !s.running {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[guide] refresh scheduler stopped gracefully")
	case <-ctx.Done():
		log.Println("[guide] refresh scheduler stopped (timeout)")
	}

	s.running = false
	return nil
}
