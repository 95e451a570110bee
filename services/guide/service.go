// Package guide owns the program cache and the refresh pipeline that keeps
// it fresh: resolve a channel's upstream source, fetch its page through the
// relay pool, parse the markup, and replace the cached schedule.
package guide

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"guiatv/config"
	"guiatv/internal/database"
	"guiatv/models"
	"guiatv/services/hub"
	"guiatv/services/sources"
)

const (
	cacheKey       = "guide.cache"
	lastRefreshKey = "guide.lastRefresh"
)

// Fetcher retrieves raw markup for a target URL. Satisfied by relay.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (string, error)
}

// Service is the guide core: cache, refresh scheduling, and the consumer API.
type Service struct {
	cfg      config.GuideSettings
	srcCfg   config.SourcesSettings
	resolver *sources.Resolver
	fetcher  Fetcher
	store    database.Store
	hub      *hub.Hub
	cache    *Cache

	mu          sync.Mutex // guards pending, refreshing, lastError, lastRefresh
	pending     map[string]*inflight
	refreshing  bool
	lastError   string
	lastRefresh time.Time

	onProgress func(processed, total int)

	runMu   sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates the guide service and loads the persisted cache from
// the store before any network activity.
func NewService(
	cfg config.GuideSettings,
	srcCfg config.SourcesSettings,
	resolver *sources.Resolver,
	fetcher Fetcher,
	store database.Store,
	updateHub *hub.Hub,
) *Service {
	staleAfter := time.Duration(cfg.StaleAfterDays) * 24 * time.Hour
	if staleAfter <= 0 {
		staleAfter = 30 * 24 * time.Hour
	}
	minFuture := cfg.MinFuturePrograms
	if minFuture <= 0 {
		minFuture = 5
	}

	s := &Service{
		cfg:      cfg,
		srcCfg:   srcCfg,
		resolver: resolver,
		fetcher:  fetcher,
		store:    store,
		hub:      updateHub,
		cache:    NewCache(staleAfter, minFuture),
		pending:  make(map[string]*inflight),
	}

	if err := s.load(); err != nil {
		log.Printf("[guide] no persisted cache loaded: %v", err)
	} else if n := s.cache.Len(); n > 0 {
		log.Printf("[guide] loaded persisted cache: %d channels, %d programs",
			n, s.cache.CountPrograms())
	}

	return s
}

// SetOnProgress registers a batch-progress callback. Call before Start.
func (s *Service) SetOnProgress(fn func(processed, total int)) {
	s.onProgress = fn
}

// Subscribe registers a schedule-change callback and returns its token.
func (s *Service) Subscribe(cb hub.Callback) string {
	return s.hub.Subscribe(cb)
}

// Unsubscribe removes a subscriber by token.
func (s *Service) Unsubscribe(id string) {
	s.hub.Unsubscribe(id)
}

// GetSchedule returns the cached schedule for a channel immediately. A stale
// entry additionally triggers a background refresh; the caller never waits.
func (s *Service) GetSchedule(channelID string) models.ChannelSchedule {
	sched := s.cache.Get(channelID)
	if s.cache.IsStale(channelID, time.Now()) {
		s.refreshAsync(channelID)
	}
	return sched
}

// GetCurrentAndNext returns the program airing now and the one after it.
func (s *Service) GetCurrentAndNext(channelID string) models.NowNext {
	now := time.Now()
	sched := s.cache.Get(channelID)

	result := models.NowNext{ChannelID: channelID}
	for i := range sched.Programs {
		p := sched.Programs[i]
		if p.IsAiringAt(now) {
			result.Current = &sched.Programs[i]
			if i+1 < len(sched.Programs) {
				result.Next = &sched.Programs[i+1]
			}
			break
		}
		if p.Start.After(now) {
			result.Next = &sched.Programs[i]
			break
		}
	}
	return result
}

// ForceRefresh evicts a channel's cache entry and refreshes it in the
// background. Used for explicit user-triggered refreshes.
func (s *Service) ForceRefresh(channelID string) {
	s.cache.Evict(channelID)
	s.refreshAsync(channelID)
}

// Stats summarizes cache health.
func (s *Service) Stats() models.GuideStats {
	now := time.Now()

	stale := 0
	for _, id := range s.resolver.ChannelIDs() {
		if s.cache.IsStale(id, now) {
			stale++
		}
	}

	s.mu.Lock()
	lastRefresh := s.lastRefresh
	s.mu.Unlock()

	age := int64(-1)
	if !lastRefresh.IsZero() {
		age = now.Sub(lastRefresh).Milliseconds()
	}

	return models.GuideStats{
		ChannelsCached:     s.cache.Len(),
		TotalPrograms:      s.cache.CountPrograms(),
		ChannelsStale:      stale,
		LastBatchAgeMillis: age,
	}
}

// Status reports the service state for the status endpoint.
func (s *Service) Status() models.GuideStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.GuideStatus{
		Enabled:      s.cfg.Enabled,
		Refreshing:   s.refreshing,
		LastError:    s.lastError,
		ChannelCount: s.cache.Len(),
		ProgramCount: s.cache.CountPrograms(),
	}
	if !s.lastRefresh.IsZero() {
		t := s.lastRefresh
		status.LastRefresh = &t
	}
	return status
}

// targetURL builds the upstream page URL for a source selection.
func (s *Service) targetURL(sel sources.Selection) string {
	tmpl := s.srcCfg.PrimaryURLTemplate
	if sel.Upstream == sources.UpstreamSecondary {
		tmpl = s.srcCfg.SecondaryURLTemplate
	}
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, url.PathEscape(sel.Code))
	}
	return tmpl + url.PathEscape(sel.Code)
}

// load restores the persisted cache and refresh metadata from the store.
func (s *Service) load() error {
	raw, ok, err := s.store.Get(cacheKey)
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}
	if !ok {
		return fmt.Errorf("no cache entry")
	}

	var channels map[string]models.ChannelSchedule
	if err := json.Unmarshal([]byte(raw), &channels); err != nil {
		return fmt.Errorf("decode cache: %w", err)
	}
	s.cache.Restore(channels)

	if raw, ok, err := s.store.Get(lastRefreshKey); err == nil && ok {
		if millis, err := strconv.ParseInt(raw, 10, 64); err == nil && millis > 0 {
			s.mu.Lock()
			s.lastRefresh = time.UnixMilli(millis)
			s.mu.Unlock()
		}
	}
	return nil
}

// persist writes the full cache and refresh metadata to the store. Storage
// failures are logged; the in-memory cache stays authoritative.
func (s *Service) persist() {
	data, err := json.Marshal(s.cache.Snapshot())
	if err != nil {
		log.Printf("[guide] encode cache: %v", err)
		return
	}
	if err := s.store.Set(cacheKey, string(data)); err != nil {
		log.Printf("[guide] persist cache: %v", err)
		return
	}

	s.mu.Lock()
	lastRefresh := s.lastRefresh
	s.mu.Unlock()
	if !lastRefresh.IsZero() {
		if err := s.store.Set(lastRefreshKey, strconv.FormatInt(lastRefresh.UnixMilli(), 10)); err != nil {
			log.Printf("[guide] persist refresh metadata: %v", err)
		}
	}
}
