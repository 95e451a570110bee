package guide

import (
	"sync"
	"time"

	"guiatv/models"
)

// Cache holds per-channel schedules in memory. Writes replace a channel's
// list wholesale, so readers always see either the previous complete
// schedule or the new one.
type Cache struct {
	mu         sync.RWMutex
	channels   map[string]models.ChannelSchedule
	staleAfter time.Duration
	minFuture  int
}

func NewCache(staleAfter time.Duration, minFuturePrograms int) *Cache {
	return &Cache{
		channels:   make(map[string]models.ChannelSchedule),
		staleAfter: staleAfter,
		minFuture:  minFuturePrograms,
	}
}

// Get returns the cached schedule for a channel. It never blocks on network
// activity; unknown channels yield an empty schedule.
func (c *Cache) Get(channelID string) models.ChannelSchedule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.channels[channelID]
	if !ok {
		return models.ChannelSchedule{ChannelID: channelID}
	}
	out := st
	out.Programs = append([]models.Program(nil), st.Programs...)
	return out
}

// Put replaces a channel's schedule wholesale and stamps the fetch time.
func (c *Cache) Put(channelID string, programs []models.Program, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channelID] = models.ChannelSchedule{
		ChannelID: channelID,
		Programs:  append([]models.Program(nil), programs...),
		LastFetch: now.UnixMilli(),
	}
}

// Evict drops a channel's cached schedule.
func (c *Cache) Evict(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channelID)
}

// IsStale reports whether a channel needs a background refresh: no entry,
// an empty list, an entry older than the staleness window, or a schedule
// that is running out of future programs.
func (c *Cache) IsStale(channelID string, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.channels[channelID]
	if !ok || len(st.Programs) == 0 {
		return true
	}
	if now.UnixMilli()-st.LastFetch > c.staleAfter.Milliseconds() {
		return true
	}

	future := 0
	for _, p := range st.Programs {
		if p.End.After(now) {
			future++
		}
	}
	return future < c.minFuture
}

// Snapshot returns a deep copy of all cached schedules for persistence.
func (c *Cache) Snapshot() map[string]models.ChannelSchedule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.ChannelSchedule, len(c.channels))
	for id, st := range c.channels {
		cp := st
		cp.Programs = append([]models.Program(nil), st.Programs...)
		out[id] = cp
	}
	return out
}

// Restore replaces the cache contents, used when loading persisted state at
// startup before any network activity.
func (c *Cache) Restore(channels map[string]models.ChannelSchedule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = make(map[string]models.ChannelSchedule, len(channels))
	for id, st := range channels {
		c.channels[id] = st
	}
}

// CountPrograms returns the total number of cached programs.
func (c *Cache) CountPrograms() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := 0
	for _, st := range c.channels {
		count += len(st.Programs)
	}
	return count
}

// Len returns the number of channels with a cache entry.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.channels)
}
