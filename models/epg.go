package models

import (
	"fmt"
	"time"
)

// Program represents a single scheduled broadcast slot on a channel.
type Program struct {
	ID           string    `json:"id"` // channelId + start timestamp, stable across refreshes
	ChannelID    string    `json:"channelId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Category     string    `json:"category,omitempty"`
	Rating       string    `json:"rating,omitempty"`
	Episode      string    `json:"episode,omitempty"` // Episode number in standard format (e.g., "S01E05")
	EpisodeTitle string    `json:"episodeTitle,omitempty"`
}

// ProgramID builds the stable identifier for a program from its channel and start time.
func ProgramID(channelID string, start time.Time) string {
	return fmt.Sprintf("%s-%d", channelID, start.Unix())
}

// IsAiringAt reports whether the program's [start, end) window contains t.
func (p Program) IsAiringAt(t time.Time) bool {
	return !p.Start.After(t) && p.End.After(t)
}

// ChannelSchedule holds the cached program list for one channel.
type ChannelSchedule struct {
	ChannelID string    `json:"channelId"`
	Programs  []Program `json:"programs"`  // sorted by start, non-overlapping
	LastFetch int64     `json:"lastFetch"` // epoch millis of last successful fetch, 0 = never
}

// NowNext represents the current and next program for a channel.
type NowNext struct {
	ChannelID string   `json:"channelId"`
	Current   *Program `json:"current,omitempty"`
	Next      *Program `json:"next,omitempty"`
}

// GuideStatus represents the status of the guide service.
type GuideStatus struct {
	Enabled      bool       `json:"enabled"`
	LastRefresh  *time.Time `json:"lastRefresh,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	ChannelCount int        `json:"channelCount"`
	ProgramCount int        `json:"programCount"`
	Refreshing   bool       `json:"refreshing"`
}

// GuideStats summarizes cache health for monitoring.
type GuideStats struct {
	ChannelsCached     int   `json:"channelsCached"`
	TotalPrograms      int   `json:"totalPrograms"`
	ChannelsStale      int   `json:"channelsStale"`
	LastBatchAgeMillis int64 `json:"lastBatchAgeMillis"` // -1 when no batch has completed yet
}
