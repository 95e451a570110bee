// Package sources resolves which upstream guide provider serves a channel.
// The mapping table is externally maintained configuration data; this package
// never touches the network or the cache.
package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrNotFound indicates a channel has no mapping in either provider table.
var ErrNotFound = errors.New("channel has no source mapping")

// Upstream identifies one of the two guide providers.
type Upstream string

const (
	UpstreamPrimary   Upstream = "primary"
	UpstreamSecondary Upstream = "secondary"
)

// Mapping holds the provider-specific codes for one channel.
type Mapping struct {
	Primary   string `json:"primary,omitempty"`   // primary provider channel code
	Secondary string `json:"secondary,omitempty"` // secondary provider slug; presence forces the secondary pipeline
}

// Table maps channel identifiers to their provider codes.
type Table map[string]Mapping

// LoadTable reads the channel mapping table from a JSON file.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse mapping file: %w", err)
	}
	return t, nil
}

// Selection names the upstream to fetch from and the code to use with it.
type Selection struct {
	Upstream Upstream
	Code     string
}

// Resolver answers which upstream and code to use for a channel.
type Resolver struct {
	table Table
}

func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

// Resolve returns the source selection for a channel. Channels with a
// secondary slug always use the secondary pipeline, even when a primary code
// also exists; everything else falls back to the primary provider.
func (r *Resolver) Resolve(channelID string) (Selection, error) {
	m, ok := r.table[channelID]
	if !ok {
		return Selection{}, ErrNotFound
	}
	if m.Secondary != "" {
		return Selection{Upstream: UpstreamSecondary, Code: m.Secondary}, nil
	}
	if m.Primary != "" {
		return Selection{Upstream: UpstreamPrimary, Code: m.Primary}, nil
	}
	return Selection{}, ErrNotFound
}

// ChannelIDs returns every known channel identifier in stable order.
func (r *Resolver) ChannelIDs() []string {
	ids := make([]string, 0, len(r.table))
	for id := range r.table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
