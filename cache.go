package main

import (
	"sync"
	"time"
)

// CacheEntry is the latest known condition of one device, fed from refined
// pipeline output.
type CacheEntry struct {
	DeviceName string         `json:"device_name"`
	Protocol   Protocol       `json:"protocol"`
	Model      string         `json:"model"`
	Online     *bool          `json:"online,omitempty"`
	State      DeviceState    `json:"-"`
	Fields     map[string]any `json:"state,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// StateCache keeps the last refined availability and state per device. It is
// the data source for the HTTP API and the metrics collector.
type StateCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

func NewStateCache() *StateCache {
	return &StateCache{entries: make(map[string]*CacheEntry)}
}

func (c *StateCache) entryLocked(msg *Message) *CacheEntry {
	entry, ok := c.entries[msg.DeviceName]
	if !ok {
		entry = &CacheEntry{DeviceName: msg.DeviceName}
		c.entries[msg.DeviceName] = entry
	}
	entry.Protocol = msg.Protocol
	if msg.Model != nil {
		entry.Model = msg.Model.String()
	}
	entry.UpdatedAt = time.Now()
	return entry
}

// Update folds one refined message into the cache. Messages without a refined
// value are ignored.
func (c *StateCache) Update(msg *Message) {
	switch refined := msg.Refined.(type) {
	case *Availability:
		c.mu.Lock()
		entry := c.entryLocked(msg)
		online := refined.IsOnline
		entry.Online = &online
		c.mu.Unlock()
	case DeviceState:
		c.mu.Lock()
		entry := c.entryLocked(msg)
		entry.State = refined
		entry.Fields = refined.Fields()
		c.mu.Unlock()
	}
}

// Get returns a copy of the device's entry.
func (c *StateCache) Get(deviceName string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[deviceName]
	if !ok {
		return CacheEntry{}, false
	}
	return *entry, true
}

// Snapshot returns copies of all entries.
func (c *StateCache) Snapshot() []CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, *entry)
	}
	return out
}

// OnlineCount reports how many devices currently look online.
func (c *StateCache) OnlineCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, entry := range c.entries {
		if entry.Online != nil && *entry.Online {
			n++
		}
	}
	return n
}
