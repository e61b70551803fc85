package moderation

import (
	"sort"
	"sync"
)

// BanSet tracks banned stream names. The ban is an overlay: it does not
// delete session state, it just makes the name unusable until unban.
type BanSet struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewBanSet creates an empty ban set.
func NewBanSet() *BanSet {
	return &BanSet{
		names: make(map[string]struct{}),
	}
}

// Ban adds a name and reports whether it was newly banned.
func (b *BanSet) Ban(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.names[name]; exists {
		return false
	}
	b.names[name] = struct{}{}
	return true
}

// Unban removes a name and reports whether it was banned before.
func (b *BanSet) Unban(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.names[name]; !exists {
		return false
	}
	delete(b.names, name)
	return true
}

// Banned reports whether a name is currently banned.
func (b *BanSet) Banned(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.names[name]
	return exists
}

// List returns all banned names, sorted for stable output.
func (b *BanSet) List() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.names))
	for name := range b.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
