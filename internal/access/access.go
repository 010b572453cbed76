// Package access tracks the privilege level of channel members.
package access

import (
	"strings"
	"sync"
)

// Level is an ordered privilege rank. Higher values outrank lower ones.
type Level int

const (
	Guest    Level = 0
	Voiced   Level = 100
	Operator Level = 200
	Master   Level = 300
	CoOwner  Level = 400
	Owner    Level = 500
)

// String returns a human-readable name for the level.
func (l Level) String() string {
	switch l {
	case Guest:
		return "guest"
	case Voiced:
		return "voiced"
	case Operator:
		return "operator"
	case Master:
		return "master"
	case CoOwner:
		return "co-owner"
	case Owner:
		return "owner"
	default:
		return "unknown"
	}
}

// LevelFromModes derives a level from WHO reply mode flags.
// The operator flag outranks voice; anything else is a plain guest.
func LevelFromModes(flags string) Level {
	if strings.ContainsRune(flags, '@') {
		return Operator
	}
	if strings.ContainsRune(flags, '+') {
		return Voiced
	}
	return Guest
}

// Resolver maps channel members to privilege levels. It is refreshed
// out of band by WHO queries; a nick missing from the map is Unknown,
// which callers must treat as "retry after refresh", never as Guest.
type Resolver struct {
	mu     sync.RWMutex
	levels map[string]Level
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{levels: make(map[string]Level)}
}

// Resolve returns the level for nick. ok is false when the nick has
// not been observed by a membership query yet.
func (r *Resolver) Resolve(nick string) (Level, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.levels[key(nick)]
	return l, ok
}

// Update records the level observed for nick.
func (r *Resolver) Update(nick string, l Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[key(nick)] = l
}

// Remove forgets a nick that left the channel.
func (r *Resolver) Remove(nick string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.levels, key(nick))
}

// Rename carries a nick's level over to its new name.
func (r *Resolver) Rename(old, new string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.levels[key(old)]; ok {
		delete(r.levels, key(old))
		r.levels[key(new)] = l
	}
}

// Clear drops all cached levels, forcing a refresh.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = make(map[string]Level)
}

func key(nick string) string {
	return strings.ToLower(nick)
}
