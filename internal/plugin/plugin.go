// Package plugin fans out game-session lifecycle events to registered
// observers with per-observer failure isolation.
package plugin

import (
	"log"
	"sync"
)

// EventKind classifies session lifecycle events.
type EventKind int

const (
	SessionStarted EventKind = iota
	PlayerAdded
	PlayerRemoved
	TeamsFormed
	SessionEnded
	PlayerRenamed
	ServerQueried
)

// String returns a human-readable name for the event kind.
func (k EventKind) String() string {
	switch k {
	case SessionStarted:
		return "session_started"
	case PlayerAdded:
		return "player_added"
	case PlayerRemoved:
		return "player_removed"
	case TeamsFormed:
		return "teams_formed"
	case SessionEnded:
		return "session_ended"
	case PlayerRenamed:
		return "player_renamed"
	case ServerQueried:
		return "server_queried"
	default:
		return "unknown"
	}
}

// Event is a structured session event delivered to every observer.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind    EventKind
	Nick    string   // PlayerAdded, PlayerRemoved, PlayerRenamed (new nick)
	OldNick string   // PlayerRenamed
	Map     string   // TeamsFormed
	TeamBlu []string // TeamsFormed
	TeamRed []string // TeamsFormed
}

// Observer receives session events. Implementations must tolerate
// event kinds they do not care about.
type Observer interface {
	HandleEvent(ev Event)
}

// Host dispatches events to observers in registration order. An
// observer that panics is logged and skipped; the remaining observers
// still receive the event.
type Host struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewHost creates an empty host.
func NewHost() *Host {
	return &Host{}
}

// Register appends an observer. There is no de-duplication and no
// removal; registration lasts for the process lifetime.
func (h *Host) Register(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, o)
}

// Dispatch delivers ev to every observer in order.
func (h *Host) Dispatch(ev Event) {
	h.mu.RLock()
	observers := h.observers
	h.mu.RUnlock()

	for _, o := range observers {
		deliver(o, ev)
	}
}

func deliver(o Observer, ev Event) {
	defer func() {
		if err := recover(); err != nil {
			log.Printf("plugin observer panicked on %s: %v", ev.Kind, err)
		}
	}()
	o.HandleEvent(ev)
}
