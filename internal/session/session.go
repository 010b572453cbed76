// Package session holds the pickup-game state machine: the roster of
// signed-up players, the lifecycle, and team formation.
package session

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"

	"github.com/tfpug/pugd/internal/plugin"
	"github.com/tfpug/pugd/internal/store"
)

// Precondition failures reported to the invoking user.
var (
	ErrNotOpen         = errors.New("no active game to sign up for")
	ErrAlreadySignedUp = errors.New("already signed up for the game")
	ErrNotSignedUp     = errors.New("not signed up for the game")
	ErrNoActiveGame    = errors.New("no game to be ended")
	ErrEmptyRoster     = errors.New("no players signed up")
)

// State is the session lifecycle state. Closed is equivalent to Idle
// for subsequent starts; the session object is reused across games.
type State int

const (
	Idle State = iota
	Open
	Closed
)

// Repository persists formed games. Implemented by *store.Store.
type Repository interface {
	SaveGame(g *store.Game, blu, red []*store.User) error
}

// Controller triggers server-side actions on session transitions.
// Implemented by *server.Facade.
type Controller interface {
	ChangeMap(m string) error
}

// Session is the process-wide game session.
type Session struct {
	mu      sync.Mutex
	state   State
	roster  []*store.User
	gameMap string

	server string
	port   int

	repo    Repository
	control Controller
	host    *plugin.Host
	rng     *rand.Rand

	// shuffle permutes the roster before the team split; replaced in
	// tests to pin the permutation
	shuffle func(n int, swap func(i, j int))
}

// New creates an idle session targeting the given game server.
// defaultMap is the map played until an operator selects another.
func New(repo Repository, control Controller, host *plugin.Host, rng *rand.Rand, server string, port int, defaultMap string) *Session {
	s := &Session{
		gameMap: defaultMap,
		server:  server,
		port:    port,
		repo:    repo,
		control: control,
		host:    host,
		rng:     rng,
	}
	s.shuffle = s.rng.Shuffle
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether a game is open for signups.
func (s *Session) Active() bool {
	return s.State() == Open
}

// Map returns the current map selection.
func (s *Session) Map() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameMap
}

// SetMap changes the map for the next formed game.
func (s *Session) SetMap(m string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameMap = m
}

// Players returns a snapshot of the roster in signup order.
func (s *Session) Players() []*store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.User, len(s.roster))
	copy(out, s.roster)
	return out
}

// Start opens a new game from any state, clearing the roster.
func (s *Session) Start() {
	s.mu.Lock()
	s.state = Open
	s.roster = nil
	s.mu.Unlock()

	log.Println("game STARTED")
	s.host.Dispatch(plugin.Event{Kind: plugin.SessionStarted})
}

// Add signs a player up for the open game.
func (s *Session) Add(u *store.User) error {
	s.mu.Lock()
	if s.state != Open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	if s.indexOf(u.Key()) >= 0 {
		s.mu.Unlock()
		return ErrAlreadySignedUp
	}
	s.roster = append(s.roster, u)
	s.mu.Unlock()

	log.Printf("player %q ADDED to the game", u.Nick)
	s.host.Dispatch(plugin.Event{Kind: plugin.PlayerAdded, Nick: u.Nick})
	return nil
}

// Remove takes a player off the roster. Allowed in any state so that
// departures can always be cleaned up.
func (s *Session) Remove(u *store.User) error {
	s.mu.Lock()
	i := s.indexOf(u.Key())
	if i < 0 {
		s.mu.Unlock()
		return ErrNotSignedUp
	}
	s.roster = append(s.roster[:i], s.roster[i+1:]...)
	s.mu.Unlock()

	log.Printf("player %q REMOVED from the game", u.Nick)
	s.host.Dispatch(plugin.Event{Kind: plugin.PlayerRemoved, Nick: u.Nick})
	return nil
}

// Rename updates the roster entry for a player who changed nicks.
// A no-op error when the old nick is not signed up.
func (s *Session) Rename(old, new string) error {
	s.mu.Lock()
	var found *store.User
	for _, u := range s.roster {
		if u.Nick == old {
			u.Nick = new
			found = u
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return ErrNotSignedUp
	}
	s.host.Dispatch(plugin.Event{Kind: plugin.PlayerRenamed, Nick: new, OldNick: old})
	return nil
}

// FormTeams shuffles the roster and splits it into BLU (first half,
// floor(n/2)) and RED (the remainder, so RED is larger on odd
// counts). The game and all participations are persisted as one unit
// before the in-memory state is cleared; a persistence failure leaves
// the session untouched. On success the session closes, the roster is
// cleared and the map change is issued.
func (s *Session) FormTeams() (blu, red []*store.User, err error) {
	s.mu.Lock()
	if len(s.roster) == 0 {
		s.mu.Unlock()
		return nil, nil, ErrEmptyRoster
	}

	players := make([]*store.User, len(s.roster))
	copy(players, s.roster)
	s.shuffle(len(players), func(i, j int) {
		players[i], players[j] = players[j], players[i]
	})

	half := len(players) / 2
	blu = players[:half]
	red = players[half:]
	gameMap := s.gameMap
	s.mu.Unlock()

	game := &store.Game{Server: s.server, Port: s.port, Map: gameMap}
	if err := s.repo.SaveGame(game, blu, red); err != nil {
		return nil, nil, fmt.Errorf("persist game: %w", err)
	}

	s.mu.Lock()
	s.state = Closed
	s.roster = nil
	s.mu.Unlock()

	log.Printf("teams formed for %s: %d BLU, %d RED", gameMap, len(blu), len(red))
	s.host.Dispatch(plugin.Event{
		Kind:    plugin.TeamsFormed,
		Map:     gameMap,
		TeamBlu: nicks(blu),
		TeamRed: nicks(red),
	})

	if err := s.control.ChangeMap(gameMap); err != nil {
		log.Printf("map change to %q failed: %v", gameMap, err)
	}
	return blu, red, nil
}

// End closes an open game and clears the roster.
func (s *Session) End() error {
	s.mu.Lock()
	if s.state != Open {
		s.mu.Unlock()
		return ErrNoActiveGame
	}
	s.state = Closed
	s.roster = nil
	s.mu.Unlock()

	log.Println("game ENDED")
	s.host.Dispatch(plugin.Event{Kind: plugin.SessionEnded})
	return nil
}

// indexOf returns the roster position for an identity key, -1 when
// absent. Caller holds s.mu.
func (s *Session) indexOf(key string) int {
	for i, u := range s.roster {
		if u.Key() == key {
			return i
		}
	}
	return -1
}

func nicks(players []*store.User) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.Nick
	}
	return out
}
