// Package server exposes session-relevant operations over the game
// server's query/RCON/log client.
package server

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// ErrMapChangeFailed is returned when the server rejects a map.
var ErrMapChangeFailed = errors.New("server: map change failed")

// Info is a snapshot of the public query state.
type Info struct {
	Map        string
	Players    int
	MaxPlayers int
	Port       int
	SpecPort   int
}

// Client is the opaque query/RCON client. The wire framing lives
// outside this package.
type Client interface {
	Info() (Info, error)
	Rcon(command string) (string, error)
}

// LogEvent is one structured remote log event.
type LogEvent struct {
	Remote string
	Time   time.Time
	Key    string
	Values map[string]string
	Props  []string
}

// stopwatchMaps are attack/defend maps played in stopwatch mode.
var stopwatchMaps = map[string]bool{
	"cp_dustbowl":  true,
	"cp_egypt":     true,
	"cp_gorge":     true,
	"cp_gravelpit": true,
	"cp_junction":  true,
	"cp_steel":     true,
}

// MatchConfig picks the competitive config file for a map. Game-mode
// prefixes are checked before the stopwatch list, so a ctf_ or koth_
// map never falls through to stopwatch.
func MatchConfig(mapName string) string {
	switch {
	case strings.HasPrefix(mapName, "ctf_"):
		return "cevo_ctf.cfg"
	case strings.HasPrefix(mapName, "koth_"):
		return "cevo_koth.cfg"
	case stopwatchMaps[mapName]:
		return "cevo_stopwatch.cfg"
	default:
		return "cevo_push.cfg"
	}
}

// Facade turns the low-level client into session-level decisions.
type Facade struct {
	client   Client
	publicIP string

	mu       sync.Mutex
	live     bool
	lastInfo Info
}

// New wraps a query/RCON client. publicIP is the bot host's address
// as seen by the game server, resolved once at startup.
func New(client Client, publicIP string) *Facade {
	return &Facade{client: client, publicIP: publicIP}
}

// Info fetches a fresh query snapshot. Never cached.
func (f *Facade) Info() (Info, error) {
	return f.client.Info()
}

// Status fetches the server's status text.
func (f *Facade) Status() (string, error) {
	return f.client.Rcon("status")
}

// Rcon passes a raw console command through.
func (f *Facade) Rcon(command string) (string, error) {
	return f.client.Rcon(command)
}

// ChangeMap switches the server to m. The protocol has no structured
// result; failure is detected by the known rejection text.
func (f *Facade) ChangeMap(m string) error {
	reply, err := f.client.Rcon(fmt.Sprintf("changelevel %q", m))
	if err != nil {
		return fmt.Errorf("changelevel: %w", err)
	}
	if strings.Contains(reply, "No such map") {
		return fmt.Errorf("%w: %s", ErrMapChangeFailed, m)
	}
	return nil
}

// ExecMatchConfig selects the competitive config for the current map
// and executes it remotely. Returns the chosen file name.
func (f *Facade) ExecMatchConfig() (string, error) {
	info, err := f.client.Info()
	if err != nil {
		return "", fmt.Errorf("query map: %w", err)
	}
	file := MatchConfig(info.Map)
	if _, err := f.client.Rcon(fmt.Sprintf("exec %q", file)); err != nil {
		return "", fmt.Errorf("exec %s: %w", file, err)
	}
	return file, nil
}

// AddLogAddress asks the server to stream its log to hostport.
func (f *Facade) AddLogAddress(hostport string) error {
	_, err := f.client.Rcon(fmt.Sprintf("logaddress_add %q", hostport))
	if err != nil {
		return fmt.Errorf("logaddress_add: %w", err)
	}
	return nil
}

// PublicIP returns the address resolved at startup.
func (f *Facade) PublicIP() string {
	return f.publicIP
}

// HandleLogEvent consumes one remote log event. A round-start trigger
// captures a fresh snapshot and marks a live game; everything else is
// only logged.
func (f *Facade) HandleLogEvent(ev LogEvent) {
	log.Printf("server log [%s] %s %v %v", ev.Remote, ev.Key, ev.Values, ev.Props)

	if ev.Key != "trigger_world" || ev.Values["trigger"] != "Round_Start" {
		return
	}

	info, err := f.client.Info()
	if err != nil {
		log.Printf("round start: info query failed: %v", err)
	}
	if _, err := f.client.Rcon("status"); err != nil {
		log.Printf("round start: status query failed: %v", err)
	}

	f.mu.Lock()
	f.live = true
	f.lastInfo = info
	f.mu.Unlock()
	log.Printf("round started on %s (%d/%d players)", info.Map, info.Players, info.MaxPlayers)
}

// LiveGame reports whether a round start has been observed.
func (f *Facade) LiveGame() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

// LastInfo returns the snapshot captured at the last round start.
func (f *Facade) LastInfo() Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastInfo
}
