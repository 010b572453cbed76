package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClient struct {
	info     Info
	infoErr  error
	replies  map[string]string
	rconErr  error
	commands []string
}

func (c *fakeClient) Info() (Info, error) {
	return c.info, c.infoErr
}

func (c *fakeClient) Rcon(command string) (string, error) {
	c.commands = append(c.commands, command)
	if c.rconErr != nil {
		return "", c.rconErr
	}
	return c.replies[command], nil
}

func TestMatchConfig(t *testing.T) {
	cases := []struct {
		mapName string
		want    string
	}{
		{"ctf_2fort", "cevo_ctf.cfg"},
		{"ctf_doublecross", "cevo_ctf.cfg"},
		{"koth_viaduct", "cevo_koth.cfg"},
		{"cp_gravelpit", "cevo_stopwatch.cfg"},
		{"cp_dustbowl", "cevo_stopwatch.cfg"},
		{"cp_badlands", "cevo_push.cfg"},
		{"pl_badwater", "cevo_push.cfg"},
		{"", "cevo_push.cfg"},
	}
	for _, c := range cases {
		if got := MatchConfig(c.mapName); got != c.want {
			t.Errorf("MatchConfig(%q) = %q, want %q", c.mapName, got, c.want)
		}
	}
}

func TestChangeMap(t *testing.T) {
	client := &fakeClient{replies: map[string]string{
		`changelevel "cp_badlands"`: `---- Host_Changelevel ----`,
		`changelevel "bad_map"`:     `changelevel failed: No such map 'bad_map'`,
	}}
	f := New(client, "203.0.113.9")

	if err := f.ChangeMap("cp_badlands"); err != nil {
		t.Errorf("ChangeMap(cp_badlands) = %v", err)
	}
	err := f.ChangeMap("bad_map")
	if !errors.Is(err, ErrMapChangeFailed) {
		t.Errorf("ChangeMap(bad_map) = %v, want ErrMapChangeFailed", err)
	}
}

func TestChangeMapRconError(t *testing.T) {
	client := &fakeClient{rconErr: errors.New("connection reset")}
	f := New(client, "")
	if err := f.ChangeMap("cp_badlands"); err == nil {
		t.Error("expected transport error to propagate")
	}
}

func TestExecMatchConfig(t *testing.T) {
	client := &fakeClient{
		info:    Info{Map: "cp_gravelpit"},
		replies: map[string]string{`exec "cevo_stopwatch.cfg"`: "execing cevo_stopwatch.cfg"},
	}
	f := New(client, "")

	file, err := f.ExecMatchConfig()
	if err != nil {
		t.Fatal(err)
	}
	if file != "cevo_stopwatch.cfg" {
		t.Errorf("selected %q, want cevo_stopwatch.cfg", file)
	}
	if len(client.commands) != 1 || client.commands[0] != `exec "cevo_stopwatch.cfg"` {
		t.Errorf("rcon commands = %v", client.commands)
	}
}

func TestHandleLogEventRoundStart(t *testing.T) {
	client := &fakeClient{
		info:    Info{Map: "cp_badlands", Players: 12, MaxPlayers: 24},
		replies: map[string]string{"status": "hostname: pug"},
	}
	f := New(client, "")

	if f.LiveGame() {
		t.Fatal("live before any event")
	}

	f.HandleLogEvent(LogEvent{Key: "say", Values: map[string]string{"text": "hi"}})
	if f.LiveGame() {
		t.Error("non-trigger event marked the game live")
	}

	f.HandleLogEvent(LogEvent{
		Key:    "trigger_world",
		Values: map[string]string{"trigger": "Round_Start"},
	})
	if !f.LiveGame() {
		t.Error("round start did not mark the game live")
	}
	if f.LastInfo().Map != "cp_badlands" {
		t.Errorf("snapshot not captured: %+v", f.LastInfo())
	}
	if len(client.commands) != 1 || client.commands[0] != "status" {
		t.Errorf("expected one status query, got %v", client.commands)
	}
}

func TestHandleLogEventOtherTrigger(t *testing.T) {
	f := New(&fakeClient{}, "")
	f.HandleLogEvent(LogEvent{
		Key:    "trigger_world",
		Values: map[string]string{"trigger": "Round_Win"},
	})
	if f.LiveGame() {
		t.Error("Round_Win marked the game live")
	}
}

func TestAddLogAddress(t *testing.T) {
	client := &fakeClient{replies: map[string]string{}}
	f := New(client, "")
	if err := f.AddLogAddress("203.0.113.9:17105"); err != nil {
		t.Fatal(err)
	}
	if client.commands[0] != `logaddress_add "203.0.113.9:17105"` {
		t.Errorf("rcon command = %q", client.commands[0])
	}
}

func TestResolvePublicIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "203.0.113.9\n")
	}))
	defer srv.Close()

	ip, err := ResolvePublicIP(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if ip != "203.0.113.9" {
		t.Errorf("ip = %q", ip)
	}
}

func TestResolvePublicIPRetriesUntilSuccess(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "198.51.100.4")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ip, err := ResolvePublicIP(ctx, srv.Client(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if ip != "198.51.100.4" || calls != 2 {
		t.Errorf("ip = %q after %d calls", ip, calls)
	}
}

func TestResolvePublicIPHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ResolvePublicIP(ctx, srv.Client(), srv.URL); err == nil {
		t.Error("expected context error")
	}
}
