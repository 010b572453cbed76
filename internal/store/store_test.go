package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pug.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("expected an error for empty path")
	}
}

func TestEnsureUserCreatesOnce(t *testing.T) {
	s := openTestStore(t)

	u1, err := s.EnsureUser("alice")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u1.ID == 0 || u1.Nick != "alice" {
		t.Errorf("unexpected user %+v", u1)
	}

	u2, err := s.EnsureUser("alice")
	if err != nil {
		t.Fatalf("EnsureUser second call: %v", err)
	}
	if u2.ID != u1.ID {
		t.Errorf("EnsureUser created a duplicate: %d vs %d", u2.ID, u1.ID)
	}
}

func TestGetUserByNickNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetUserByNick("ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateNick(t *testing.T) {
	s := openTestStore(t)
	u, _ := s.EnsureUser("alice")

	if err := s.UpdateNick(u.ID, "alice2"); err != nil {
		t.Fatalf("UpdateNick: %v", err)
	}

	if _, err := s.GetUserByNick("alice"); !errors.Is(err, ErrNotFound) {
		t.Error("old nick still resolves")
	}
	got, err := s.GetUserByNick("alice2")
	if err != nil || got.ID != u.ID {
		t.Errorf("new nick lookup = %+v, %v", got, err)
	}
}

func TestSetAccountAndSteam(t *testing.T) {
	s := openTestStore(t)
	u, _ := s.EnsureUser("alice")

	if err := s.SetAccount(u.ID, "alice_acct"); err != nil {
		t.Fatalf("SetAccount: %v", err)
	}
	if err := s.SetVerifyCode(u.ID, "[pugbot:abc123]"); err != nil {
		t.Fatalf("SetVerifyCode: %v", err)
	}
	if err := s.SetSteamID(u.ID, 76561197960265731); err != nil {
		t.Fatalf("SetSteamID: %v", err)
	}

	got, err := s.GetUserByNick("alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Account != "alice_acct" || got.VerifyCode != "[pugbot:abc123]" ||
		got.SteamID != 76561197960265731 {
		t.Errorf("user not updated: %+v", got)
	}
}

func TestUserKey(t *testing.T) {
	withAccount := &User{Nick: "Alice", Account: "AliceAcct"}
	if withAccount.Key() != "account:aliceacct" {
		t.Errorf("Key() = %q", withAccount.Key())
	}
	nickOnly := &User{Nick: "Alice"}
	if nickOnly.Key() != "nick:alice" {
		t.Errorf("Key() = %q", nickOnly.Key())
	}
}

func TestSaveGame(t *testing.T) {
	s := openTestStore(t)
	a, _ := s.EnsureUser("a")
	b, _ := s.EnsureUser("b")
	c, _ := s.EnsureUser("c")

	g := &Game{Server: "192.0.2.1", Port: 27015, Map: "cp_badlands"}
	if err := s.SaveGame(g, []*User{a}, []*User{b, c}); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}
	if g.ID == 0 {
		t.Error("game id not set after save")
	}

	parts, err := s.Participations(g.ID)
	if err != nil {
		t.Fatalf("Participations: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("got %d participations, want 3", len(parts))
	}

	teams := map[int64]string{a.ID: "Blu", b.ID: "Red", c.ID: "Red"}
	for _, p := range parts {
		if teams[p.UserID] != p.Team {
			t.Errorf("user %d on team %q, want %q", p.UserID, p.Team, teams[p.UserID])
		}
		if p.Captain || p.TeamClass != "" {
			t.Errorf("captain/class should be unset: %+v", p)
		}
		if p.GameID != g.ID {
			t.Errorf("participation references game %d, want %d", p.GameID, g.ID)
		}
	}
}
