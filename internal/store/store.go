// Package store persists users, games and participations in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// User is a channel member known to the bot. Users are created on
// first sighting (WHO reply) and enriched as WHOIS/account data and
// Steam links arrive.
type User struct {
	ID            int64
	Nick          string
	Account       string
	Access        int
	SteamID       int64
	VerifyCode    string
	Email         string
	EmailVerified bool
	Created       time.Time
}

// Key returns the stable identity key for the user: the services
// account when known, the lower-cased nick otherwise.
func (u *User) Key() string {
	if u.Account != "" {
		return "account:" + strings.ToLower(u.Account)
	}
	return "nick:" + strings.ToLower(u.Nick)
}

// Game is one formed match.
type Game struct {
	ID      int64
	Server  string
	Port    int
	Map     string
	Created time.Time
}

// Participation links a user to a game with their assigned side.
type Participation struct {
	ID        int64
	UserID    int64
	GameID    int64
	Team      string
	TeamClass string
	Captain   bool
	Created   time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS pug_user (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	irc_nick       TEXT NOT NULL,
	irc_account    TEXT NOT NULL DEFAULT '',
	irc_access     INTEGER NOT NULL DEFAULT 0,
	steam_id       INTEGER NOT NULL DEFAULT 0,
	steam_vcode    TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	email_verified INTEGER NOT NULL DEFAULT 0,
	created_ms     INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_pug_user_nick ON pug_user (irc_nick);

CREATE TABLE IF NOT EXISTS pug_game (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	server     TEXT NOT NULL,
	port       INTEGER NOT NULL,
	map        TEXT NOT NULL,
	created_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pug_participation (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL REFERENCES pug_user (id),
	game_id    INTEGER NOT NULL REFERENCES pug_game (id),
	team       TEXT NOT NULL,
	team_class TEXT NOT NULL DEFAULT '',
	captain    INTEGER NOT NULL DEFAULT 0,
	created_ms INTEGER NOT NULL
);
`

// Store is a SQLite-backed repository.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store: database path is required")
	}
	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// EnsureUser returns the user for nick, creating a fresh record when
// none exists yet.
func (s *Store) EnsureUser(nick string) (*User, error) {
	u, err := s.GetUserByNick(nick)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO pug_user (irc_nick, created_ms) VALUES (?, ?)`,
		nick, toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user %q: %w", nick, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &User{ID: id, Nick: nick, Created: now.UTC()}, nil
}

// GetUserByNick loads a user by current nick.
func (s *Store) GetUserByNick(nick string) (*User, error) {
	row := s.db.QueryRow(
		`SELECT id, irc_nick, irc_account, irc_access, steam_id, steam_vcode,
		        email, email_verified, created_ms
		 FROM pug_user WHERE irc_nick = ?`, nick)

	var u User
	var createdMS int64
	err := row.Scan(&u.ID, &u.Nick, &u.Account, &u.Access, &u.SteamID,
		&u.VerifyCode, &u.Email, &u.EmailVerified, &createdMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %q: %w", nick, err)
	}
	u.Created = fromMillis(createdMS)
	return &u, nil
}

// UpdateNick records a nick change.
func (s *Store) UpdateNick(id int64, nick string) error {
	_, err := s.db.Exec(`UPDATE pug_user SET irc_nick = ? WHERE id = ?`, nick, id)
	if err != nil {
		return fmt.Errorf("update nick for user %d: %w", id, err)
	}
	return nil
}

// SetAccount binds a services account to the user.
func (s *Store) SetAccount(id int64, account string) error {
	_, err := s.db.Exec(`UPDATE pug_user SET irc_account = ? WHERE id = ?`, account, id)
	if err != nil {
		return fmt.Errorf("set account for user %d: %w", id, err)
	}
	return nil
}

// SetVerifyCode stores the pending Steam verification code.
func (s *Store) SetVerifyCode(id int64, code string) error {
	_, err := s.db.Exec(`UPDATE pug_user SET steam_vcode = ? WHERE id = ?`, code, id)
	if err != nil {
		return fmt.Errorf("set verify code for user %d: %w", id, err)
	}
	return nil
}

// SetSteamID records a verified Steam link.
func (s *Store) SetSteamID(id, steamID int64) error {
	_, err := s.db.Exec(`UPDATE pug_user SET steam_id = ? WHERE id = ?`, steamID, id)
	if err != nil {
		return fmt.Errorf("set steam id for user %d: %w", id, err)
	}
	return nil
}

// SaveGame writes the game row and one participation row per player
// as a single transaction. Team sides are recorded as "Blu"/"Red".
func (s *Store) SaveGame(g *Game, blu, red []*User) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save game: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.Exec(
		`INSERT INTO pug_game (server, port, map, created_ms) VALUES (?, ?, ?, ?)`,
		g.Server, g.Port, g.Map, toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	gameID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	insert := func(players []*User, team string) error {
		for _, p := range players {
			_, err := tx.Exec(
				`INSERT INTO pug_participation (user_id, game_id, team, created_ms)
				 VALUES (?, ?, ?, ?)`,
				p.ID, gameID, team, toMillis(now),
			)
			if err != nil {
				return fmt.Errorf("insert participation for %q: %w", p.Nick, err)
			}
		}
		return nil
	}
	if err := insert(blu, "Blu"); err != nil {
		return err
	}
	if err := insert(red, "Red"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save game: %w", err)
	}
	g.ID = gameID
	g.Created = now.UTC()
	return nil
}

// Participations returns all participation rows for a game.
func (s *Store) Participations(gameID int64) ([]Participation, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, game_id, team, team_class, captain, created_ms
		 FROM pug_participation WHERE game_id = ? ORDER BY id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("load participations for game %d: %w", gameID, err)
	}
	defer rows.Close()

	var out []Participation
	for rows.Next() {
		var p Participation
		var createdMS int64
		if err := rows.Scan(&p.ID, &p.UserID, &p.GameID, &p.Team,
			&p.TeamClass, &p.Captain, &createdMS); err != nil {
			return nil, err
		}
		p.Created = fromMillis(createdMS)
		out = append(out, p)
	}
	return out, rows.Err()
}
