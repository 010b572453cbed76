package irc

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tfpug/pugd/internal/access"
	"github.com/tfpug/pugd/internal/command"
	"github.com/tfpug/pugd/internal/format"
	"github.com/tfpug/pugd/internal/plugin"
	"github.com/tfpug/pugd/internal/session"
	"github.com/tfpug/pugd/internal/steam"
	"github.com/tfpug/pugd/internal/store"
)

func (c *Client) registerCommands() {
	r := c.registry

	r.Register(access.Operator, c.cmdStartGame, "!startgame")
	r.Register(access.Guest, c.cmdAdd, "!add", "!a")
	r.Register(access.Guest, c.cmdRemove, "!remove", "!r")
	r.Register(access.Operator, c.cmdEndGame, "!endgame")
	r.Register(access.Operator, c.cmdMap, "!map")
	r.Register(access.Guest, c.cmdLink, "!link")
	r.Register(access.Guest, c.cmdVerify, "!verify")

	r.RegisterOpen(c.cmdJoin, "!join")
	r.RegisterOpen(c.cmdPlayers, "!players", "!p")
	r.RegisterOpen(c.cmdServer, "!server")
	r.RegisterOpen(c.cmdMumble, "!mumble")
	r.RegisterOpen(c.cmdVersion, "!version")
	r.RegisterOpen(c.cmdHelp, "!help")
}

func (c *Client) cmdStartGame(s command.Sender, target, line string) {
	c.session.Start()
	c.say(target, "Game started. Type !add to join the game.", format.Info)
}

func (c *Client) cmdAdd(s command.Sender, target, line string) {
	u, err := c.userFor(s.Nick)
	if err != nil {
		log.Printf("!add: %v", err)
		c.ErrorNotice(s.Nick, "Something went wrong, please try again.")
		return
	}

	switch err := c.session.Add(u); {
	case errors.Is(err, session.ErrNotOpen):
		c.notice(s.Nick, "There is no active game to sign up for!", format.Error)
	case errors.Is(err, session.ErrAlreadySignedUp):
		c.notice(s.Nick, "You have already signed up for the game!", format.Error)
	case err != nil:
		c.ErrorNotice(s.Nick, "Something went wrong, please try again.")
	default:
		c.notice(s.Nick, "You successfully added to the game.", format.Confirm)
		if len(c.session.Players()) >= c.cfg.IRC.GameSize {
			c.formTeams(target)
		} else {
			c.listPlayers(target)
		}
	}
}

func (c *Client) cmdJoin(s command.Sender, target, line string) {
	c.notice(s.Nick, "Please use !add instead.", format.Error)
}

func (c *Client) cmdRemove(s command.Sender, target, line string) {
	u, err := c.userFor(s.Nick)
	if err != nil {
		log.Printf("!remove: %v", err)
		c.ErrorNotice(s.Nick, "Something went wrong, please try again.")
		return
	}

	if err := c.session.Remove(u); err != nil {
		c.notice(s.Nick, "You are not in the game!", format.Error)
		return
	}
	c.notice(s.Nick, "You successfully removed from the game.", format.Confirm)
	c.listPlayers(target)
}

func (c *Client) cmdPlayers(s command.Sender, target, line string) {
	if !c.session.Active() {
		c.say(target, "There is no game running currently.", format.Info)
		return
	}
	c.listPlayers(target)
}

func (c *Client) cmdEndGame(s command.Sender, target, line string) {
	if err := c.session.End(); err != nil {
		c.notice(s.Nick, "There is no game to be ended!", format.Error)
		return
	}
	c.say(target, "Game ended.", format.Info)
}

func (c *Client) cmdMap(s command.Sender, target, line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.say(target, fmt.Sprintf("Current map: %s", c.session.Map()), format.Info)
		return
	}
	c.session.SetMap(fields[1])
	c.say(target, fmt.Sprintf("Next game will be played on %s.", fields[1]), format.Confirm)
}

func (c *Client) cmdServer(s command.Sender, target, line string) {
	info, err := c.control.Info()
	if err != nil {
		log.Printf("!server: %v", err)
		c.notice(s.Nick, "The game server is not responding.", format.Error)
		return
	}
	c.host.Dispatch(plugin.Event{Kind: plugin.ServerQueried})

	c.say(target, fmt.Sprintf("connect %s:%d;", c.cfg.Rcon.Server, info.Port), format.Info)
	c.say(target, fmt.Sprintf("%s | %d / %d | stv: %d",
		info.Map, info.Players, info.MaxPlayers, info.SpecPort), format.Info)
	if c.control.LiveGame() {
		last := c.control.LastInfo()
		c.say(target, fmt.Sprintf("A game is live on %s (%d / %d at round start).",
			last.Map, last.Players, last.MaxPlayers), format.Info)
	}
}

func (c *Client) cmdMumble(s command.Sender, target, line string) {
	c.say(target, fmt.Sprintf("Mumble is the voice server used by players to communicate. Mumble IP: %s  port: %d",
		c.cfg.Mumble.Server, c.cfg.Mumble.Port), format.Info)
}

func (c *Client) cmdVersion(s command.Sender, target, line string) {
	c.say(target, fmt.Sprintf("PugBot %s", Version), format.Info)
}

func (c *Client) cmdHelp(s command.Sender, target, line string) {
	c.notice(s.Nick, "Commands: !add (!a), !remove (!r), !players (!p), !server, !mumble, !link, !verify, !version", format.Info)
	c.notice(s.Nick, "Operator commands: !startgame, !endgame, !map <name>", format.Info)
}

func (c *Client) cmdLink(s command.Sender, target, line string) {
	u, err := c.userFor(s.Nick)
	if err != nil {
		log.Printf("!link: %v", err)
		c.ErrorNotice(s.Nick, "Something went wrong, please try again.")
		return
	}

	code, err := steam.GenVerifyCode()
	if err != nil {
		log.Printf("!link: %v", err)
		c.ErrorNotice(s.Nick, "Could not generate a verification code.")
		return
	}
	u.VerifyCode = code
	if err := c.store.SetVerifyCode(u.ID, code); err != nil {
		log.Printf("!link: %v", err)
		c.ErrorNotice(s.Nick, "Could not save your verification code.")
		return
	}

	c.notice(s.Nick, fmt.Sprintf("Your verification code is %s", code), format.Confirm)
	c.notice(s.Nick, "Place it in your public Steam profile (headline, location, real name or summary), then type !verify <profile>.", format.Info)
}

func (c *Client) cmdVerify(s command.Sender, target, line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.notice(s.Nick, "Usage: !verify <steam profile id or url name>", format.Error)
		return
	}

	u, err := c.userFor(s.Nick)
	if err != nil {
		log.Printf("!verify: %v", err)
		c.ErrorNotice(s.Nick, "Something went wrong, please try again.")
		return
	}

	steamID, err := c.verifier.Verify(fields[1], u.VerifyCode)
	if err != nil {
		log.Printf("!verify %s: %v", s.Nick, err)
		c.notice(s.Nick, verifyFailureText(err), format.Error)
		return
	}

	u.SteamID = steamID
	if err := c.store.SetSteamID(u.ID, steamID); err != nil {
		log.Printf("!verify: %v", err)
		c.ErrorNotice(s.Nick, "Could not save your Steam link.")
		return
	}
	c.notice(s.Nick, fmt.Sprintf("Your Steam profile (%d) has been linked.", steamID), format.Confirm)
}

// listPlayers announces the current roster.
func (c *Client) listPlayers(target string) {
	players := c.session.Players()
	if len(players) == 0 {
		c.say(target, "No players are currently signed up.", format.Info)
		return
	}

	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Nick
	}
	suffix := "s"
	if len(players) == 1 {
		suffix = ""
	}
	c.say(target, fmt.Sprintf("%d player%s: %s", len(players), suffix, strings.Join(names, ", ")), format.Info)
}

// formTeams closes signups, announces both teams and privately sends
// each player the connect address.
func (c *Client) formTeams(target string) {
	blu, red, err := c.session.FormTeams()
	if err != nil {
		log.Printf("form teams: %v", err)
		c.say(target, "Could not form teams, the game stays open.", format.Error)
		return
	}

	c.say(target, fmt.Sprintf("\x0310,01BLU Team: %s", joinNicks(blu)), format.Info)
	c.say(target, fmt.Sprintf("\x0305,01RED Team: %s", joinNicks(red)), format.Info)

	connect := fmt.Sprintf("Connect as soon as possible to %s:%d", c.cfg.Rcon.Server, c.cfg.Rcon.Port)
	for _, p := range blu {
		c.say(p.Nick, "You have been assigned to BLU team. "+connect, format.Info)
	}
	for _, p := range red {
		c.say(p.Nick, "You have been assigned to RED team. "+connect, format.Info)
	}
}

func joinNicks(players []*store.User) string {
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Nick
	}
	return strings.Join(names, ", ")
}

func verifyFailureText(err error) string {
	switch {
	case errors.Is(err, steam.ErrNoCode):
		return "You must first request a verification code with !link."
	case errors.Is(err, steam.ErrProfileFetch):
		return "Could not connect to the Steam Community site."
	case errors.Is(err, steam.ErrPrivate):
		return "You must set your Steam profile as public."
	case errors.Is(err, steam.ErrCodeNotFound):
		return "The verification code was not found in your profile."
	default:
		return "Steam verification failed."
	}
}
