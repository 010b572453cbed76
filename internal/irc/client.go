// Package irc runs the bot's IRC session: connection lifecycle,
// channel membership tracking and the chat command surface.
package irc

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/tfpug/pugd/internal/access"
	"github.com/tfpug/pugd/internal/command"
	"github.com/tfpug/pugd/internal/config"
	"github.com/tfpug/pugd/internal/format"
	"github.com/tfpug/pugd/internal/plugin"
	"github.com/tfpug/pugd/internal/server"
	"github.com/tfpug/pugd/internal/session"
	"github.com/tfpug/pugd/internal/steam"
	"github.com/tfpug/pugd/internal/store"
)

// Version is set at build time
var Version = "dev"

const (
	keepAliveInterval = 100 * time.Second
	reconnectDelay    = 30 * time.Second
	rejoinDelay       = 5 * time.Second
)

// Client is the IRC bot client
type Client struct {
	conn     *ircevent.Connection
	cfg      *config.Config
	resolver *access.Resolver
	session  *session.Session
	host     *plugin.Host
	control  *server.Facade
	store    *store.Store
	verifier *steam.Verifier
	registry *command.Registry

	mu    sync.Mutex
	users map[string]*store.User // lower-cased nick -> record
}

// NewClient creates the IRC client and wires up its command table.
func NewClient(cfg *config.Config, sess *session.Session, host *plugin.Host,
	control *server.Facade, st *store.Store, verifier *steam.Verifier) *Client {

	c := &Client{
		cfg:      cfg,
		resolver: access.NewResolver(),
		session:  sess,
		host:     host,
		control:  control,
		store:    st,
		verifier: verifier,
		users:    make(map[string]*store.User),
	}

	c.conn = &ircevent.Connection{
		Server:        fmt.Sprintf("%s:%d", cfg.IRC.Server, cfg.IRC.Port),
		Nick:          cfg.IRC.Nick,
		User:          cfg.IRC.Nick,
		RealName:      "PugBot",
		QuitMessage:   "Shutting down",
		UseTLS:        cfg.IRC.SSL,
		TLSConfig:     &tls.Config{InsecureSkipVerify: true},
		KeepAlive:     keepAliveInterval,
		ReconnectFreq: reconnectDelay,
		Debug:         false,
	}

	c.registry = command.New(c.resolver.Resolve, c.refreshAccess, c)
	c.registerCommands()
	c.registerHandlers()
	return c
}

func (c *Client) registerHandlers() {
	// Connected (end of MOTD)
	c.conn.AddCallback("376", c.onConnect)
	c.conn.AddCallback("422", c.onConnect) // MOTD missing is also "connected"

	c.conn.AddCallback("JOIN", c.onJoin)
	c.conn.AddCallback("PART", c.onPart)
	c.conn.AddCallback("QUIT", c.onQuit)
	c.conn.AddCallback("KICK", c.onKick)
	c.conn.AddCallback("NICK", c.onNick)
	c.conn.AddCallback("MODE", c.onMode)

	c.conn.AddCallback("PRIVMSG", c.onPrivMsg)

	c.conn.AddCallback("352", c.onWhoReply)     // RPL_WHOREPLY
	c.conn.AddCallback("315", c.onWhoEnd)       // RPL_ENDOFWHO
	c.conn.AddCallback("330", c.onWhoisAccount) // RPL_WHOISACCOUNT
}

// Connect initiates the IRC connection
func (c *Client) Connect() error {
	return c.conn.Connect()
}

// Loop runs the IRC event loop (blocking, reconnects internally)
func (c *Client) Loop() {
	c.conn.Loop()
}

// Quit disconnects from IRC
func (c *Client) Quit() {
	c.conn.Quit()
}

func (c *Client) onConnect(e ircmsg.Message) {
	log.Printf("signed onto %s:%d", c.cfg.IRC.Server, c.cfg.IRC.Port)

	// fresh connection, drop anything cached from the previous one
	c.resolver.Clear()
	c.clearUsers()

	if c.cfg.IRC.Password != "" {
		c.conn.Privmsg("NickServ", fmt.Sprintf("IDENTIFY %s %s", c.cfg.IRC.Nick, c.cfg.IRC.Password))
	}
	c.conn.Join(c.cfg.IRC.Channel)
}

func (c *Client) onJoin(e ircmsg.Message) {
	if len(e.Params) < 1 || !c.isChannel(e.Params[0]) {
		return
	}
	if strings.EqualFold(e.Nick(), c.conn.CurrentNick()) {
		log.Printf("joined channel %s", e.Params[0])
		c.conn.Send("WHOIS", c.conn.CurrentNick())
	}
	// refresh membership on every join so new arrivals resolve
	c.who()
}

func (c *Client) onPart(e ircmsg.Message) {
	if len(e.Params) < 1 || !c.isChannel(e.Params[0]) {
		return
	}
	if strings.EqualFold(e.Nick(), c.conn.CurrentNick()) {
		log.Printf("left channel %s", e.Params[0])
		c.resolver.Clear()
		c.clearUsers()
		return
	}
	c.purgeUser(e.Nick(), fmt.Sprintf("left %s", e.Params[0]))
}

func (c *Client) onQuit(e ircmsg.Message) {
	reason := ""
	if len(e.Params) > 0 {
		reason = e.Params[0]
	}
	c.purgeUser(e.Nick(), fmt.Sprintf("quit (%s)", reason))
}

func (c *Client) onKick(e ircmsg.Message) {
	if len(e.Params) < 2 || !c.isChannel(e.Params[0]) {
		return
	}
	kickee := e.Params[1]

	if strings.EqualFold(kickee, c.conn.CurrentNick()) {
		log.Printf("kicked from %s by %s, rejoining in %s", e.Params[0], e.Nick(), rejoinDelay)
		c.resolver.Clear()
		c.clearUsers()
		time.AfterFunc(rejoinDelay, func() {
			c.conn.Join(c.cfg.IRC.Channel)
		})
		return
	}
	c.purgeUser(kickee, fmt.Sprintf("kicked by %s", e.Nick()))
}

func (c *Client) onNick(e ircmsg.Message) {
	if len(e.Params) < 1 {
		return
	}
	old, newNick := e.Nick(), e.Params[0]
	log.Printf("user renamed: %s -> %s", old, newNick)

	c.resolver.Rename(old, newNick)

	// The session still knows this player by the old nick; tell it before
	// the shared user record below is rewritten.
	if err := c.session.Rename(old, newNick); err != nil && !errors.Is(err, session.ErrNotSignedUp) {
		log.Printf("session rename %s -> %s: %v", old, newNick, err)
	}

	c.mu.Lock()
	u := c.users[strings.ToLower(old)]
	if u != nil {
		delete(c.users, strings.ToLower(old))
		u.Nick = newNick
		c.users[strings.ToLower(newNick)] = u
	}
	c.mu.Unlock()

	if u != nil {
		if err := c.store.UpdateNick(u.ID, newNick); err != nil {
			log.Printf("persist rename %s -> %s: %v", old, newNick, err)
		}
	}
}

func (c *Client) onMode(e ircmsg.Message) {
	if len(e.Params) < 1 || !c.isChannel(e.Params[0]) {
		return
	}
	// membership modes changed; refresh the access map
	c.who()
}

func (c *Client) onWhoReply(e ircmsg.Message) {
	// 352 <me> <channel> <user> <host> <server> <nick> <flags> :<hops> <realname>
	if len(e.Params) < 7 || !c.isChannel(e.Params[1]) {
		return
	}
	nick, flags := e.Params[5], e.Params[6]
	level := access.LevelFromModes(flags)
	c.resolver.Update(nick, level)

	if _, err := c.userFor(nick); err != nil {
		log.Printf("ensure user %q: %v", nick, err)
	}
}

func (c *Client) onWhoEnd(e ircmsg.Message) {
	log.Printf("received end of WHO: %v", e.Params)
}

func (c *Client) onWhoisAccount(e ircmsg.Message) {
	// 330 <me> <nick> <account> :is logged in as
	if len(e.Params) < 3 {
		return
	}
	nick, account := e.Params[1], e.Params[2]

	u, err := c.userFor(nick)
	if err != nil {
		log.Printf("bind account %q to %q: %v", account, nick, err)
		return
	}
	if u.Account == account {
		return
	}
	u.Account = account
	if err := c.store.SetAccount(u.ID, account); err != nil {
		log.Printf("persist account for %q: %v", nick, err)
	}
}

func (c *Client) onPrivMsg(e ircmsg.Message) {
	if len(e.Params) < 2 {
		return
	}
	target, msg := e.Params[0], format.Strip(e.Params[1])

	// channel traffic replies to the channel, queries to the sender
	replyTo := target
	if !c.isChannel(target) {
		if !strings.EqualFold(target, c.conn.CurrentNick()) {
			return
		}
		replyTo = e.Nick()
	}

	c.registry.Dispatch(command.Sender{Nick: e.Nick(), Source: e.Source}, replyTo, msg)
}

// who requests a full membership snapshot for the channel.
func (c *Client) who() {
	c.conn.Send("WHO", c.cfg.IRC.Channel)
}

// refreshAccess is called by the dispatcher when a sender's privilege
// is still unknown.
func (c *Client) refreshAccess(nick string) {
	c.who()
	c.conn.Send("WHOIS", nick)
}

// purgeUser drops a departed member from the access map and, if they
// were signed up, from the roster.
func (c *Client) purgeUser(nick, reason string) {
	log.Printf("%s: %s", nick, reason)
	c.resolver.Remove(nick)

	c.mu.Lock()
	u := c.users[strings.ToLower(nick)]
	delete(c.users, strings.ToLower(nick))
	c.mu.Unlock()

	if u == nil {
		return
	}
	if err := c.session.Remove(u); err == nil {
		log.Printf("removed %q from game (%s)", nick, reason)
		c.listPlayers(c.cfg.IRC.Channel)
	}
}

// userFor returns the persistent record for a nick, creating it on
// first sighting.
func (c *Client) userFor(nick string) (*store.User, error) {
	key := strings.ToLower(nick)

	c.mu.Lock()
	u := c.users[key]
	c.mu.Unlock()
	if u != nil {
		return u, nil
	}

	u, err := c.store.EnsureUser(nick)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.users[key] = u
	c.mu.Unlock()
	return u, nil
}

func (c *Client) clearUsers() {
	c.mu.Lock()
	c.users = make(map[string]*store.User)
	c.mu.Unlock()
}

func (c *Client) isChannel(target string) bool {
	return strings.EqualFold(target, c.cfg.IRC.Channel)
}

// say sends a colorized channel or private message.
func (c *Client) say(target, text string, kind format.Kind) {
	log.Printf("%s (msg) <- %s", target, text)
	c.conn.Privmsg(target, format.Colorize(text, kind, c.cfg.IRC.Color))
}

// notice sends a colorized private notice.
func (c *Client) notice(nick, text string, kind format.Kind) {
	log.Printf("%s (notice) <- %s", nick, text)
	c.conn.Notice(nick, format.Colorize(text, kind, c.cfg.IRC.Color))
}

// ErrorNotice implements command.Notifier.
func (c *Client) ErrorNotice(nick, text string) {
	c.notice(nick, text, format.Error)
}
