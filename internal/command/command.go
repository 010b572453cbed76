// Package command implements the gated command dispatch table.
//
// Commands are registered once at startup with their aliases and a
// minimum privilege level; dispatch gates each inbound line on the
// sender's resolved level before invoking the handler.
package command

import (
	"log"
	"strings"

	"github.com/tfpug/pugd/internal/access"
)

// Sender identifies who issued a command.
type Sender struct {
	Nick   string
	Source string // full nick!user@host prefix
}

// Handler processes one command line. target is the channel or nick
// the line was addressed to, line is the full sanitized message.
type Handler func(s Sender, target, line string)

// Notifier sends private notices back to a command sender.
type Notifier interface {
	ErrorNotice(nick, text string)
}

// Registry is a static table of command token -> handler with an
// access gate. Build it once at startup; Register is not safe to
// call concurrently with Dispatch.
type Registry struct {
	entries map[string]entry
	resolve func(nick string) (access.Level, bool)
	refresh func(nick string)
	notify  Notifier
}

type entry struct {
	handler Handler
	min     access.Level
	gated   bool
}

// New creates a registry. resolve looks up the sender's privilege,
// refresh requests a fresh membership snapshot for a nick whose
// privilege is still unknown.
func New(resolve func(string) (access.Level, bool), refresh func(string), notify Notifier) *Registry {
	return &Registry{
		entries: make(map[string]entry),
		resolve: resolve,
		refresh: refresh,
		notify:  notify,
	}
}

// Register binds handler to all aliases, gated on min.
func (r *Registry) Register(min access.Level, h Handler, aliases ...string) {
	for _, a := range aliases {
		r.entries[strings.ToLower(a)] = entry{handler: h, min: min, gated: true}
	}
}

// RegisterOpen binds handler to all aliases with no access gate.
func (r *Registry) RegisterOpen(h Handler, aliases ...string) {
	for _, a := range aliases {
		r.entries[strings.ToLower(a)] = entry{handler: h}
	}
}

// Dispatch routes one inbound line. Unknown commands are dropped
// silently. A sender whose privilege cannot be resolved yet gets a
// retry notice and a refresh is kicked off; a sender below the gate
// gets a denial notice. Handler panics are contained here.
func (r *Registry) Dispatch(s Sender, target, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	e, ok := r.entries[strings.ToLower(fields[0])]
	if !ok {
		return
	}

	if e.gated {
		level, known := r.resolve(s.Nick)
		if !known {
			r.refresh(s.Nick)
			r.notify.ErrorNotice(s.Nick, "Refreshing access list, please try again shortly.")
			return
		}
		if level < e.min {
			r.notify.ErrorNotice(s.Nick, "You don't have access to this command!")
			return
		}
	}

	r.invoke(e.handler, s, target, line)
}

func (r *Registry) invoke(h Handler, s Sender, target, line string) {
	defer func() {
		if err := recover(); err != nil {
			log.Printf("command %q from %s panicked: %v", strings.Fields(line)[0], s.Nick, err)
			r.notify.ErrorNotice(s.Nick, "Something went wrong running that command.")
		}
	}()
	h(s, target, line)
}
