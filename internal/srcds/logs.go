package srcds

import (
	"log"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/tfpug/pugd/internal/server"
)

// log lines look like:
//
//	L 10/01/2026 - 18:30:02: World triggered "Round_Start"
//	L 10/01/2026 - 18:30:04: "Name<2><STEAM_0:1:234><Blue>" say "hi" (prop "x")
var (
	logLineRe = regexp.MustCompile(`^L (\d{2}/\d{2}/\d{4} - \d{2}:\d{2}:\d{2}): (.*)$`)
	propRe    = regexp.MustCompile(`\(([^()"]+) "([^"]*)"\)`)
)

const logTimeLayout = "01/02/2006 - 15:04:05"

// ParseLogLine decodes one remote log line into a structured event.
// ok is false for lines that do not carry the standard prefix.
func ParseLogLine(remote, line string) (server.LogEvent, bool) {
	m := logLineRe.FindStringSubmatch(strings.TrimRight(line, "\r\n\x00"))
	if m == nil {
		return server.LogEvent{}, false
	}

	ts, err := time.Parse(logTimeLayout, m[1])
	if err != nil {
		ts = time.Time{}
	}
	ev := server.LogEvent{
		Remote: remote,
		Time:   ts,
		Values: map[string]string{},
	}

	body := m[2]
	// strip trailing (key "value") properties
	for _, p := range propRe.FindAllStringSubmatch(body, -1) {
		ev.Props = append(ev.Props, p[1]+"="+p[2])
	}
	body = strings.TrimSpace(propRe.ReplaceAllString(body, ""))

	switch {
	case strings.HasPrefix(body, `World triggered "`):
		ev.Key = "trigger_world"
		ev.Values["trigger"] = extractQuoted(body)
	case strings.HasPrefix(body, `Team "`):
		ev.Key = "trigger_team"
		ev.Values["team"] = extractQuoted(body)
	default:
		ev.Key = "raw"
		ev.Values["text"] = body
	}
	return ev, true
}

func extractQuoted(s string) string {
	i := strings.IndexByte(s, '"')
	if i < 0 {
		return ""
	}
	j := strings.IndexByte(s[i+1:], '"')
	if j < 0 {
		return s[i+1:]
	}
	return s[i+1 : i+1+j]
}

// LogListener receives the server's UDP log stream and forwards each
// parsed event to a handler.
type LogListener struct {
	conn    *net.UDPConn
	handler func(server.LogEvent)
}

// ListenLogs binds the local log port and starts the receive loop.
func ListenLogs(bindAddr string, handler func(server.LogEvent)) (*LogListener, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	l := &LogListener{conn: conn, handler: handler}
	go l.loop()
	return l, nil
}

// Close stops the receive loop.
func (l *LogListener) Close() error {
	return l.conn.Close()
}

func (l *LogListener) loop() {
	buf := make([]byte, 4096)
	for {
		n, remote, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if !strings.Contains(err.Error(), "use of closed") {
				log.Printf("log listener: %v", err)
			}
			return
		}

		payload := buf[:n]
		// datagrams carry a 0xffffffff 'R'/'S' header before the line
		if len(payload) > 5 && payload[0] == 0xff && payload[1] == 0xff &&
			payload[2] == 0xff && payload[3] == 0xff {
			payload = payload[5:]
		}

		if ev, ok := ParseLogLine(remote.String(), string(payload)); ok {
			l.handler(ev)
		}
	}
}
