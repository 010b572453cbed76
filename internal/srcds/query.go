package srcds

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/tfpug/pugd/internal/server"
)

var a2sInfoRequest = append([]byte{0xff, 0xff, 0xff, 0xff, 'T'}, "Source Engine Query\x00"...)

// Client bundles the query and console connections behind the
// server.Client interface.
type Client struct {
	queryAddr string
	rcon      *Rcon
	timeout   time.Duration
}

// Dial connects to the game server at host:port with the given rcon
// password.
func Dial(host string, port int, password string) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	rcon, err := DialRcon(addr, password)
	if err != nil {
		return nil, err
	}
	return &Client{queryAddr: addr, rcon: rcon, timeout: 5 * time.Second}, nil
}

// Rcon runs one console command.
func (c *Client) Rcon(command string) (string, error) {
	return c.rcon.Exec(command)
}

// Close releases both connections.
func (c *Client) Close() error {
	return c.rcon.Close()
}

// Info issues an A2S_INFO query, answering a challenge if the server
// demands one.
func (c *Client) Info() (server.Info, error) {
	conn, err := net.DialTimeout("udp", c.queryAddr, c.timeout)
	if err != nil {
		return server.Info{}, fmt.Errorf("dial query %s: %w", c.queryAddr, err)
	}
	defer conn.Close()

	payload, err := c.roundTrip(conn, a2sInfoRequest)
	if err != nil {
		return server.Info{}, err
	}
	if len(payload) > 0 && payload[0] == 'A' {
		// challenge response: resend with the challenge appended
		req := append(append([]byte{}, a2sInfoRequest...), payload[1:5]...)
		payload, err = c.roundTrip(conn, req)
		if err != nil {
			return server.Info{}, err
		}
	}
	return parseInfo(payload)
}

func (c *Client) roundTrip(conn net.Conn, req []byte) ([]byte, error) {
	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	if _, err := conn.Write(req); err != nil {
		return nil, err
	}
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}
	if n < 5 || !bytes.Equal(buf[:4], []byte{0xff, 0xff, 0xff, 0xff}) {
		return nil, fmt.Errorf("srcds: short or split query reply (%d bytes)", n)
	}
	return buf[4:n], nil
}

// edf bits in the A2S_INFO extra data field
const (
	edfPort     = 0x80
	edfSteamID  = 0x10
	edfSpecPort = 0x40
	edfKeywords = 0x20
	edfGameID   = 0x01
)

func parseInfo(payload []byte) (server.Info, error) {
	if len(payload) < 1 || payload[0] != 'I' {
		return server.Info{}, fmt.Errorf("srcds: unexpected info header in %d-byte reply", len(payload))
	}
	r := &reader{buf: payload[1:]}

	r.byte()   // protocol
	r.cstring() // server name
	info := server.Info{Map: r.cstring()}
	r.cstring() // game folder
	r.cstring() // game name
	r.uint16() // app id
	info.Players = int(r.byte())
	info.MaxPlayers = int(r.byte())
	r.byte() // bots
	r.byte() // server type
	r.byte() // environment
	r.byte() // visibility
	r.byte() // vac
	r.cstring() // version

	if r.ok() {
		edf := r.byte()
		if edf&edfPort != 0 {
			info.Port = int(r.uint16())
		}
		if edf&edfSteamID != 0 {
			r.skip(8)
		}
		if edf&edfSpecPort != 0 {
			info.SpecPort = int(r.uint16())
			r.cstring() // spectator server name
		}
	}

	if r.err != nil {
		return server.Info{}, fmt.Errorf("srcds: truncated info reply: %w", r.err)
	}
	return info, nil
}

// reader is a cursor over a query payload. The first decode error
// sticks; subsequent reads return zero values.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) ok() bool { return r.err == nil && r.pos < len(r.buf) }

func (r *reader) fail() {
	if r.err == nil {
		r.err = fmt.Errorf("unexpected end at byte %d", r.pos)
	}
}

func (r *reader) byte() byte {
	if r.err != nil || r.pos >= len(r.buf) {
		r.fail()
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *reader) uint16() uint16 {
	if r.err != nil || r.pos+2 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) skip(n int) {
	if r.err != nil || r.pos+n > len(r.buf) {
		r.fail()
		return
	}
	r.pos += n
}

func (r *reader) cstring() string {
	if r.err != nil {
		return ""
	}
	end := bytes.IndexByte(r.buf[r.pos:], 0)
	if end < 0 {
		r.fail()
		return ""
	}
	s := string(r.buf[r.pos : r.pos+end])
	r.pos += end + 1
	return s
}
