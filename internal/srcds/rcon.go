// Package srcds is a minimal Source dedicated server client: A2S_INFO
// queries, the remote console protocol, and the UDP log stream. It
// implements the server.Client interface consumed by the façade.
package srcds

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// ErrAuthFailed is returned when the rcon password is rejected.
var ErrAuthFailed = errors.New("srcds: rcon authentication failed")

const (
	packetAuth         = 3
	packetAuthResponse = 2
	packetExec         = 2
	packetResponse     = 0
)

// Rcon is a remote console connection. Commands are serialized; the
// connection re-dials and re-authenticates after errors.
type Rcon struct {
	addr     string
	password string
	timeout  time.Duration

	mu     sync.Mutex
	conn   net.Conn
	nextID int32
}

// DialRcon connects and authenticates to the server's console port.
func DialRcon(addr, password string) (*Rcon, error) {
	r := &Rcon{addr: addr, password: password, timeout: 5 * time.Second, nextID: 1}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rcon) connect() error {
	conn, err := net.DialTimeout("tcp", r.addr, r.timeout)
	if err != nil {
		return fmt.Errorf("dial rcon %s: %w", r.addr, err)
	}

	id := r.nextID
	r.nextID++
	if err := writePacket(conn, id, packetAuth, r.password); err != nil {
		conn.Close()
		return err
	}

	// the server answers auth with an empty response packet followed
	// by the auth response; id -1 signals a bad password
	for {
		respID, respType, _, err := readPacket(conn, r.timeout)
		if err != nil {
			conn.Close()
			return err
		}
		if respType != packetAuthResponse {
			continue
		}
		if respID == -1 {
			conn.Close()
			return ErrAuthFailed
		}
		break
	}

	r.conn = conn
	return nil
}

// Exec runs one console command and returns its text response.
func (r *Rcon) Exec(command string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		if err := r.connect(); err != nil {
			return "", err
		}
	}

	reply, err := r.exec(command)
	if err != nil {
		// stale connection; retry once on a fresh one
		r.conn.Close()
		r.conn = nil
		if err := r.connect(); err != nil {
			return "", err
		}
		return r.exec(command)
	}
	return reply, nil
}

func (r *Rcon) exec(command string) (string, error) {
	id := r.nextID
	r.nextID++
	if err := writePacket(r.conn, id, packetExec, command); err != nil {
		return "", err
	}
	// empty sentinel packet; its response marks the end of the reply
	sentinel := r.nextID
	r.nextID++
	if err := writePacket(r.conn, sentinel, packetResponse, ""); err != nil {
		return "", err
	}

	var body bytes.Buffer
	for {
		respID, respType, payload, err := readPacket(r.conn, r.timeout)
		if err != nil {
			return "", err
		}
		if respType != packetResponse {
			continue
		}
		if respID == sentinel {
			return body.String(), nil
		}
		if respID == id {
			body.WriteString(payload)
		}
	}
}

// Close tears down the console connection.
func (r *Rcon) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

func writePacket(w io.Writer, id, ptype int32, body string) error {
	size := int32(len(body) + 10)
	buf := make([]byte, 0, size+4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(size))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ptype))
	buf = append(buf, body...)
	buf = append(buf, 0, 0)
	_, err := w.Write(buf)
	return err
}

func readPacket(conn net.Conn, timeout time.Duration) (id, ptype int32, body string, err error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, 0, "", err
	}

	var size int32
	if err := binary.Read(conn, binary.LittleEndian, &size); err != nil {
		return 0, 0, "", err
	}
	if size < 10 || size > 1<<16 {
		return 0, 0, "", fmt.Errorf("srcds: bad packet size %d", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return 0, 0, "", err
	}

	id = int32(binary.LittleEndian.Uint32(payload[0:4]))
	ptype = int32(binary.LittleEndian.Uint32(payload[4:8]))
	body = string(bytes.TrimRight(payload[8:], "\x00"))
	return id, ptype, body, nil
}
