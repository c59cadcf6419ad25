package stapleadder

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// ioTimeout bounds a single write or read on the admin socket.
const ioTimeout = 5 * time.Second

// promptMarker terminates every reply in HAProxy's interactive mode.
const promptMarker = "> "

// adminConn is one persistent connection to a HAProxy admin socket in
// interactive (prompt) mode.
type adminConn struct {
	mu   sync.Mutex
	conn net.Conn
	rd   *bufio.Reader
}

// dialAdmin connects to the admin socket, switches it to interactive
// mode and raises the CLI timeout so the connection survives between
// pushes.
func dialAdmin(path string, keepalive time.Duration) (*adminConn, error) {
	conn, err := net.DialTimeout("unix", path, ioTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to admin socket: %w", err)
	}
	c := &adminConn{
		conn: conn,
		rd:   bufio.NewReader(conn),
	}
	// Interactive mode keeps the connection open after a command and
	// frames every reply with the prompt marker.
	if _, err := c.roundTrip("prompt"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling interactive mode: %w", err)
	}
	if _, err := c.roundTrip(fmt.Sprintf("set timeout cli %d", int(keepalive.Seconds()))); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting cli timeout: %w", err)
	}
	return c, nil
}

// roundTrip sends one command and reads the reply up to the prompt
// marker. The marker itself is stripped from the returned text.
func (c *adminConn) roundTrip(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(ioTimeout)); err != nil {
		return "", err
	}
	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("writing command: %w", err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(ioTimeout)); err != nil {
		return "", err
	}
	var reply strings.Builder
	for {
		b, err := c.rd.ReadByte()
		if err != nil {
			return "", fmt.Errorf("reading reply: %w", err)
		}
		reply.WriteByte(b)
		if c.atPrompt(reply.String()) {
			return strings.TrimSuffix(reply.String(), promptMarker), nil
		}
	}
}

// atPrompt reports whether the accumulated reply ends at the prompt
// marker, which sits either at the very start of the reply or right
// after a newline.
func (c *adminConn) atPrompt(reply string) bool {
	if !strings.HasSuffix(reply, promptMarker) {
		return false
	}
	if len(reply) == len(promptMarker) {
		return true
	}
	return reply[len(reply)-len(promptMarker)-1] == '\n'
}

// Close closes the underlying socket.
func (c *adminConn) Close() error {
	return c.conn.Close()
}
