// Package stapleadder implements the injection stage of the pipeline:
// it pushes freshly validated staples into running HAProxy instances
// over their admin sockets, without a proxy restart. Connections are
// kept alive between pushes; a broken connection is closed and lazily
// reopened on the next push, never retried inline. The staple is on
// disk by the time this stage runs, so a failed push costs nothing but
// freshness.
package stapleadder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/greenhost/stapled/internal/scheduler"
	"github.com/greenhost/stapled/pkg/logger"
	"github.com/greenhost/stapled/pkg/staplelib"
)

// expectedAck is HAProxy's acknowledgement of a loaded staple.
const expectedAck = "OCSP Response updated!"

// Adder is the injection stage.
type Adder struct {
	log       logger.Logger
	mgr       *staplelib.Manager
	keepalive time.Duration

	mu    sync.Mutex
	conns map[string]*adminConn
}

// New creates an Adder. The keepalive is clamped to the given floor
// before being requested from the proxy.
func New(log logger.Logger, mgr *staplelib.Manager, keepalive, floor time.Duration) *Adder {
	if keepalive < floor {
		keepalive = floor
	}
	return &Adder{
		log:       log,
		mgr:       mgr,
		keepalive: keepalive,
		conns:     make(map[string]*adminConn),
	}
}

// Handle processes one proxy-add task.
func (a *Adder) Handle(ctx context.Context, task scheduler.Task) {
	rec, ok := a.mgr.Get(task.Path)
	if !ok {
		return
	}
	if task.Generation != rec.Generation() {
		return
	}
	staple := rec.Staple()
	if staple == nil {
		return
	}

	for _, sock := range rec.Sockets() {
		if err := a.push(sock, staple); err != nil {
			// No inline retry. The staple is durable on disk and the
			// next renewal pushes again; a restarted proxy loads the
			// file by itself.
			a.log.Warning("pushing staple for %s to %s: %v", rec.Path(), sock, err)
			continue
		}
		a.log.Info("staple for %s loaded into %s", rec.Path(), sock)
	}
}

// push sends one staple over one admin socket, reusing the connection
// when possible. A failed exchange closes the connection so the next
// push starts fresh.
func (a *Adder) push(sock string, staple *staplelib.Staple) error {
	conn, err := a.conn(sock)
	if err != nil {
		return err
	}

	resp, err := conn.roundTrip("set ssl ocsp-response " + staple.Base64())
	if err != nil {
		a.drop(sock, conn)
		return err
	}
	if !strings.Contains(resp, expectedAck) {
		a.drop(sock, conn)
		return fmt.Errorf("unexpected reply: %q", strings.TrimSpace(resp))
	}
	return nil
}

// conn returns the live connection for a socket path, dialing and
// initializing it if needed.
func (a *Adder) conn(sock string) (*adminConn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.conns[sock]; ok {
		return c, nil
	}
	c, err := dialAdmin(sock, a.keepalive)
	if err != nil {
		return nil, err
	}
	a.conns[sock] = c
	return c, nil
}

// drop closes and forgets a connection, unless a concurrent push already
// replaced it.
func (a *Adder) drop(sock string, conn *adminConn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conns[sock] == conn {
		delete(a.conns, sock)
	}
	conn.Close()
}

// Close closes every open admin connection.
func (a *Adder) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for sock, c := range a.conns {
		c.Close()
		delete(a.conns, sock)
	}
	return nil
}
