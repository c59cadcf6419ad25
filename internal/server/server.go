// Package server exposes the daemon's control surface: a JSON-RPC 2.0
// endpoint on a unix socket for listing tracked staples, forcing
// renewals, querying the renewal journal and reporting the version.
// The control surface is observational; its failures never touch the
// renewal pipeline.
package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"

	"github.com/greenhost/stapled/common"
	"github.com/greenhost/stapled/internal/journal"
	"github.com/greenhost/stapled/internal/scheduler"
	"github.com/greenhost/stapled/pkg/logger"
	"github.com/greenhost/stapled/pkg/staplelib"
)

// SocketPath returns the control socket path, from the environment or a
// default under the system temp directory.
func SocketPath() string {
	if path := os.Getenv(common.SocketPathEnv); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), "stapled.sock")
}

// Historian answers journal queries. A nil Historian disables the
// history method.
type Historian interface {
	Recent(path string, limit int) ([]journal.Entry, error)
}

// Server is the control server.
type Server struct {
	log     logger.Logger
	mgr     *staplelib.Manager
	sched   *scheduler.Scheduler
	history Historian
	version common.VersionResult
	methods handler.Map

	mu       sync.Mutex
	listener net.Listener
	active   sync.WaitGroup
}

// New creates a control server. history may be nil.
func New(log logger.Logger, mgr *staplelib.Manager, sched *scheduler.Scheduler, history Historian, version common.VersionResult) *Server {
	s := &Server{
		log:     log,
		mgr:     mgr,
		sched:   sched,
		history: history,
		version: version,
	}
	s.methods = handler.Map{
		common.MethodStapleList:    handler.New(s.stapleList),
		common.MethodStapleRenew:   handler.New(s.stapleRenew),
		common.MethodStapleHistory: handler.New(s.stapleHistory),
		common.MethodVersion:       handler.New(s.daemonVersion),
	}
	return s
}

// Start listens on the control socket and serves connections until the
// context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	path := SocketPath()
	_ = os.Remove(path)
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return err
	}
	_ = os.Chmod(path, 0o660)

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.active.Wait()
				return nil
			default:
			}
			s.log.Warning("control socket accept: %v", err)
			continue
		}
		s.active.Add(1)
		go s.serveConn(conn)
	}
}

// serveConn runs one JSON-RPC session over one connection.
func (s *Server) serveConn(conn net.Conn) {
	defer s.active.Done()
	defer conn.Close()
	srv := jrpc2.NewServer(s.methods, &jrpc2.ServerOptions{
		Logger: jrpc2.StdLogger(logger.ToStdLogger(s.log)),
	})
	srv.Start(channel.Line(conn, conn))
	if err := srv.Wait(); err != nil {
		s.log.Debug("control session ended: %v", err)
	}
}

// Shutdown closes the listener and removes the socket file.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return
	}
	s.listener.Close()
	s.listener = nil
	_ = os.Remove(SocketPath())
}
