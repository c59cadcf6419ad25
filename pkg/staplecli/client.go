// Package staplecli is the JSON-RPC client for the daemon's control
// socket, used by the CLI subcommands.
package staplecli

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"

	"github.com/greenhost/stapled/common"
)

// SocketPath returns the control socket path, from the environment or a
// default under the system temp directory. Must match the daemon side.
func SocketPath() string {
	if path := os.Getenv(common.SocketPathEnv); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), "stapled.sock")
}

// Client is a connection to the daemon's control socket.
type Client struct {
	conn net.Conn
	cli  *jrpc2.Client
}

// NewClient connects to the default control socket.
func NewClient() (*Client, error) {
	return Dial(SocketPath())
}

// Dial connects to the control socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon at %s: %w (is the daemon running?)", path, err)
	}
	return &Client{
		conn: conn,
		cli:  jrpc2.NewClient(channel.Line(conn, conn), nil),
	}, nil
}

// Close terminates the session.
func (c *Client) Close() error {
	c.cli.Close()
	return c.conn.Close()
}

// List returns the tracked certificates and their staple status.
func (c *Client) List(ctx context.Context) (*common.ListResult, error) {
	var res common.ListResult
	if err := c.cli.CallResult(ctx, common.MethodStapleList, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Renew forces an immediate renewal of one certificate, or of every
// tracked certificate when path is empty.
func (c *Client) Renew(ctx context.Context, path string) (*common.RenewResult, error) {
	var res common.RenewResult
	err := c.cli.CallResult(ctx, common.MethodStapleRenew, &common.RenewParams{Path: path}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// History returns recent renewal attempts from the journal.
func (c *Client) History(ctx context.Context, path string, limit int) (*common.HistoryResult, error) {
	var res common.HistoryResult
	err := c.cli.CallResult(ctx, common.MethodStapleHistory, &common.HistoryParams{Path: path, Limit: limit}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Version returns the daemon's version information.
func (c *Client) Version(ctx context.Context) (*common.VersionResult, error) {
	var res common.VersionResult
	if err := c.cli.CallResult(ctx, common.MethodVersion, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
