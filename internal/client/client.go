// Package client provides an IPC client for communicating with the daemon.
package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/wellsgz/pktmon/api"
)

// DefaultSocketPath is used when no socket path is given.
const DefaultSocketPath = "/run/pktmon/pktmon.sock"

// DefaultTimeout bounds dialing and each request round trip.
const DefaultTimeout = 2 * time.Second

// ErrNotConnected is returned by requests made before Connect.
var ErrNotConnected = errors.New("not connected")

// Client talks to pktmond over its Unix socket. Requests are serialized;
// a Client is safe for concurrent use.
type Client struct {
	socketPath string
	timeout    time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	nextID int
}

// New creates a client for socketPath.
func New(socketPath string) *Client {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Client{socketPath: socketPath, timeout: DefaultTimeout}
}

// Connect dials the daemon. It does nothing when already connected.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return fmt.Errorf("connecting to daemon: %w", err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked()
}

func (c *Client) dropLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// IsConnected reports whether a connection is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// roundTrip sends one request line and reads one response line. Transport
// failures drop the connection so the next Connect redials.
func (c *Client) roundTrip(method string) (*api.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	c.nextID++
	req, err := json.Marshal(api.Request{Method: method, ID: c.nextID})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		c.dropLocked()
		return nil, err
	}

	if _, err := c.conn.Write(append(req, '\n')); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("sending request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var resp api.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return &resp, nil
}

func call[T any](c *Client, method string) (*T, error) {
	resp, err := c.roundTrip(method)
	if err != nil {
		return nil, err
	}

	var result T
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", method, err)
	}
	return &result, nil
}

// GetStats retrieves the running totals of the capture session.
func (c *Client) GetStats() (*api.StatsResult, error) {
	return call[api.StatsResult](c, api.MethodGetStats)
}

// GetStatus retrieves daemon status.
func (c *Client) GetStatus() (*api.StatusResult, error) {
	return call[api.StatusResult](c, api.MethodGetStatus)
}
