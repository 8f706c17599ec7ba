package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/1broseidon/compote/internal/runtimepath"
)

// ErrDaemonNotRunning is returned when nothing listens on the socket.
var ErrDaemonNotRunning = errors.New("compositor daemon is not running")

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the default socket path.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for socketPath.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if c.socketPath == "" || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
		}
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

func (c *Client) command(cmd CommandType, payload any) (*Response, error) {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		req.Payload = data
	}
	return c.sendRequest(req)
}

func query[T any](c *Client, cmd CommandType) (*T, error) {
	resp, err := c.command(cmd, nil)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return &out, nil
}

// Ping checks that the daemon answers.
func (c *Client) Ping() error {
	_, err := c.command(CommandPing, nil)
	return err
}

// GetStatus retrieves compositor status
func (c *Client) GetStatus() (*StatusData, error) {
	return query[StatusData](c, CommandGetStatus)
}

// GetOutputs retrieves the output devices
func (c *Client) GetOutputs() (*OutputsData, error) {
	return query[OutputsData](c, CommandGetOutputs)
}

// GetWindows retrieves the paint list
func (c *Client) GetWindows() (*WindowsData, error) {
	return query[WindowsData](c, CommandGetWindows)
}

// Repaint damages the whole screen.
func (c *Client) Repaint() error {
	_, err := c.command(CommandRepaint, nil)
	return err
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload() error {
	_, err := c.command(CommandReload, nil)
	return err
}

// Raise restacks a window to the top of its layer.
func (c *Client) Raise(window uint32) error {
	_, err := c.command(CommandRaise, WindowPayload{Window: window})
	return err
}

// Lower restacks a window to the bottom of its layer.
func (c *Client) Lower(window uint32) error {
	_, err := c.command(CommandLower, WindowPayload{Window: window})
	return err
}
