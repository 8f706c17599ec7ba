package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandPing       CommandType = "PING"
	CommandGetStatus  CommandType = "GET_STATUS"
	CommandGetOutputs CommandType = "GET_OUTPUTS"
	CommandGetWindows CommandType = "GET_WINDOWS"
	CommandRepaint    CommandType = "REPAINT"
	CommandReload     CommandType = "RELOAD"
	CommandRaise      CommandType = "RAISE"
	CommandLower      CommandType = "LOWER"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	UptimeSeconds   int64  `json:"uptime_seconds"`
	FramesPainted   uint64 `json:"frames_painted"`
	RefreshRate     int    `json:"refresh_rate"`
	RedrawTimeMs    int    `json:"redraw_time_ms"`
	OptimalTimeMs   int    `json:"optimal_time_ms"`
	TimeMultiplier  int    `json:"time_multiplier"`
	FrameStatus     int    `json:"frame_status"`
	SchedulerState  string `json:"scheduler_state"`
	Idle            bool   `json:"idle"`
	DamageMask      string `json:"damage_mask"`
	Windows         int    `json:"windows"`
	MappedWindows   int    `json:"mapped_windows"`
	PendingDestroys int    `json:"pending_destroys"`
	Outputs         int    `json:"outputs"`
}

// Rect is a rectangle in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OutputInfo represents a single output device
type OutputInfo struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Rect     Rect   `json:"rect"`
	WorkArea Rect   `json:"work_area"`
}

// OutputsData represents the data returned by GET_OUTPUTS
type OutputsData struct {
	Screen      Rect         `json:"screen"`
	Outputs     []OutputInfo `json:"outputs"`
	Overlapping bool         `json:"overlapping"`
}

// WindowInfo describes one window of the paint list.
type WindowInfo struct {
	ID         uint32 `json:"id"`
	Rect       Rect   `json:"rect"`
	Type       string `json:"type"`
	Opacity    uint16 `json:"opacity"`
	Mapped     bool   `json:"mapped"`
	Damaged    bool   `json:"damaged"`
	Invisible  bool   `json:"invisible"`
	Destroyed  bool   `json:"destroyed,omitempty"`
	BindFailed bool   `json:"bind_failed,omitempty"`
	DirtyRects int    `json:"dirty_rects,omitempty"`
}

// WindowsData represents the data returned by GET_WINDOWS, bottom to top.
type WindowsData struct {
	Windows []WindowInfo `json:"windows"`
}

// WindowPayload names the window of RAISE and LOWER.
type WindowPayload struct {
	Window uint32 `json:"window"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data any) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
