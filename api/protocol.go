// Package api defines the IPC protocol for daemon-client communication.
package api

import (
	"encoding/json"
	"time"
)

// Request is a JSON-RPC style request.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     int             `json:"id"`
}

// Response is a JSON-RPC style response.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	ID     int             `json:"id"`
}

// Error represents an RPC error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInternal       = -32603
)

// Method names
const (
	MethodGetStats  = "get_stats"
	MethodGetStatus = "get_status"
)

// ========== Response Types ==========

// ProtocolCount is one row of a per-protocol breakdown.
type ProtocolCount struct {
	Protocol string `json:"protocol"`
	Count    uint64 `json:"count"`
}

// StatsResult contains the running totals of the capture session.
type StatsResult struct {
	StartedAt    time.Time       `json:"started_at"`
	TakenAt      time.Time       `json:"taken_at"`
	TotalPackets uint64          `json:"total_packets"`
	TotalBytes   uint64          `json:"total_bytes"`
	PacketRate   float64         `json:"packet_rate"` // packets/sec
	Network      []ProtocolCount `json:"network"`
	Transport    []ProtocolCount `json:"transport"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	State        string   `json:"state"`
	Running      bool     `json:"running"`
	Interface    string   `json:"interface"`
	Source       string   `json:"source"`
	Uptime       string   `json:"uptime"`
	StartTime    string   `json:"start_time"`
	Frames       uint64   `json:"frames"`
	FailedFrames uint64   `json:"failed_frames"`
	OutputFormat string   `json:"output_format"`
	Outputs      []string `json:"outputs"`
	Version      string   `json:"version"`
}
