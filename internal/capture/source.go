// Package capture provides frame sources for the monitoring pipeline.
package capture

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInterfaceNotFound is returned when the requested capture device does not exist.
	ErrInterfaceNotFound = errors.New("capture interface not found")

	// ErrClosed is returned by NextFrame after Close.
	ErrClosed = errors.New("capture source closed")
)

// Frame is a single captured link-layer frame.
type Frame struct {
	Timestamp time.Time
	Data      []byte
}

// Source yields frames from a single reader.
type Source interface {
	// NextFrame blocks for at most the source's read timeout. It returns
	// (nil, nil) when the timeout expires without a frame, and io.EOF when
	// an offline source is exhausted.
	NextFrame(ctx context.Context) (*Frame, error)
	Close() error
}

// Config holds the parameters needed to acquire a source.
type Config struct {
	Interface   string
	SnapLen     int
	Promiscuous bool
	ReadTimeout time.Duration
	Filter      string
	ReadFile    string
}

// Open acquires the source described by cfg. An offline file takes
// precedence over a live interface.
func Open(cfg Config) (Source, error) {
	if cfg.ReadFile != "" {
		return OpenFile(cfg.ReadFile)
	}
	return OpenLive(cfg)
}
