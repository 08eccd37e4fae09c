package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wellsgz/pktmon/internal/capture"
	"github.com/wellsgz/pktmon/internal/config"
	"github.com/wellsgz/pktmon/internal/decoder"
	"github.com/wellsgz/pktmon/internal/storage"
	"github.com/wellsgz/pktmon/internal/types"
)

// Version is reported over IPC.
const Version = "0.1.0"

// State is the lifecycle state of a capture session.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// SourceOpener acquires a frame source for a session.
type SourceOpener func(capture.Config) (capture.Source, error)

// Option customizes a Daemon.
type Option func(*Daemon)

// WithSourceOpener replaces the pcap-backed source.
func WithSourceOpener(open SourceOpener) Option {
	return func(d *Daemon) { d.openSource = open }
}

// WithSink replaces the sink selected by the output configuration.
func WithSink(sink storage.Sink) Option {
	return func(d *Daemon) { d.sink = sink }
}

// WithDisplayWriter sets where the statistics panel is written.
func WithDisplayWriter(w io.Writer) Option {
	return func(d *Daemon) { d.displayOut = w }
}

// Daemon orchestrates a capture session: source, decoder, aggregator,
// sink, display and IPC server.
type Daemon struct {
	cfg        *config.Config
	openSource SourceOpener
	sink       storage.Sink
	displayOut io.Writer

	mu         sync.Mutex
	state      State
	starting   bool // sink and source are being opened
	agg        *Aggregator
	source     capture.Source
	activeSink storage.Sink
	cancel     context.CancelFunc
	done       chan struct{} // closed when the capture loop returns
	stopped    chan struct{} // closed when shutdown completes
	startTime  time.Time
	bg         sync.WaitGroup

	frames atomic.Uint64
	failed atomic.Uint64
}

// New creates a daemon instance in the stopped state.
func New(cfg *config.Config, opts ...Option) *Daemon {
	d := &Daemon{
		cfg:        cfg,
		openSource: capture.Open,
		displayOut: os.Stdout,
		agg:        NewAggregator(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func captureConfig(cfg *config.Config) capture.Config {
	return capture.Config{
		Interface:   cfg.Interface,
		SnapLen:     cfg.SnapLen,
		Promiscuous: cfg.Promiscuous,
		ReadTimeout: cfg.ReadTimeout,
		Filter:      cfg.Filter,
		ReadFile:    cfg.ReadFile,
	}
}

// Start runs a capture session and blocks until it ends, either because
// ctx is cancelled, Stop is called, or the source is exhausted. Failing
// to open the sink or the source is returned as an error. Calling Start
// on a session that is not stopped does nothing.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateStopped || d.starting {
		state := d.state
		d.mu.Unlock()
		slog.Warn("start ignored, capture already active", "state", state)
		return nil
	}
	d.starting = true
	d.mu.Unlock()

	sink, src, err := d.acquire()

	d.mu.Lock()
	d.starting = false
	if err != nil {
		d.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	agg := NewAggregator()
	done := make(chan struct{})

	d.agg = agg
	d.source = src
	d.activeSink = sink
	d.cancel = cancel
	d.done = done
	d.stopped = make(chan struct{})
	d.startTime = time.Now()
	d.frames.Store(0)
	d.failed.Store(0)
	d.state = StateRunning
	d.mu.Unlock()

	slog.Info("capture started",
		"interface", d.cfg.Interface,
		"read_file", d.cfg.ReadFile,
		"format", d.cfg.Output.Format,
		"outputs", d.cfg.Output.Locations())

	if d.cfg.Display {
		display := NewDisplay(agg, d.sourceName(), d.cfg.RefreshInterval, d.displayOut)
		d.bg.Add(1)
		go func() {
			defer d.bg.Done()
			display.Run(runCtx)
		}()
	}

	if d.cfg.Socket != "" {
		server := NewServer(d.cfg.Socket, d)
		d.bg.Add(1)
		go func() {
			defer d.bg.Done()
			if err := server.Serve(runCtx); err != nil {
				slog.Error("IPC server error", "error", err)
			}
		}()
	}

	d.captureLoop(runCtx, src, sink, agg)
	close(done)

	d.Stop()
	return nil
}

// acquire opens the sink and then the source. Device lookup can be slow,
// so it runs without holding d.mu.
func (d *Daemon) acquire() (storage.Sink, capture.Source, error) {
	sink := d.sink
	if sink == nil {
		s, err := storage.New(d.cfg.Output)
		if err != nil {
			return nil, nil, fmt.Errorf("creating output: %w", err)
		}
		sink = s
	}

	if err := sink.Open(); err != nil {
		return nil, nil, fmt.Errorf("opening output: %w", err)
	}

	src, err := d.openSource(captureConfig(d.cfg))
	if err != nil {
		if cerr := sink.Close(); cerr != nil {
			slog.Error("failed to close output", "error", cerr)
		}
		return nil, nil, fmt.Errorf("opening capture source: %w", err)
	}
	return sink, src, nil
}

// Stop ends the running session and releases its resources. It waits for
// an in-flight shutdown and does nothing when already stopped.
func (d *Daemon) Stop() {
	d.mu.Lock()
	switch d.state {
	case StateStopped:
		d.mu.Unlock()
		return
	case StateStopping:
		stopped := d.stopped
		d.mu.Unlock()
		<-stopped
		return
	}

	d.state = StateStopping
	cancel, done, stopped := d.cancel, d.done, d.stopped
	src, sink := d.source, d.activeSink
	d.mu.Unlock()

	slog.Info("stopping capture")

	cancel()
	<-done
	d.bg.Wait()

	if err := src.Close(); err != nil {
		slog.Error("failed to close capture source", "error", err)
	}
	if err := sink.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}

	d.mu.Lock()
	d.state = StateStopped
	d.source = nil
	d.activeSink = nil
	d.cancel = nil
	d.mu.Unlock()
	close(stopped)

	slog.Info("capture stopped", "frames", d.frames.Load(), "failed", d.failed.Load())
}

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Snapshot returns the statistics of the current or most recent session.
func (d *Daemon) Snapshot() types.StatisticsSnapshot {
	d.mu.Lock()
	agg := d.agg
	d.mu.Unlock()
	return agg.Snapshot()
}

// Status reports the session state for IPC clients.
func (d *Daemon) Status() types.DaemonStatus {
	d.mu.Lock()
	state, started := d.state, d.startTime
	d.mu.Unlock()

	status := types.DaemonStatus{
		State:        state.String(),
		Interface:    d.cfg.Interface,
		Source:       d.sourceName(),
		StartTime:    started,
		Frames:       d.frames.Load(),
		FailedFrames: d.failed.Load(),
		OutputFormat: d.cfg.Output.Format,
		Outputs:      d.cfg.Output.Locations(),
		Version:      Version,
	}
	if state == StateRunning {
		status.Uptime = formatDuration(time.Since(started))
	}
	return status
}

func (d *Daemon) sourceName() string {
	if d.cfg.ReadFile != "" {
		return d.cfg.ReadFile
	}
	return d.cfg.Interface
}

func (d *Daemon) captureLoop(ctx context.Context, src capture.Source, sink storage.Sink, agg *Aggregator) {
	for ctx.Err() == nil {
		frame, err := src.NextFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			slog.Info("capture source exhausted")
			return
		case errors.Is(err, capture.ErrClosed), ctx.Err() != nil:
			return
		default:
			slog.Warn("failed to read frame", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.cfg.ReadTimeout):
			}
			continue
		}

		// Read timeout.
		if frame == nil {
			continue
		}
		d.processFrame(frame, sink, agg)
	}
}

// processFrame decodes, counts and persists one frame. Failures are
// logged and never stop the capture loop.
func (d *Daemon) processFrame(frame *capture.Frame, sink storage.Sink, agg *Aggregator) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			slog.Error("panic while processing frame", "panic", r, "size", len(frame.Data))
		}
	}()

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	rec := decoder.Decode(frame.Data, ts)
	agg.Record(rec)
	d.frames.Add(1)

	if err := sink.Write(rec); err != nil {
		d.failed.Add(1)
		slog.Error("failed to persist record", "record", rec.String(), "error", err)
	}
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, hours, mins, secs)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, mins, secs)
}
