package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/gopacket/pcap"
)

// LiveSource reads frames from a network interface through libpcap.
type LiveSource struct {
	iface  string
	handle *pcap.Handle
	mu     sync.Mutex
}

// findAllDevs is swapped out in tests.
var findAllDevs = pcap.FindAllDevs

// OpenLive opens cfg.Interface for capture.
func OpenLive(cfg Config) (*LiveSource, error) {
	if err := lookupInterface(cfg.Interface); err != nil {
		return nil, err
	}

	handle, err := pcap.OpenLive(cfg.Interface, int32(cfg.SnapLen), cfg.Promiscuous, cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Interface, err)
	}

	if cfg.Filter != "" {
		if err := handle.SetBPFFilter(cfg.Filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("setting BPF filter %q: %w", cfg.Filter, err)
		}
	}

	slog.Info("interface opened",
		"interface", cfg.Interface,
		"snaplen", cfg.SnapLen,
		"promiscuous", cfg.Promiscuous,
		"read_timeout", cfg.ReadTimeout,
		"filter", cfg.Filter)

	return &LiveSource{iface: cfg.Interface, handle: handle}, nil
}

// lookupInterface fails with ErrInterfaceNotFound, listing what is
// available, when name is not a capture device.
func lookupInterface(name string) error {
	devs, err := findAllDevs()
	if err != nil {
		return fmt.Errorf("listing capture devices: %w", err)
	}

	names := make([]string, 0, len(devs))
	for _, dev := range devs {
		if dev.Name == name {
			return nil
		}
		names = append(names, dev.Name)
	}

	return fmt.Errorf("%w: %q (available: %s)", ErrInterfaceNotFound, name, strings.Join(names, ", "))
}

// NextFrame implements Source.
func (s *LiveSource) NextFrame(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()
	if handle == nil {
		return nil, ErrClosed
	}

	data, ci, err := handle.ReadPacketData()
	switch {
	case err == nil:
	case errors.Is(err, pcap.NextErrorTimeoutExpired):
		return nil, nil
	case errors.Is(err, pcap.NextErrorNoMorePackets):
		return nil, ErrClosed
	default:
		return nil, fmt.Errorf("reading from %s: %w", s.iface, err)
	}

	ts := ci.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Frame{Timestamp: ts, Data: data}, nil
}

// Close releases the pcap handle. It is safe to call more than once.
func (s *LiveSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
		slog.Info("capture stopped", "interface", s.iface)
	}
	return nil
}
