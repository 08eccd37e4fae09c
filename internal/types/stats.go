package types

import (
	"sort"
	"time"
)

// StatisticsSnapshot is a point-in-time view of the aggregator counters.
type StatisticsSnapshot struct {
	StartedAt time.Time     `json:"started_at"`
	TakenAt   time.Time     `json:"taken_at"`
	Elapsed   time.Duration `json:"elapsed"`

	TotalPackets uint64            `json:"total_packets"`
	TotalBytes   uint64            `json:"total_bytes"`
	Network      map[string]uint64 `json:"network"`
	Transport    map[string]uint64 `json:"transport"`

	// PacketRate is the average packets/sec since StartedAt.
	PacketRate float64 `json:"packet_rate"`
}

// ProtocolCount is a single row of a per-protocol breakdown.
type ProtocolCount struct {
	Protocol string `json:"protocol"`
	Count    uint64 `json:"count"`
}

// NetworkCounts returns the network protocol table, busiest first.
func (s StatisticsSnapshot) NetworkCounts() []ProtocolCount {
	return sortedCounts(s.Network)
}

// TransportCounts returns the transport protocol table, busiest first.
func (s StatisticsSnapshot) TransportCounts() []ProtocolCount {
	return sortedCounts(s.Transport)
}

func sortedCounts(m map[string]uint64) []ProtocolCount {
	out := make([]ProtocolCount, 0, len(m))
	for proto, count := range m {
		out = append(out, ProtocolCount{Protocol: proto, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Protocol < out[j].Protocol
	})
	return out
}

// DaemonStatus holds daemon health and configuration info.
type DaemonStatus struct {
	State        string    `json:"state"`
	Interface    string    `json:"interface"`
	Source       string    `json:"source"`
	StartTime    time.Time `json:"start_time"`
	Uptime       string    `json:"uptime"`
	Frames       uint64    `json:"frames"`
	FailedFrames uint64    `json:"failed_frames"`
	OutputFormat string    `json:"output_format"`
	Outputs      []string  `json:"outputs"`
	Version      string    `json:"version"`
}
