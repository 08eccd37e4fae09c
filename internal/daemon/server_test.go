package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellsgz/pktmon/api"
	"github.com/wellsgz/pktmon/internal/client"
	"github.com/wellsgz/pktmon/internal/types"
)

type stubProvider struct {
	snap   types.StatisticsSnapshot
	status types.DaemonStatus
}

func (p stubProvider) Snapshot() types.StatisticsSnapshot { return p.snap }
func (p stubProvider) Status() types.DaemonStatus         { return p.status }

func startServer(t *testing.T, provider StatsProvider) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "pktmon.sock")
	srv := NewServer(socket, provider)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, time.Second, 5*time.Millisecond)
	return socket
}

func TestServerClientRoundTrip(t *testing.T) {
	started := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	provider := stubProvider{
		snap: types.StatisticsSnapshot{
			StartedAt:    started,
			TakenAt:      started.Add(10 * time.Second),
			TotalPackets: 30,
			TotalBytes:   4096,
			PacketRate:   3,
			Network:      map[string]uint64{"IPv4": 20, "IPv6": 10},
			Transport:    map[string]uint64{"UDP": 5, "TCP": 25},
		},
		status: types.DaemonStatus{
			State:        "running",
			Interface:    "eth0",
			Source:       "eth0",
			StartTime:    started,
			Uptime:       "00:00:10",
			Frames:       30,
			OutputFormat: "csv",
			Outputs:      []string{"layer2.csv", "layer3.csv", "layer4.csv"},
			Version:      Version,
		},
	}
	socket := startServer(t, provider)

	c := client.New(socket)
	require.NoError(t, c.Connect())
	defer c.Close()

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(30), stats.TotalPackets)
	assert.Equal(t, uint64(4096), stats.TotalBytes)
	assert.Equal(t, 3.0, stats.PacketRate)
	assert.True(t, started.Equal(stats.StartedAt))
	assert.Equal(t, []api.ProtocolCount{{Protocol: "IPv4", Count: 20}, {Protocol: "IPv6", Count: 10}}, stats.Network)
	assert.Equal(t, []api.ProtocolCount{{Protocol: "TCP", Count: 25}, {Protocol: "UDP", Count: 5}}, stats.Transport)

	status, err := c.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, "running", status.State)
	assert.Equal(t, "eth0", status.Interface)
	assert.Equal(t, "2025-03-14T09:00:00Z", status.StartTime)
	assert.Equal(t, uint64(30), status.Frames)
	assert.Equal(t, []string{"layer2.csv", "layer3.csv", "layer4.csv"}, status.Outputs)
	assert.Equal(t, Version, status.Version)
}

func TestServerErrors(t *testing.T) {
	socket := startServer(t, stubProvider{})

	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	defer conn.Close()
	scanner := bufio.NewScanner(conn)

	tests := []struct {
		name     string
		line     string
		wantCode int
		wantID   int
	}{
		{"bad json", "{not json", api.ErrCodeInvalidRequest, 0},
		{"unknown method", `{"method":"add_port","id":7}`, api.ErrCodeMethodNotFound, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := conn.Write([]byte(tt.line + "\n"))
			require.NoError(t, err)
			require.True(t, scanner.Scan())

			var resp api.Response
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantID, resp.ID)
		})
	}
}

func TestClientNotConnected(t *testing.T) {
	c := client.New(filepath.Join(t.TempDir(), "missing.sock"))
	assert.Error(t, c.Connect())
	assert.False(t, c.IsConnected())

	_, err := c.GetStats()
	assert.Error(t, err)
}
