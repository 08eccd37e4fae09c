// Package storage persists decoded packet records, one table per OSI layer.
package storage

import (
	"fmt"
	"strconv"

	"github.com/wellsgz/pktmon/internal/config"
	"github.com/wellsgz/pktmon/internal/types"
)

// SchemaVersion identifies the column layout of the layer tables.
const SchemaVersion = 1

// TimestampLayout is the Date/Time column format.
const TimestampLayout = "2006-01-02 15:04:05"

// Layer names one of the persisted tables.
type Layer int

const (
	Layer2 Layer = 2
	Layer3 Layer = 3
	Layer4 Layer = 4
)

func (l Layer) String() string {
	return "layer" + strconv.Itoa(int(l))
}

// Column headers, one per table.
var (
	Layer2Header = []string{
		"Date/Time",
		"Source MAC",
		"Destination MAC",
		"Protocol (EtherType)",
		"Total Frame Size (bytes)",
	}
	Layer3Header = []string{
		"Date/Time",
		"Protocol Name",
		"Source IP",
		"Destination IP",
		"Protocol Number",
		"Total Packet Size (bytes)",
	}
	Layer4Header = []string{
		"Date/Time",
		"Protocol Name",
		"Source IP",
		"Source Port",
		"Destination IP",
		"Destination Port",
		"Total Packet Size (bytes)",
	}
)

// Sink is a durable, append-only record store.
type Sink interface {
	// Open prepares all three tables. Any failure is fatal for the session.
	Open() error
	// Write appends one row per layer present in rec and makes it durable
	// before returning. A failing layer does not prevent the others.
	Write(rec types.PacketRecord) error
	// Close flushes and releases the tables. It is idempotent.
	Close() error
}

// New returns the sink for the configured output format.
func New(cfg config.OutputConfig) (Sink, error) {
	l2, l3, l4, db := cfg.Paths()
	switch cfg.Format {
	case config.FormatCSV, "":
		return NewCSVSink(l2, l3, l4), nil
	case config.FormatSQLite:
		return NewSQLiteSink(db), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Format)
	}
}

// row holds the formatted column values for one table row.
type row struct {
	layer  Layer
	fields []string
}

// rows formats rec into the rows it contributes, lowest layer first.
func rows(rec types.PacketRecord) []row {
	if rec.Link == nil {
		return nil
	}

	ts := rec.Timestamp.Format(TimestampLayout)
	out := make([]row, 0, 3)

	out = append(out, row{Layer2, []string{
		ts,
		rec.Link.SourceMACString(),
		rec.Link.DestMACString(),
		rec.Link.EtherTypeString(),
		strconv.Itoa(rec.Link.FrameSize),
	}})

	var srcIP, dstIP string
	var packetSize int
	if n := rec.Network; n != nil {
		srcIP, dstIP, packetSize = n.SourceIP.String(), n.DestIP.String(), n.PacketSize
		out = append(out, row{Layer3, []string{
			ts,
			string(n.Protocol),
			srcIP,
			dstIP,
			strconv.Itoa(int(n.ProtocolNumber)),
			strconv.Itoa(n.PacketSize),
		}})
	}

	if t := rec.Transport; t != nil {
		out = append(out, row{Layer4, []string{
			ts,
			string(t.Protocol),
			srcIP,
			strconv.Itoa(int(t.SourcePort)),
			dstIP,
			strconv.Itoa(int(t.DestPort)),
			strconv.Itoa(packetSize),
		}})
	}

	return out
}
