// Package types defines shared data types used across the pktmon application.
package types

import (
	"fmt"
	"net"
	"net/netip"
	"time"
)

// NetworkProtocol names the layer-3 protocol of a record.
type NetworkProtocol string

const (
	NetworkIPv4 NetworkProtocol = "IPv4"
	NetworkIPv6 NetworkProtocol = "IPv6"
)

// TransportProtocol names the layer-4 category of a record.
type TransportProtocol string

const (
	TransportTCP   TransportProtocol = "TCP"
	TransportUDP   TransportProtocol = "UDP"
	TransportICMP  TransportProtocol = "ICMP"
	TransportARP   TransportProtocol = "ARP"
	TransportOther TransportProtocol = "Other"
)

// PacketRecord is the decoded view of one captured frame.
// A nil layer group means the layer was not present or could not be parsed.
type PacketRecord struct {
	Timestamp time.Time

	Link      *LinkLayer
	Network   *NetworkLayer
	Transport *TransportLayer
}

// LinkLayer holds Ethernet header fields.
type LinkLayer struct {
	SourceMAC net.HardwareAddr
	DestMAC   net.HardwareAddr
	EtherType uint16
	FrameSize int // bytes on the wire, including headers
}

// SourceMACString returns the source address as lowercase colon-hex.
func (l *LinkLayer) SourceMACString() string {
	return formatMAC(l.SourceMAC)
}

// DestMACString returns the destination address as lowercase colon-hex.
func (l *LinkLayer) DestMACString() string {
	return formatMAC(l.DestMAC)
}

// EtherTypeString returns the EtherType as 0xNNNN.
func (l *LinkLayer) EtherTypeString() string {
	return fmt.Sprintf("0x%04x", l.EtherType)
}

func formatMAC(mac net.HardwareAddr) string {
	if len(mac) == 0 {
		return "00:00:00:00:00:00"
	}
	return mac.String()
}

// NetworkLayer holds IPv4 or IPv6 header fields.
type NetworkLayer struct {
	Protocol       NetworkProtocol
	SourceIP       netip.Addr
	DestIP         netip.Addr
	ProtocolNumber uint8
	// PacketSize is the IPv4 total length or the IPv6 payload length, as read
	// from the header. The two are different quantities.
	PacketSize int
}

// TransportLayer holds the transport classification and ports.
// Ports are zero for ICMP, ARP and Other.
type TransportLayer struct {
	Protocol   TransportProtocol
	SourcePort uint16
	DestPort   uint16
}

// FrameSize returns the layer-2 frame size, or 0 when the link layer is absent.
func (r PacketRecord) FrameSize() int {
	if r.Link == nil {
		return 0
	}
	return r.Link.FrameSize
}

// String implements fmt.Stringer for debug logging.
func (r PacketRecord) String() string {
	var src, dst, proto string
	if r.Network != nil {
		src, dst = r.Network.SourceIP.String(), r.Network.DestIP.String()
	}
	if r.Transport != nil {
		proto = string(r.Transport.Protocol)
	}
	return fmt.Sprintf("PacketRecord{ts=%s size=%d src=%s dst=%s proto=%s}",
		r.Timestamp.Format(time.RFC3339Nano), r.FrameSize(), src, dst, proto)
}
