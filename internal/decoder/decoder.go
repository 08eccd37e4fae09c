// Package decoder turns raw Ethernet frames into layered packet records.
//
// Decoding is best effort. Each layer is parsed only if the one below it
// parsed, and a layer that cannot be parsed is left nil in the result.
package decoder

import (
	"encoding/binary"
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/wellsgz/pktmon/internal/types"
)

const (
	ethernetHeaderLen = 14
	ipv6HeaderLen     = 40
	portFieldsLen     = 4
)

// IANA protocol numbers the transport step dispatches on.
const (
	protoICMP = uint8(layers.IPProtocolICMPv4)
	protoTCP  = uint8(layers.IPProtocolTCP)
	protoUDP  = uint8(layers.IPProtocolUDP)
)

// Decode parses data as an Ethernet frame captured at ts.
// It never fails; unparseable layers are simply absent from the record.
func Decode(data []byte, ts time.Time) types.PacketRecord {
	rec := types.PacketRecord{Timestamp: ts}

	var eth layers.Ethernet
	if len(data) < ethernetHeaderLen || eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback) != nil {
		return rec
	}

	// gopacket folds 802.3 length values into EthernetTypeLLC, so the
	// recorded EtherType is taken from the wire.
	etherType := binary.BigEndian.Uint16(data[12:14])
	rec.Link = &types.LinkLayer{
		SourceMAC: cloneMAC(eth.SrcMAC),
		DestMAC:   cloneMAC(eth.DstMAC),
		EtherType: etherType,
		FrameSize: len(data),
	}

	switch layers.EthernetType(etherType) {
	case layers.EthernetTypeARP:
		rec.Transport = &types.TransportLayer{Protocol: types.TransportARP}
	case layers.EthernetTypeIPv4:
		var payload []byte
		rec.Network, payload = decodeIPv4(eth.Payload)
		if rec.Network != nil {
			rec.Transport = decodeTransport(rec.Network.ProtocolNumber, payload)
		}
	case layers.EthernetTypeIPv6:
		var payload []byte
		rec.Network, payload = decodeIPv6(eth.Payload)
		if rec.Network != nil {
			rec.Transport = decodeTransport(rec.Network.ProtocolNumber, payload)
		}
	}

	return rec
}

func decodeIPv4(data []byte) (*types.NetworkLayer, []byte) {
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil
	}
	// gopacket rewrites a zero total length to the captured size, which
	// happens on offloaded segments. The header value is reported as is.
	return &types.NetworkLayer{
		Protocol:       types.NetworkIPv4,
		SourceIP:       toAddr(ip.SrcIP),
		DestIP:         toAddr(ip.DstIP),
		ProtocolNumber: uint8(ip.Protocol),
		PacketSize:     int(binary.BigEndian.Uint16(data[2:4])),
	}, ip.Payload
}

func decodeIPv6(data []byte) (*types.NetworkLayer, []byte) {
	var ip layers.IPv6
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return rawIPv6(data)
	}
	return &types.NetworkLayer{
		Protocol:       types.NetworkIPv6,
		SourceIP:       toAddr(ip.SrcIP),
		DestIP:         toAddr(ip.DstIP),
		ProtocolNumber: uint8(ip.NextHeader),
		PacketSize:     int(ip.Length),
	}, ip.Payload
}

// rawIPv6 reads the fixed header fields from the wire for headers gopacket
// rejects, such as a zero payload length without a jumbogram option.
func rawIPv6(data []byte) (*types.NetworkLayer, []byte) {
	if len(data) < ipv6HeaderLen || data[0]>>4 != 6 {
		return nil, nil
	}
	length := int(binary.BigEndian.Uint16(data[4:6]))
	end := min(ipv6HeaderLen+length, len(data))
	return &types.NetworkLayer{
		Protocol:       types.NetworkIPv6,
		SourceIP:       netip.AddrFrom16([16]byte(data[8:24])),
		DestIP:         netip.AddrFrom16([16]byte(data[24:40])),
		ProtocolNumber: data[6],
		PacketSize:     length,
	}, data[ipv6HeaderLen:end]
}

// decodeTransport classifies the payload that follows the IP header.
// Specific matches win over the Other fallback.
func decodeTransport(proto uint8, payload []byte) *types.TransportLayer {
	switch proto {
	case protoTCP:
		var tcp layers.TCP
		if tcp.DecodeFromBytes(payload, gopacket.NilDecodeFeedback) == nil {
			return &types.TransportLayer{
				Protocol:   types.TransportTCP,
				SourcePort: uint16(tcp.SrcPort),
				DestPort:   uint16(tcp.DstPort),
			}
		}
		if t := rawPorts(types.TransportTCP, payload); t != nil {
			return t
		}
	case protoUDP:
		var udp layers.UDP
		if udp.DecodeFromBytes(payload, gopacket.NilDecodeFeedback) == nil {
			return &types.TransportLayer{
				Protocol:   types.TransportUDP,
				SourcePort: uint16(udp.SrcPort),
				DestPort:   uint16(udp.DstPort),
			}
		}
		if t := rawPorts(types.TransportUDP, payload); t != nil {
			return t
		}
	case protoICMP:
		return &types.TransportLayer{Protocol: types.TransportICMP}
	}

	if proto > 0 {
		return &types.TransportLayer{Protocol: types.TransportOther}
	}
	return nil
}

// rawPorts reads the two port fields directly when the rest of the
// transport header was cut off by the snap length.
func rawPorts(proto types.TransportProtocol, payload []byte) *types.TransportLayer {
	if len(payload) < portFieldsLen {
		return nil
	}
	return &types.TransportLayer{
		Protocol:   proto,
		SourcePort: binary.BigEndian.Uint16(payload[0:2]),
		DestPort:   binary.BigEndian.Uint16(payload[2:4]),
	}
}

func cloneMAC(mac net.HardwareAddr) net.HardwareAddr {
	out := make(net.HardwareAddr, len(mac))
	copy(out, mac)
	return out
}

func toAddr(ip net.IP) netip.Addr {
	addr, _ := netip.AddrFromSlice(ip)
	return addr
}
