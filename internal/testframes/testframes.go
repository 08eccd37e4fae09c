// Package testframes builds synthetic Ethernet frames for tests.
package testframes

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Well-known addresses used by the builders.
var (
	SrcMAC = net.HardwareAddr{0x00, 0x1a, 0x2b, 0x0c, 0x4d, 0x5e}
	DstMAC = net.HardwareAddr{0xaa, 0xbb, 0x0c, 0xdd, 0xee, 0x0f}

	SrcIPv4 = net.IP{192, 168, 1, 10}
	DstIPv4 = net.IP{10, 0, 0, 1}

	SrcIPv6 = net.ParseIP("2001:db8::1")
	DstIPv6 = net.ParseIP("2001:db8::2")
)

func serialize(ls ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		panic(err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out
}

func ethernet(t layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: SrcMAC, DstMAC: DstMAC, EthernetType: t}
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{Version: 4, TTL: 64, Protocol: proto, SrcIP: SrcIPv4, DstIP: DstIPv4}
}

func ipv6(next layers.IPProtocol) *layers.IPv6 {
	return &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: next, SrcIP: SrcIPv6, DstIP: DstIPv6}
}

// ARP returns a who-has request. Ethernet padding makes it 60 bytes.
func ARP() []byte {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   SrcMAC,
		SourceProtAddress: SrcIPv4.To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    DstIPv4.To4(),
	}
	return serialize(ethernet(layers.EthernetTypeARP), arp)
}

// IPv4TCP returns Ethernet+IPv4+TCP carrying payload.
// The frame is 54+len(payload) bytes, padded to at least 60.
func IPv4TCP(srcPort, dstPort uint16, payload []byte) []byte {
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), Seq: 1, SYN: true, Window: 1024}
	return serialize(ethernet(layers.EthernetTypeIPv4), ipv4(layers.IPProtocolTCP), tcp, gopacket.Payload(payload))
}

// IPv4UDP returns Ethernet+IPv4+UDP carrying payload.
func IPv4UDP(srcPort, dstPort uint16, payload []byte) []byte {
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	return serialize(ethernet(layers.EthernetTypeIPv4), ipv4(layers.IPProtocolUDP), udp, gopacket.Payload(payload))
}

// IPv4ICMP returns an echo request.
func IPv4ICMP() []byte {
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}
	return serialize(ethernet(layers.EthernetTypeIPv4), ipv4(layers.IPProtocolICMPv4), icmp)
}

// IPv4Proto returns an IPv4 packet with an arbitrary protocol number and payload.
func IPv4Proto(proto layers.IPProtocol, payload []byte) []byte {
	return serialize(ethernet(layers.EthernetTypeIPv4), ipv4(proto), gopacket.Payload(payload))
}

// IPv6UDP returns Ethernet+IPv6+UDP carrying payload.
// The frame is 62+len(payload) bytes.
func IPv6UDP(srcPort, dstPort uint16, payload []byte) []byte {
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	return serialize(ethernet(layers.EthernetTypeIPv6), ipv6(layers.IPProtocolUDP), udp, gopacket.Payload(payload))
}

// IPv6TCP returns Ethernet+IPv6+TCP carrying payload.
func IPv6TCP(srcPort, dstPort uint16, payload []byte) []byte {
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), Seq: 1, ACK: true, Window: 1024}
	return serialize(ethernet(layers.EthernetTypeIPv6), ipv6(layers.IPProtocolTCP), tcp, gopacket.Payload(payload))
}

// IPv6Proto returns an IPv6 packet with an arbitrary next header and payload.
func IPv6Proto(next layers.IPProtocol, payload []byte) []byte {
	return serialize(ethernet(layers.EthernetTypeIPv6), ipv6(next), gopacket.Payload(payload))
}

// Payload returns n filler bytes.
func Payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}
