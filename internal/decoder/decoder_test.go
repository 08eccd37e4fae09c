package decoder

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellsgz/pktmon/internal/testframes"
	"github.com/wellsgz/pktmon/internal/types"
)

var ts = time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)

func TestDecodeIPv4TCP(t *testing.T) {
	frame := testframes.IPv4TCP(51000, 443, testframes.Payload(6))
	require.Len(t, frame, 60)

	rec := Decode(frame, ts)

	require.NotNil(t, rec.Link)
	require.NotNil(t, rec.Network)
	require.NotNil(t, rec.Transport)

	assert.Equal(t, ts, rec.Timestamp)
	assert.Equal(t, "00:1a:2b:0c:4d:5e", rec.Link.SourceMACString())
	assert.Equal(t, "aa:bb:0c:dd:ee:0f", rec.Link.DestMACString())
	assert.Equal(t, "0x0800", rec.Link.EtherTypeString())
	assert.Equal(t, 60, rec.Link.FrameSize)

	assert.Equal(t, types.NetworkIPv4, rec.Network.Protocol)
	assert.Equal(t, "192.168.1.10", rec.Network.SourceIP.String())
	assert.Equal(t, "10.0.0.1", rec.Network.DestIP.String())
	assert.Equal(t, uint8(6), rec.Network.ProtocolNumber)

	// Total length straight from the IPv4 header.
	totalLen := int(binary.BigEndian.Uint16(frame[14+2 : 14+4]))
	assert.Equal(t, totalLen, rec.Network.PacketSize)
	assert.Equal(t, 46, rec.Network.PacketSize)

	assert.Equal(t, types.TransportTCP, rec.Transport.Protocol)
	assert.Equal(t, uint16(51000), rec.Transport.SourcePort)
	assert.Equal(t, uint16(443), rec.Transport.DestPort)
}

func TestDecodeIPv6UDP(t *testing.T) {
	frame := testframes.IPv6UDP(5353, 53, testframes.Payload(18))
	require.Len(t, frame, 80)

	rec := Decode(frame, ts)

	require.NotNil(t, rec.Network)
	require.NotNil(t, rec.Transport)
	assert.Equal(t, "0x86dd", rec.Link.EtherTypeString())
	assert.Equal(t, types.NetworkIPv6, rec.Network.Protocol)
	assert.Equal(t, "2001:db8::1", rec.Network.SourceIP.String())
	assert.Equal(t, "2001:db8::2", rec.Network.DestIP.String())
	assert.Equal(t, uint8(17), rec.Network.ProtocolNumber)

	// Payload length field, not the frame length.
	payloadLen := int(binary.BigEndian.Uint16(frame[14+4 : 14+6]))
	assert.Equal(t, payloadLen, rec.Network.PacketSize)
	assert.Equal(t, 26, rec.Network.PacketSize)
	assert.NotEqual(t, rec.Link.FrameSize, rec.Network.PacketSize)

	assert.Equal(t, types.TransportUDP, rec.Transport.Protocol)
	assert.Equal(t, uint16(5353), rec.Transport.SourcePort)
	assert.Equal(t, uint16(53), rec.Transport.DestPort)
}

func TestDecodeIPv4ZeroTotalLength(t *testing.T) {
	frame := testframes.IPv4TCP(51000, 443, testframes.Payload(6))
	binary.BigEndian.PutUint16(frame[14+2:14+4], 0)

	rec := Decode(frame, ts)

	require.NotNil(t, rec.Network)
	assert.Equal(t, 0, rec.Network.PacketSize)
	require.NotNil(t, rec.Transport)
	assert.Equal(t, types.TransportTCP, rec.Transport.Protocol)
	assert.Equal(t, uint16(443), rec.Transport.DestPort)
}

func TestDecodeIPv6EmptyPayload(t *testing.T) {
	frame := testframes.IPv6Proto(layers.IPProtocolNoNextHeader, nil)
	require.Zero(t, binary.BigEndian.Uint16(frame[14+4:14+6]))

	rec := Decode(frame, ts)

	require.NotNil(t, rec.Link)
	require.NotNil(t, rec.Network)
	assert.Equal(t, types.NetworkIPv6, rec.Network.Protocol)
	assert.Equal(t, "2001:db8::1", rec.Network.SourceIP.String())
	assert.Equal(t, "2001:db8::2", rec.Network.DestIP.String())
	assert.Equal(t, uint8(59), rec.Network.ProtocolNumber)
	assert.Equal(t, 0, rec.Network.PacketSize)

	require.NotNil(t, rec.Transport)
	assert.Equal(t, types.TransportOther, rec.Transport.Protocol)
}

func TestDecodeARP(t *testing.T) {
	rec := Decode(testframes.ARP(), ts)

	require.NotNil(t, rec.Link)
	assert.Equal(t, "0x0806", rec.Link.EtherTypeString())
	assert.Nil(t, rec.Network, "ARP has no IP layer")
	require.NotNil(t, rec.Transport)
	assert.Equal(t, types.TransportARP, rec.Transport.Protocol)
	assert.Zero(t, rec.Transport.SourcePort)
	assert.Zero(t, rec.Transport.DestPort)
}

func TestDecodeTransportClassification(t *testing.T) {
	tests := []struct {
		name      string
		frame     []byte
		wantProto types.TransportProtocol
		wantNum   uint8
	}{
		{"icmp", testframes.IPv4ICMP(), types.TransportICMP, 1},
		{"gre is other", testframes.IPv4Proto(layers.IPProtocolGRE, testframes.Payload(8)), types.TransportOther, 47},
		{"igmp is other", testframes.IPv4Proto(layers.IPProtocolIGMP, testframes.Payload(8)), types.TransportOther, 2},
		{"icmpv6 is other", testframes.IPv6Proto(layers.IPProtocolICMPv6, testframes.Payload(8)), types.TransportOther, 58},
		{"ipv6 tcp", testframes.IPv6TCP(1234, 80, nil), types.TransportTCP, 6},
		{"ipv4 udp", testframes.IPv4UDP(68, 67, testframes.Payload(4)), types.TransportUDP, 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Decode(tt.frame, ts)
			require.NotNil(t, rec.Network)
			require.NotNil(t, rec.Transport)
			assert.Equal(t, tt.wantNum, rec.Network.ProtocolNumber)
			assert.Equal(t, tt.wantProto, rec.Transport.Protocol)
			if tt.wantProto != types.TransportTCP && tt.wantProto != types.TransportUDP {
				assert.Zero(t, rec.Transport.SourcePort)
				assert.Zero(t, rec.Transport.DestPort)
			}
		})
	}
}

func TestDecodeProtocolZeroHasNoTransport(t *testing.T) {
	rec := Decode(testframes.IPv4Proto(layers.IPProtocol(0), testframes.Payload(8)), ts)
	require.NotNil(t, rec.Network)
	assert.Zero(t, rec.Network.ProtocolNumber)
	assert.Nil(t, rec.Transport)
}

func TestDecodeShortFrame(t *testing.T) {
	for _, n := range []int{0, 1, 13} {
		rec := Decode(make([]byte, n), ts)
		assert.Nil(t, rec.Link, "len %d", n)
		assert.Nil(t, rec.Network, "len %d", n)
		assert.Nil(t, rec.Transport, "len %d", n)
		assert.Equal(t, ts, rec.Timestamp)
	}
}

func TestDecodeTruncatedIPHeader(t *testing.T) {
	frame := testframes.IPv4TCP(1, 2, nil)
	rec := Decode(frame[:14+10], ts)

	require.NotNil(t, rec.Link)
	assert.Equal(t, 24, rec.Link.FrameSize)
	assert.Nil(t, rec.Network)
	assert.Nil(t, rec.Transport)
}

func TestDecodeTruncatedTransport(t *testing.T) {
	frame := testframes.IPv4TCP(40000, 22, nil)

	t.Run("ports survive a short snap length", func(t *testing.T) {
		rec := Decode(frame[:14+20+6], ts)
		require.NotNil(t, rec.Transport)
		assert.Equal(t, types.TransportTCP, rec.Transport.Protocol)
		assert.Equal(t, uint16(40000), rec.Transport.SourcePort)
		assert.Equal(t, uint16(22), rec.Transport.DestPort)
	})

	t.Run("no port fields falls back to other", func(t *testing.T) {
		rec := Decode(frame[:14+20+2], ts)
		require.NotNil(t, rec.Transport)
		assert.Equal(t, types.TransportOther, rec.Transport.Protocol)
		assert.Zero(t, rec.Transport.SourcePort)
	})
}

func TestDecodeUnknownEtherType(t *testing.T) {
	frame := testframes.IPv4TCP(1, 2, nil)
	binary.BigEndian.PutUint16(frame[12:14], 0x88cc) // LLDP

	rec := Decode(frame, ts)
	require.NotNil(t, rec.Link)
	assert.Equal(t, "0x88cc", rec.Link.EtherTypeString())
	assert.Nil(t, rec.Network)
	assert.Nil(t, rec.Transport)
}

func TestDecodeIsPure(t *testing.T) {
	frames := [][]byte{
		testframes.ARP(),
		testframes.IPv4TCP(1, 2, testframes.Payload(10)),
		testframes.IPv6UDP(3, 4, testframes.Payload(10)),
	}
	for _, frame := range frames {
		first := Decode(frame, ts)
		second := Decode(frame, ts)
		assert.Equal(t, first, second)
	}
}

func TestDecodeDoesNotRetainBuffer(t *testing.T) {
	frame := testframes.IPv4TCP(1, 2, nil)
	rec := Decode(frame, ts)

	for i := range frame {
		frame[i] = 0xff
	}
	assert.Equal(t, "00:1a:2b:0c:4d:5e", rec.Link.SourceMACString())
	assert.Equal(t, "192.168.1.10", rec.Network.SourceIP.String())
}
