package socks

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"mcveil/pkg/format"
)

// ################### Request ######################### //
//
// https://datatracker.ietf.org/doc/html/rfc1928#section-7
//
//      +----+------+------+----------+----------+----------+
//      |RSV | FRAG | ATYP | DST.ADDR | DST.PORT |   DATA   |
//      +----+------+------+----------+----------+----------+
//      | 2  |  1   |  1   | Variable |    2     | Variable |
//      +----+------+------+----------+----------+----------+

// UDPRequest represents a SOCKS5 UDP datagram as defined in RFC 1928 section 7.
type UDPRequest struct {
	Frag    byte
	DstAddr Addr
	DstPort uint16
	Data    []byte
}

func (r *UDPRequest) String() string {
	return fmt.Sprintf("Datagram[%d|%s:%d|%d bytes]", r.Frag, r.DstAddr, r.DstPort, len(r.Data)) // just for debugging
}

// Dest returns the datagram destination as "host:port".
func (r *UDPRequest) Dest() string {
	return format.Addr(r.DstAddr.String(), int(r.DstPort))
}

// ReadUDPDatagram parses a SOCKS5 UDP datagram from the provided byte slice.
// Fragmented datagrams are rejected with ErrFragmentationNotSupported.
func ReadUDPDatagram(data []byte) (*UDPRequest, error) {
	var out UDPRequest

	if len(data) < 10 {
		return nil, fmt.Errorf("datagram of %d bytes is shorter than the minimal header", len(data))
	}

	if data[0] != 0 || data[1] != 0 {
		return nil, fmt.Errorf("RSV must be zero but was %x", data[:2])
	}

	out.Frag = data[2]
	if out.Frag != 0 {
		return nil, ErrFragmentationNotSupported
	}

	atyp := data[3]

	var addrLen int
	switch atyp {
	case byte(AddressTypeIPv4):
		addrLen = 4
		ip, err := readIPv4(bytes.NewReader(data[4:]))
		if err != nil {
			return nil, err
		}
		out.DstAddr = addrIPv4{IP: ip}
	case byte(AddressTypeFQDN):
		addrLen = int(data[4])
		if len(data) < 5+addrLen+2 {
			return nil, fmt.Errorf("datagram truncated inside FQDN")
		}
		out.DstAddr = addrFQDN{FQDN: string(data[5 : 5+addrLen])}

		addrLen++ // first octet was the length of the domain name, account for that when getting offset to data
	case byte(AddressTypeIPv6):
		addrLen = 16
		if len(data) < 4+16+2 {
			return nil, fmt.Errorf("datagram truncated inside IPv6 address")
		}
		ip, err := readIPv6(bytes.NewReader(data[4:]))
		if err != nil {
			return nil, err
		}
		out.DstAddr = addrIPv6{IP: ip}
	default:
		return nil, fmt.Errorf("unexpected ATYP %x", atyp)
	}

	if len(data) < 4+addrLen+2 {
		return nil, fmt.Errorf("datagram truncated before port")
	}
	out.DstPort = binary.BigEndian.Uint16(data[4+addrLen : 4+addrLen+2])
	out.Data = data[4+addrLen+2:]

	return &out, nil
}

// FRAG is the fragment field value for non-fragmented datagrams.
const FRAG = byte(0x0)

// udpReplyHeader is the minimal header prepended to datagrams relayed back
// to the client: RSV, FRAG, ATYP IPv4 and an all-zero address and port. The
// true source address is not communicated; local resolvers do not care.
var udpReplyHeader = []byte{RSV, RSV, FRAG, byte(AddressTypeIPv4), 0, 0, 0, 0, 0, 0}

// WrapUDPReply prepends the zero reply header to a payload relayed back to
// the SOCKS client.
func WrapUDPReply(payload []byte) []byte {
	out := make([]byte, 0, len(udpReplyHeader)+len(payload))
	out = append(out, udpReplyHeader...)
	out = append(out, payload...)
	return out
}
