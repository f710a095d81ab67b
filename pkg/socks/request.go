package socks

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/netip"

	"mcveil/pkg/format"
)

// ################### Request ######################### //
//
// https://datatracker.ietf.org/doc/html/rfc1928#section-4
//
//        +----+-----+-------+------+----------+----------+
//        |VER | CMD |  RSV  | ATYP | DST.ADDR | DST.PORT |
//        +----+-----+-------+------+----------+----------+
//        | 1  |  1  | X'00' |  1   | Variable |    2     |
//        +----+-----+-------+------+----------+----------+

// Request is a SOCKS request in which a client specifies the command as well as destination host and port
type Request struct {
	Ver     byte
	Cmd     Cmd
	DstAddr Addr
	DstPort int
}

// Dest returns the destination as "host:port", bracketing IPv6 literals.
func (r *Request) Dest() string {
	return format.Addr(r.DstAddr.String(), r.DstPort)
}

// ReadRequest reads a complete SOCKS request from r
func ReadRequest(r io.Reader) (*Request, error) {
	var out Request

	b := []byte{0}
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("parsing version: %s", err)
	}
	out.Ver = b[0]

	if out.Ver != VersionSocks5 {
		return nil, fmt.Errorf("requested version was %d but only SOCKS5 (%d) supported", out.Ver, VersionSocks5)
	}

	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("parsing command: %s", err)
	}

	switch b[0] {
	case byte(CommandConnect):
		out.Cmd = CommandConnect
	case byte(CommandAssociate):
		out.Cmd = CommandAssociate
	default:
		return nil, ErrCommandNotSupported
	}

	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("parsing reserved (RSV): %s", err)
	}
	if b[0] != RSV {
		return nil, fmt.Errorf("parsing reserved (RSV): unexpected value: %x != %x", b, RSV)
	}

	addr, port, err := parseAddrAndPort(r)
	if err != nil {
		return nil, err
	}
	out.DstAddr = addr
	out.DstPort = int(port)

	return &out, nil
}

func parseAddrAndPort(r io.Reader) (address Addr, port uint16, err error) {
	b := []byte{0}

	if _, err := io.ReadFull(r, b); err != nil {
		return nil, 0, fmt.Errorf("parsing address type: %s", err)
	}

	switch b[0] {
	case byte(AddressTypeIPv4):
		ip, err := readIPv4(r)
		if err != nil {
			return nil, 0, fmt.Errorf("reading IPv4 address: %s", err)
		}
		address = addrIPv4{IP: ip}
	case byte(AddressTypeFQDN):
		fqdn, err := readFQDN(r)
		if err != nil {
			return nil, 0, fmt.Errorf("reading FQDN address: %s", err)
		}
		address = addrFQDN{FQDN: fqdn}
	case byte(AddressTypeIPv6):
		ip, err := readIPv6(r)
		if err != nil {
			return nil, 0, fmt.Errorf("reading IPv6 address: %s", err)
		}
		address = addrIPv6{IP: ip}
	default:
		return nil, 0, ErrAddressTypeNotSupported
	}

	p := make([]byte, 2)
	if _, err := io.ReadFull(r, p); err != nil {
		return nil, 0, fmt.Errorf("reading port: %s", err)
	}
	port = binary.BigEndian.Uint16(p)

	return address, port, nil
}

func readIPv4(r io.Reader) (netip.Addr, error) {
	ip := make([]byte, 4) // IPv4
	if _, err := io.ReadFull(r, ip); err != nil {
		return netip.Addr{}, fmt.Errorf("reading ip: %s", err)
	}

	return netip.AddrFrom4(([4]byte)(ip)), nil
}

func readIPv6(r io.Reader) (netip.Addr, error) {
	ip := make([]byte, 16) // IPv6
	if _, err := io.ReadFull(r, ip); err != nil {
		return netip.Addr{}, fmt.Errorf("reading ip: %s", err)
	}

	return netip.AddrFrom16(([16]byte)(ip)), nil
}

func readFQDN(r io.Reader) (string, error) {
	size := []byte{0}
	if _, err := io.ReadFull(r, size); err != nil {
		return "", fmt.Errorf("parsing FQDN size: %s", err)
	}

	fqdn := make([]byte, int(size[0]))
	if _, err := io.ReadFull(r, fqdn); err != nil {
		return "", fmt.Errorf("reading FQDN of size %d: %s", len(fqdn), err)
	}

	return string(fqdn), nil
}

// ######## Response ######## //
//
// https://datatracker.ietf.org/doc/html/rfc1928#section-4
//
//        +----+-----+-------+------+----------+----------+
//        |VER | REP |  RSV  | ATYP | BND.ADDR | BND.PORT |
//        +----+-----+-------+------+----------+----------+
//        | 1  |  1  | X'00' |  1   | Variable |    2     |
//        +----+-----+-------+------+----------+----------+

// Reply is the server's response to the Request.
// In Rep, the server indicates if the connection is a success, or what kind of error was encountered.
// It also communicates host and port values, whose meaning depends on the command previously selected by the client.
type Reply struct {
	Ver     byte
	Rep     Rep
	BndAddr Addr
	BndPort int
}

func (r Reply) atyp() Atyp {
	if r.BndAddr != nil {
		return r.BndAddr.Atyp()
	}

	return 0x0 // not a valid atyp, interpret zero as error
}

func (r Reply) serialize() []byte {
	var out []byte

	out = append(out, VersionSocks5, byte(r.Rep), RSV, byte(r.atyp()))
	out = append(out, r.BndAddr.Bytes()...)
	out = append(out, byte(r.BndPort>>8), byte(r.BndPort))

	return out
}

// WriteReplySuccess writes a success reply carrying the bound address.
// For CONNECT through the tunnel there is no meaningful bound address, so
// callers pass nil and get the all-zero IPv4 form.
func WriteReplySuccess(w io.Writer, localAddr net.Addr) error {
	if localAddr == nil {
		return writeReply(w, ReplySuccess, addrIPv4{IP: netip.IPv4Unspecified()}, 0)
	}

	udpAddr, ok := localAddr.(*net.UDPAddr)
	tcpAddr, tok := localAddr.(*net.TCPAddr)

	var ip net.IP
	var port int
	switch {
	case ok:
		ip, port = udpAddr.IP, udpAddr.Port
	case tok:
		ip, port = tcpAddr.IP, tcpAddr.Port
	default:
		return fmt.Errorf("address has unexpected type, neither TCP nor UDP: %s", localAddr)
	}

	if v4 := ip.To4(); v4 != nil {
		return writeReply(w, ReplySuccess, addrIPv4{IP: netip.AddrFrom4(([4]byte)(v4))}, port)
	}
	if v16 := ip.To16(); v16 != nil {
		return writeReply(w, ReplySuccess, addrIPv6{IP: netip.AddrFrom16(([16]byte)(v16))}, port)
	}

	return fmt.Errorf("IP %s was neither IPv4 nor IPv6", ip)
}

// WriteReplyError writes a complete error reply to w.
// The error code is contained in rep.
func WriteReplyError(w io.Writer, rep Rep) error {
	return writeReply(w, rep, addrIPv4{IP: netip.IPv4Unspecified()}, 0)
}

func writeReply(w io.Writer, rep Rep, bndAddr Addr, bndPort int) error {
	resp := Reply{
		Ver:     VersionSocks5,
		Rep:     rep,
		BndAddr: bndAddr,
		BndPort: bndPort,
	}

	_, err := w.Write(resp.serialize())
	if err != nil {
		return fmt.Errorf("writing serialized reply: %s", err)
	}

	return nil
}
