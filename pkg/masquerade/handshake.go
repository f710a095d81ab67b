package masquerade

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"time"

	"mcveil/pkg/crypto"
	"mcveil/pkg/minecraft"
)

const (
	// handshakeHost and handshakePort are what the client announces in the
	// handshake, regardless of the address actually dialed. 25565 is the
	// vanilla default port.
	handshakeHost = "127.0.0.1"
	handshakePort = 25565

	// loginReadTimeout bounds the wait for the server's login responses.
	loginReadTimeout = 15 * time.Second

	// loginResponsePackets is how many packets the server sends after
	// LoginStart before plugin messages may flow: login-success and the
	// first configuration/play packet. Bodies are discarded unread.
	loginResponsePackets = 2

	tcpKeepAlivePeriod = 30 * time.Second
)

// Login performs the Minecraft login handshake on conn, authenticating as
// the masquerade player derived from password. It returns a buffered reader
// positioned after the server's login responses; the caller must keep using
// it for all subsequent reads from conn.
//
// Up to the returned point the traffic is byte-for-byte what a vanilla
// client produces, so a DPI observer sees an ordinary player joining.
func Login(conn net.Conn, password string) (*bufio.Reader, error) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(tcpKeepAlivePeriod)
	}

	buf := new(bytes.Buffer)
	minecraft.WriteVarInt(buf, minecraft.ProtocolVersion)
	minecraft.WriteString(buf, handshakeHost)
	minecraft.WriteShort(buf, handshakePort)
	minecraft.WriteVarInt(buf, 2) // next state: login
	if err := minecraft.WritePacket(conn, minecraft.IDHandshake, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("writing handshake: %s", err)
	}

	buf.Reset()
	minecraft.WriteString(buf, crypto.Username(password))
	if err := minecraft.WritePacket(conn, minecraft.IDLoginStart, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("writing login start: %s", err)
	}

	reader := bufio.NewReader(conn)

	if err := conn.SetReadDeadline(time.Now().Add(loginReadTimeout)); err != nil {
		return nil, fmt.Errorf("conn.SetReadDeadline(): %s", err)
	}
	for i := 0; i < loginResponsePackets; i++ {
		if err := discardFrame(reader); err != nil {
			return nil, fmt.Errorf("reading login response %d: %s", i+1, err)
		}
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("conn.SetReadDeadline(): %s", err)
	}

	buf.Reset()
	minecraft.WriteString(buf, "en_US") // locale
	minecraft.WriteByte(buf, 8)         // view distance
	minecraft.WriteVarInt(buf, 0)       // chat mode: enabled
	minecraft.WriteBool(buf, true)      // chat colors
	minecraft.WriteByte(buf, 0x7F)      // displayed skin parts
	minecraft.WriteVarInt(buf, 1)       // main hand: right
	minecraft.WriteBool(buf, false)     // disable text filtering
	minecraft.WriteBool(buf, true)      // allow server listings
	if err := minecraft.WritePacket(conn, minecraft.IDClientSettings, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("writing client settings: %s", err)
	}

	return reader, nil
}

// discardFrame reads one length-prefixed packet and throws it away.
func discardFrame(r *bufio.Reader) error {
	length, err := minecraft.ReadVarInt(r)
	if err != nil {
		return err
	}
	if length < 0 || length > minecraft.MaxPacketLen {
		return fmt.Errorf("frame length %d out of bounds", length)
	}
	if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
		return err
	}
	return nil
}
