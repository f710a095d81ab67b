package masquerade

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strconv"

	"mcveil/pkg/minecraft"
)

// Status performs a status-state handshake on conn and returns the server's
// raw status JSON (MOTD, icon, player counts). addr is the host:port that
// was dialed; unlike Login, the status handshake announces the real target.
func Status(conn net.Conn, addr string) (string, error) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("net.SplitHostPort(%s): %s", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = handshakePort
	}

	buf := new(bytes.Buffer)
	minecraft.WriteVarInt(buf, -1) // protocol version: unknown
	minecraft.WriteString(buf, host)
	minecraft.WriteShort(buf, uint16(port))
	minecraft.WriteVarInt(buf, 1) // next state: status
	if err := minecraft.WritePacket(conn, minecraft.IDHandshake, buf.Bytes()); err != nil {
		return "", fmt.Errorf("writing handshake: %s", err)
	}

	if err := minecraft.WritePacket(conn, 0x00, nil); err != nil {
		return "", fmt.Errorf("writing status request: %s", err)
	}

	reader := bufio.NewReader(conn)
	if _, err := minecraft.ReadVarInt(reader); err != nil {
		return "", fmt.Errorf("reading response length: %s", err)
	}
	packetID, err := minecraft.ReadVarInt(reader)
	if err != nil {
		return "", fmt.Errorf("reading response id: %s", err)
	}
	if packetID != 0x00 {
		return "", fmt.Errorf("unexpected status response id %#x", packetID)
	}

	status, err := minecraft.ReadString(reader)
	if err != nil {
		return "", fmt.Errorf("reading status JSON: %s", err)
	}

	return status, nil
}
