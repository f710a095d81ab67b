// Package minecraft implements the subset of the Minecraft Java Edition
// wire format the masquerade speaks: variable-length integers, strings,
// fixed-width primitives and length-prefixed packet frames. The dialect is
// the uncompressed, unencrypted one used before a server's compression
// threshold is crossed.
package minecraft

import "errors"

// ProtocolVersion is the Minecraft protocol version announced in the
// handshake. The chunk-data layout parsed by the reader is a constant of
// this version.
const ProtocolVersion = 773

// MaxPacketLen bounds the length prefix of an inbound packet frame.
// Anything larger tears the session down.
const MaxPacketLen = 2097152

// MaxStringLen bounds the byte length of a string read off the wire.
const MaxStringLen = 32773

// Serverbound packet ids.
const (
	IDHandshake      = 0x00
	IDLoginStart     = 0x00
	IDClientSettings = 0x08
	IDPluginMessage  = 0x0D
	IDPlayerPosition = 0x14
	IDKeepAliveReply = 0x15
)

// Clientbound packet ids.
const (
	IDKeepAlive = 0x24
	IDChunkData = 0x25
)

// ErrVarIntTooBig is returned when a VarInt uses more than 5 bytes.
var ErrVarIntTooBig = errors.New("varint is too big")

// ErrStringTooLong is returned when a string length prefix exceeds MaxStringLen.
var ErrStringTooLong = errors.New("string too long")
