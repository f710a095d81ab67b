package minecraft

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ReadVarInt reads a base-128 little-endian integer with continuation bit
// from r. A value still continuing after 5 bytes is rejected with
// ErrVarIntTooBig once its sixth byte has been read.
func ReadVarInt(r io.ByteReader) (int, error) {
	var numRead int
	var result int
	for {
		read, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int(read&0x7F) << (7 * numRead)

		numRead++
		if numRead > 5 {
			return 0, ErrVarIntTooBig
		}

		if read&0x80 == 0 {
			break
		}
	}
	return result, nil
}

// WriteVarInt writes value to w in VarInt encoding.
func WriteVarInt(w io.Writer, value int) error {
	ux := uint32(value)
	for {
		temp := byte(ux & 0x7F)
		ux >>= 7
		if ux != 0 {
			temp |= 0x80
		}
		if _, err := w.Write([]byte{temp}); err != nil {
			return err
		}
		if ux == 0 {
			return nil
		}
	}
}

// WriteString writes a VarInt-length-prefixed UTF-8 string to w.
func WriteString(w io.Writer, s string) error {
	b := []byte(s)
	if err := WriteVarInt(w, len(b)); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadString reads a VarInt-length-prefixed UTF-8 string from r, enforcing
// MaxStringLen.
func ReadString(r io.Reader) (string, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReaderAdapter{r: r}
	}

	length, err := ReadVarInt(br)
	if err != nil {
		return "", err
	}
	if length < 0 || length > MaxStringLen {
		return "", ErrStringTooLong
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

type byteReaderAdapter struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReaderAdapter) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

// Fixed-width primitives are big-endian on the wire.

func WriteBool(w io.Writer, v bool) error {
	b := byte(0x00)
	if v {
		b = 0x01
	}
	_, err := w.Write([]byte{b})
	return err
}

func WriteByte(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	return err
}

func WriteShort(w io.Writer, v uint16) error {
	return binary.Write(w, binary.BigEndian, v)
}

func WriteInt(w io.Writer, v int32) error {
	return binary.Write(w, binary.BigEndian, v)
}

func WriteLong(w io.Writer, v int64) error {
	return binary.Write(w, binary.BigEndian, v)
}

func WriteFloat(w io.Writer, v float32) error {
	return binary.Write(w, binary.BigEndian, v)
}

func WriteDouble(w io.Writer, v float64) error {
	return binary.Write(w, binary.BigEndian, v)
}

func ReadLong(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

// WritePacket frames body as `VarInt(total) || VarInt(id) || body` and
// writes it to w in a single Write call, so concurrent packet writers never
// interleave frames.
func WritePacket(w io.Writer, packetID int, body []byte) error {
	inner := new(bytes.Buffer)
	if err := WriteVarInt(inner, packetID); err != nil {
		return err
	}
	inner.Write(body)

	frame := new(bytes.Buffer)
	if err := WriteVarInt(frame, inner.Len()); err != nil {
		return err
	}
	inner.WriteTo(frame)

	if _, err := w.Write(frame.Bytes()); err != nil {
		return fmt.Errorf("writing packet 0x%02X: %s", packetID, err)
	}
	return nil
}

// ReadFrame reads one length-prefixed packet frame (id plus body) from r.
// The length prefix itself is stripped. Frames longer than MaxPacketLen or
// with a negative length are rejected.
func ReadFrame(r io.Reader) ([]byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReaderAdapter{r: r}
	}

	length, err := ReadVarInt(br)
	if err != nil {
		return nil, err
	}
	if length < 0 || length > MaxPacketLen {
		return nil, fmt.Errorf("frame length %d out of bounds", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
