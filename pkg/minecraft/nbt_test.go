package minecraft

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// buildHeightmaps builds a named root compound resembling the heightmaps
// blob found in chunk-data packets: two named long arrays.
func buildHeightmaps(t *testing.T) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	buf.WriteByte(tagCompound)
	writeNBTName(buf, "")

	writeLongArray := func(name string, n int) {
		buf.WriteByte(tagLongArray)
		writeNBTName(buf, name)
		binary.Write(buf, binary.BigEndian, int32(n))
		for i := 0; i < n; i++ {
			binary.Write(buf, binary.BigEndian, int64(i))
		}
	}

	writeLongArray("MOTION_BLOCKING", 37)
	writeLongArray("WORLD_SURFACE", 37)
	buf.WriteByte(tagEnd)

	return buf.Bytes()
}

func writeNBTName(buf *bytes.Buffer, name string) {
	binary.Write(buf, binary.BigEndian, uint16(len(name)))
	buf.WriteString(name)
}

func TestSkipNBT_Heightmaps(t *testing.T) {
	t.Parallel()

	blob := buildHeightmaps(t)
	trailer := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := append(append([]byte{}, blob...), trailer...)

	n, err := SkipNBT(data)
	if err != nil {
		t.Fatalf("SkipNBT: %s", err)
	}
	if n != len(blob) {
		t.Errorf("SkipNBT consumed %d bytes, want %d", n, len(blob))
	}
	if !bytes.Equal(data[n:], trailer) {
		t.Errorf("bytes after skip = %x, want %x", data[n:], trailer)
	}
}

func TestSkipNBT_AllScalarTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tagType byte
		payload []byte
	}{
		{name: "byte", tagType: tagByte, payload: []byte{0x7F}},
		{name: "short", tagType: tagShort, payload: []byte{0x01, 0x02}},
		{name: "int", tagType: tagInt, payload: []byte{0, 0, 0, 4}},
		{name: "long", tagType: tagLong, payload: []byte{0, 0, 0, 0, 0, 0, 0, 8}},
		{name: "float", tagType: tagFloat, payload: []byte{0x3F, 0x80, 0, 0}},
		{name: "double", tagType: tagDouble, payload: []byte{0x40, 0x50, 0, 0, 0, 0, 0, 0}},
		{name: "byte array", tagType: tagByteArray, payload: []byte{0, 0, 0, 3, 1, 2, 3}},
		{name: "string", tagType: tagString, payload: []byte{0, 2, 'h', 'i'}},
		{name: "int array", tagType: tagIntArray, payload: []byte{0, 0, 0, 2, 0, 0, 0, 1, 0, 0, 0, 2}},
		{name: "long array", tagType: tagLongArray, payload: []byte{0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 9}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buf := new(bytes.Buffer)
			buf.WriteByte(tc.tagType)
			writeNBTName(buf, "x")
			buf.Write(tc.payload)

			n, err := SkipNBT(buf.Bytes())
			if err != nil {
				t.Fatalf("SkipNBT: %s", err)
			}
			if n != buf.Len() {
				t.Errorf("SkipNBT consumed %d bytes, want %d", n, buf.Len())
			}
		})
	}
}

func TestSkipNBT_ListOfCompounds(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	buf.WriteByte(tagList)
	writeNBTName(buf, "entries")
	buf.WriteByte(tagCompound)
	binary.Write(buf, binary.BigEndian, int32(2))
	for i := 0; i < 2; i++ {
		// unnamed compound payload: one named byte, then end
		buf.WriteByte(tagByte)
		writeNBTName(buf, "v")
		buf.WriteByte(byte(i))
		buf.WriteByte(tagEnd)
	}

	n, err := SkipNBT(buf.Bytes())
	if err != nil {
		t.Fatalf("SkipNBT: %s", err)
	}
	if n != buf.Len() {
		t.Errorf("SkipNBT consumed %d bytes, want %d", n, buf.Len())
	}
}

func TestSkipNBT_EndTag(t *testing.T) {
	t.Parallel()

	n, err := SkipNBT([]byte{tagEnd, 0xFF})
	if err != nil {
		t.Fatalf("SkipNBT: %s", err)
	}
	if n != 1 {
		t.Errorf("SkipNBT consumed %d bytes for TAG_End, want 1", n)
	}
}

func TestSkipNBT_Truncated(t *testing.T) {
	t.Parallel()

	blob := buildHeightmaps(t)
	for _, cut := range []int{0, 1, 2, len(blob) / 2, len(blob) - 1} {
		if _, err := SkipNBT(blob[:cut]); !errors.Is(err, ErrNBTTruncated) {
			t.Errorf("SkipNBT on %d-byte prefix returned %v, want ErrNBTTruncated", cut, err)
		}
	}
}
