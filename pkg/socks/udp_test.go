package socks

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadUDPDatagram(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []byte
		wantDest string
		wantData []byte
		wantErr  bool
	}{
		{
			name:     "IPv4 destination",
			input:    []byte{0, 0, 0, 0x01, 8, 8, 8, 8, 0x00, 0x35, 0xDE, 0xAD},
			wantDest: "8.8.8.8:53",
			wantData: []byte{0xDE, 0xAD},
		},
		{
			name:     "domain destination",
			input:    append(append([]byte{0, 0, 0, 0x03, 7}, []byte("dns.com")...), 0x00, 0x35, 0x01),
			wantDest: "dns.com:53",
			wantData: []byte{0x01},
		},
		{
			name: "IPv6 destination",
			input: append(append([]byte{0, 0, 0, 0x04},
				0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1), 0x00, 0x35, 0xFF),
			wantDest: "[2001:db8::1]:53",
			wantData: []byte{0xFF},
		},
		{
			name:    "non-zero RSV",
			input:   []byte{1, 0, 0, 0x01, 8, 8, 8, 8, 0x00, 0x35},
			wantErr: true,
		},
		{
			name:    "too short",
			input:   []byte{0, 0, 0, 0x01},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req, err := ReadUDPDatagram(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatal("ReadUDPDatagram() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadUDPDatagram(): %s", err)
			}

			if got := req.Dest(); got != tc.wantDest {
				t.Errorf("Dest() = %q, want %q", got, tc.wantDest)
			}
			if !bytes.Equal(req.Data, tc.wantData) {
				t.Errorf("Data = %x, want %x", req.Data, tc.wantData)
			}
		})
	}
}

func TestReadUDPDatagram_Fragmented(t *testing.T) {
	t.Parallel()

	input := []byte{0, 0, 1, 0x01, 8, 8, 8, 8, 0x00, 0x35, 0xAA}
	if _, err := ReadUDPDatagram(input); !errors.Is(err, ErrFragmentationNotSupported) {
		t.Errorf("ReadUDPDatagram() error = %v, want ErrFragmentationNotSupported", err)
	}
}

func TestWrapUDPReply(t *testing.T) {
	t.Parallel()

	payload := []byte{0xCA, 0xFE}
	got := WrapUDPReply(payload)

	want := []byte{0, 0, 0, 0x01, 0, 0, 0, 0, 0, 0, 0xCA, 0xFE}
	if !bytes.Equal(got, want) {
		t.Errorf("WrapUDPReply() = %x, want %x", got, want)
	}
}
