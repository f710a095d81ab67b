package session

import (
	"bytes"
	"crypto/cipher"
	"io"
	"net"
	"testing"

	"mcveil/pkg/crypto"
	"mcveil/pkg/minecraft"

	"github.com/hashicorp/yamux"
)

// fakeTunnelServer speaks the server half of the masquerade on a raw
// connection: plugin messages in, chunk data out, with a yamux server on
// the recovered byte stream. Streams are served by echoing everything after
// the destination string.
type fakeTunnelServer struct {
	t    *testing.T
	raw  net.Conn
	aead cipher.AEAD

	pr *io.PipeReader
	pw *io.PipeWriter
}

func startFakeTunnelServer(t *testing.T, raw net.Conn, password string) *fakeTunnelServer {
	t.Helper()

	aead, err := crypto.NewAEAD(password)
	if err != nil {
		t.Fatalf("crypto.NewAEAD(): %s", err)
	}

	pr, pw := io.Pipe()
	srv := &fakeTunnelServer{t: t, raw: raw, aead: aead, pr: pr, pw: pw}

	go srv.run()

	return srv
}

func (srv *fakeTunnelServer) run() {
	defer srv.pw.Close()

	// login phase: handshake + login start in, two responses out
	for i := 0; i < 2; i++ {
		if _, err := minecraft.ReadFrame(srv.raw); err != nil {
			return
		}
	}
	minecraft.WritePacket(srv.raw, 0x02, []byte{0x00})
	minecraft.WritePacket(srv.raw, 0x29, []byte{0x00})

	mux, err := yamux.Server(&serverChannel{srv: srv}, muxConfig())
	if err != nil {
		srv.t.Errorf("yamux.Server(): %s", err)
		return
	}
	go srv.acceptLoop(mux)

	// steady state: decrypt plugin messages, ignore everything else
	for {
		frame, err := minecraft.ReadFrame(srv.raw)
		if err != nil {
			return
		}

		rd := bytes.NewReader(frame)
		packetID, err := minecraft.ReadVarInt(rd)
		if err != nil {
			continue
		}

		if packetID != minecraft.IDPluginMessage {
			continue
		}

		if _, err := minecraft.ReadString(rd); err != nil {
			continue
		}
		payload := make([]byte, rd.Len())
		io.ReadFull(rd, payload)
		if len(payload) < crypto.NonceSize {
			continue
		}

		plaintext, err := srv.aead.Open(nil, payload[:crypto.NonceSize], payload[crypto.NonceSize:], nil)
		if err != nil {
			continue
		}
		if _, err := srv.pw.Write(plaintext); err != nil {
			return
		}
	}
}

func (srv *fakeTunnelServer) acceptLoop(mux *yamux.Session) {
	for {
		stream, err := mux.Accept()
		if err != nil {
			return
		}
		go func() {
			defer stream.Close()
			if _, err := minecraft.ReadString(stream); err != nil {
				return
			}
			io.Copy(stream, stream) // echo
		}()
	}
}

// serverChannel is the server's view of the obfuscated byte channel:
// reads are decrypted plugin-message payloads, writes become chunk-data
// packets.
type serverChannel struct {
	srv *fakeTunnelServer
}

func (ch *serverChannel) Read(b []byte) (int, error) {
	return ch.srv.pr.Read(b)
}

func (ch *serverChannel) Write(b []byte) (int, error) {
	nonce, err := crypto.NewNonce()
	if err != nil {
		return 0, err
	}
	payload := ch.srv.aead.Seal(nonce, nonce, b, nil)

	body := new(bytes.Buffer)
	body.Write(make([]byte, 8))                // chunk X, Z
	body.Write([]byte{0x0A, 0x00, 0x00, 0x00}) // empty heightmaps compound
	minecraft.WriteVarInt(body, len(payload))
	body.Write(payload)

	if err := minecraft.WritePacket(ch.srv.raw, minecraft.IDChunkData, body.Bytes()); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (ch *serverChannel) Close() error {
	return ch.srv.raw.Close()
}
