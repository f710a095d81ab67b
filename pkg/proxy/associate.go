package proxy

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"mcveil/pkg/config"
	"mcveil/pkg/semaphore"
	"mcveil/pkg/socks"
)

const (
	// udpExchangeTimeout bounds the wait for the remote end's answer to
	// one relayed datagram.
	udpExchangeTimeout = 10 * time.Second

	// maxDatagramStreams bounds concurrent datagram exchanges so a flood
	// of datagrams cannot exhaust the session's streams.
	maxDatagramStreams = 64

	maxDatagramSize = 65535
)

// handleAssociate binds a local UDP relay and forwards each datagram as
// its own tunnel stream carrying a "udp:"-prefixed destination. The TCP
// control connection pins the relay's lifetime: when it closes, so does
// the relay.
func (srv *SOCKS) handleAssociate(conn net.Conn) error {
	listenerFn := config.GetPacketListenerFunc(srv.cfg.Deps)
	relay, err := listenerFn("udp", "127.0.0.1:0")
	if err != nil {
		if werr := socks.WriteReplyError(conn, socks.ReplyGeneralFailure); werr != nil {
			return fmt.Errorf("writing Reply error response: %s", werr)
		}
		return fmt.Errorf("binding UDP relay: %s", err)
	}
	defer relay.Close()

	if err := socks.WriteReplySuccess(conn, relay.LocalAddr()); err != nil {
		return fmt.Errorf("socks.WriteReplySuccess(): %s", err)
	}

	// the TCP control connection going away ends the association
	go func() {
		io.Copy(io.Discard, conn)
		relay.Close()
	}()

	sem := semaphore.New(maxDatagramStreams, udpExchangeTimeout)

	buf := make([]byte, maxDatagramSize)
	for {
		n, clientAddr, err := relay.ReadFrom(buf)
		if err != nil {
			return nil // relay closed, normal shutdown
		}

		req, err := socks.ReadUDPDatagram(buf[:n])
		if err != nil {
			// fragmented or malformed datagrams are dropped
			srv.cfg.Logger.Debugw("dropping datagram", "err", err)
			continue
		}

		payload := make([]byte, len(req.Data))
		copy(payload, req.Data)

		go func(dest string, payload []byte, clientAddr net.Addr) {
			if err := sem.Acquire(srv.ctx); err != nil {
				return
			}
			defer sem.Release()

			if err := srv.exchangeDatagram(relay, clientAddr, dest, payload); err != nil {
				srv.cfg.Logger.Debugw("datagram exchange failed", "dest", dest, "err", err)
			}
		}(req.Dest(), payload, clientAddr)
	}
}

// exchangeDatagram performs one request/response round trip over a fresh
// tunnel stream: u16-length-prefixed payload out, u16-length-prefixed
// response back, then the stream closes.
func (srv *SOCKS) exchangeDatagram(relay net.PacketConn, clientAddr net.Addr, dest string, payload []byte) error {
	stream, err := srv.tunnel.OpenStream("udp:" + dest)
	if err != nil {
		return fmt.Errorf("opening stream: %s", err)
	}
	defer stream.Close()

	if err := binary.Write(stream, binary.BigEndian, uint16(len(payload))); err != nil {
		return fmt.Errorf("writing length: %s", err)
	}
	if _, err := stream.Write(payload); err != nil {
		return fmt.Errorf("writing payload: %s", err)
	}

	stream.SetReadDeadline(time.Now().Add(udpExchangeTimeout))

	var respLen uint16
	if err := binary.Read(stream, binary.BigEndian, &respLen); err != nil {
		return fmt.Errorf("reading response length: %s", err)
	}

	resp := make([]byte, respLen)
	if _, err := io.ReadFull(stream, resp); err != nil {
		return fmt.Errorf("reading response: %s", err)
	}

	if _, err := relay.WriteTo(socks.WrapUDPReply(resp), clientAddr); err != nil {
		return fmt.Errorf("relaying response: %s", err)
	}

	return nil
}
