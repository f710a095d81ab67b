package masquerade

import (
	"bufio"
	"bytes"
	"crypto/cipher"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"mcveil/pkg/crypto"
	"mcveil/pkg/minecraft"

	"go.uber.org/zap"
)

const (
	// pluginChannel is the plugin-message channel string carrying outbound
	// application data. Its encoded String header is 16 bytes.
	pluginChannel = "minecraft:brand"

	// writeBufCap is the initial capacity of the write buffer.
	writeBufCap = 16 * 1024

	// flushThreshold triggers a synchronous flush when the buffer reaches it.
	flushThreshold = 4 * 1024

	// flushDelay is the deferred-flush timer for small writes.
	flushDelay = 5 * time.Millisecond

	// chunkDataPrefixLen is the fixed header of a chunk-data packet before
	// the heightmaps NBT: chunk X and Z as two big-endian i32. Version 773
	// layout; a protocol bump shifts this.
	chunkDataPrefixLen = 8
)

// Conn is the obfuscated frame channel: a net.Conn whose writes become
// AEAD-sealed plugin messages and whose reads are recovered from chunk-data
// packets by a dedicated reader goroutine.
type Conn struct {
	conn net.Conn
	aead cipher.AEAD
	log  *zap.SugaredLogger

	pr *io.PipeReader
	pw *io.PipeWriter

	// pmu serializes whole packet frames onto the socket; flushes,
	// keep-alive echoes and noise all write through it.
	pmu sync.Mutex

	// mu guards the write buffer and the deferred-flush timer.
	mu         sync.Mutex
	buf        *bytes.Buffer
	flushTimer *time.Timer

	counters *Counters
}

// NewConn wraps conn, which must already have completed Login, and starts
// the reader goroutine. reader is the buffered reader returned by Login.
// counters may be nil.
func NewConn(conn net.Conn, reader *bufio.Reader, aead cipher.AEAD, logger *zap.SugaredLogger, counters *Counters) *Conn {
	pr, pw := io.Pipe()

	c := &Conn{
		conn:     conn,
		aead:     aead,
		log:      logger,
		pr:       pr,
		pw:       pw,
		buf:      bytes.NewBuffer(make([]byte, 0, writeBufCap)),
		counters: counters,
	}

	go c.readLoop(reader)

	return c
}

// Read returns plaintext recovered by the reader goroutine.
func (c *Conn) Read(b []byte) (int, error) {
	return c.pr.Read(b)
}

// Write appends b to the write buffer. The buffer is flushed synchronously
// once it reaches flushThreshold, otherwise a deferred flush fires after
// flushDelay.
func (c *Conn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.buf.Write(b)
	if err != nil {
		return 0, err
	}

	if c.buf.Len() >= flushThreshold {
		if err := c.flushLocked(); err != nil {
			return n, err
		}
	} else if c.flushTimer == nil {
		c.flushTimer = time.AfterFunc(flushDelay, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if err := c.flushLocked(); err != nil {
				c.log.Debugw("deferred flush failed", "err", err)
			}
		})
	}

	return n, nil
}

// flushLocked seals the buffered bytes into exactly one plugin-message
// packet. Callers must hold mu.
func (c *Conn) flushLocked() error {
	if c.flushTimer != nil {
		c.flushTimer.Stop()
		c.flushTimer = nil
	}

	if c.buf.Len() == 0 {
		return nil
	}
	data := c.buf.Bytes()

	nonce, err := crypto.NewNonce()
	if err != nil {
		return fmt.Errorf("crypto.NewNonce(): %s", err)
	}
	sealed := c.aead.Seal(nonce, nonce, data, nil)

	body := new(bytes.Buffer)
	minecraft.WriteString(body, pluginChannel)
	body.Write(sealed)

	if err := c.WritePacket(minecraft.IDPluginMessage, body.Bytes()); err != nil {
		return fmt.Errorf("writing plugin message: %s", err)
	}

	c.counters.addTx(len(data))
	c.buf.Reset()
	return nil
}

// WritePacket frames and writes one Minecraft packet to the socket. It is
// safe for concurrent use; frames never interleave.
func (c *Conn) WritePacket(packetID int, body []byte) error {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	return minecraft.WritePacket(c.conn, packetID, body)
}

// readLoop reads Minecraft packets off the socket until it errors, feeding
// recovered plaintext into the pipe. On exit it closes both the pipe and
// the socket so every reader and the supervisor observe the teardown.
func (c *Conn) readLoop(reader *bufio.Reader) {
	defer c.pw.Close()
	defer c.conn.Close()

	for {
		frame, err := minecraft.ReadFrame(reader)
		if err != nil {
			c.log.Debugw("reader exiting", "err", err)
			return
		}

		rd := bytes.NewReader(frame)
		packetID, err := minecraft.ReadVarInt(rd)
		if err != nil {
			continue
		}
		body := frame[len(frame)-rd.Len():]

		switch packetID {
		case minecraft.IDChunkData:
			if err := c.handleChunkData(body); err != nil {
				c.log.Debugw("reader exiting", "err", err)
				return
			}
		case minecraft.IDKeepAlive:
			if err := c.handleKeepAlive(body); err != nil {
				c.log.Debugw("reader exiting", "err", err)
				return
			}
		default:
			// other play traffic is scenery
		}
	}
}

// handleChunkData extracts an AEAD payload from a chunk-data body and, if
// it authenticates, forwards the plaintext to the pipe. Genuine chunk
// traffic fails authentication and is dropped silently.
func (c *Conn) handleChunkData(body []byte) error {
	if len(body) < chunkDataPrefixLen {
		return nil
	}
	body = body[chunkDataPrefixLen:]

	n, err := minecraft.SkipNBT(body)
	if err != nil {
		return nil
	}
	body = body[n:]

	rd := bytes.NewReader(body)
	payloadLen, err := minecraft.ReadVarInt(rd)
	if err != nil {
		return nil
	}
	body = body[len(body)-rd.Len():]
	if payloadLen < 0 || payloadLen > len(body) {
		return nil
	}
	payload := body[:payloadLen]

	if len(payload) < crypto.NonceSize {
		return nil
	}
	nonce, sealed := payload[:crypto.NonceSize], payload[crypto.NonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		// expected for real chunk data
		return nil
	}

	// count before the pipe write: it unblocks Read, and a reader that
	// looks at the counters afterwards must already see these bytes
	c.counters.addRx(len(plaintext))
	if _, err := c.pw.Write(plaintext); err != nil {
		return fmt.Errorf("pipe write: %s", err)
	}
	return nil
}

// handleKeepAlive echoes the server's keep-alive id right away. Missing the
// echo gets the fake player kicked, which tears the whole channel down.
func (c *Conn) handleKeepAlive(body []byte) error {
	if len(body) < 8 {
		return nil
	}

	id, err := minecraft.ReadLong(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	reply := new(bytes.Buffer)
	minecraft.WriteLong(reply, id)
	if err := c.WritePacket(minecraft.IDKeepAliveReply, reply.Bytes()); err != nil {
		return fmt.Errorf("echoing keep-alive: %s", err)
	}
	return nil
}

// Close stops any pending flush and closes the TCP socket. Unflushed data
// is lost; higher layers see a torn connection and reconnect.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.flushTimer != nil {
		c.flushTimer.Stop()
		c.flushTimer = nil
	}
	c.mu.Unlock()

	return c.conn.Close()
}

func (c *Conn) LocalAddr() net.Addr                { return c.conn.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *Conn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
