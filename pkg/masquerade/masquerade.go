// Package masquerade turns a TCP connection to the tunnel server into a
// byte-duplex channel disguised as a Minecraft Java Edition session.
//
// Outbound application bytes are buffered, sealed with AES-256-GCM and
// emitted as serverbound Plugin Message packets on the "minecraft:brand"
// channel. Inbound application bytes are recovered from clientbound Chunk
// Data packets. Keep-alives are echoed immediately and a background noise
// goroutine moves the fake player around so the socket is never silent.
package masquerade

import "sync/atomic"

// Counters accumulates plaintext traffic totals across sessions.
type Counters struct {
	Tx atomic.Int64 // bytes sealed into plugin messages
	Rx atomic.Int64 // bytes recovered from chunk data
}

// Reset zeroes both totals.
func (c *Counters) Reset() {
	if c == nil {
		return
	}
	c.Tx.Store(0)
	c.Rx.Store(0)
}

func (c *Counters) addTx(n int) {
	if c != nil {
		c.Tx.Add(int64(n))
	}
}

func (c *Counters) addRx(n int) {
	if c != nil {
		c.Rx.Add(int64(n))
	}
}
