package masquerade

import (
	"bytes"
	"context"
	"time"

	"mcveil/pkg/minecraft"
)

const noiseInterval = 1 * time.Second

// Idle stand-around position of the fake player.
const (
	noiseX = 100.5
	noiseY = 64.0
	noiseZ = 100.5
)

// RunNoise sends a Player Position packet once per second until ctx is done
// or a write fails. A tiny clock-derived jitter makes the player drift
// imperceptibly; without this the socket would be silent between
// application bursts, which no real client is.
func RunNoise(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(noiseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jitter := float64(time.Now().UnixNano()%100) / 5000.0

			body := new(bytes.Buffer)
			minecraft.WriteDouble(body, noiseX+jitter)
			minecraft.WriteDouble(body, noiseY)
			minecraft.WriteDouble(body, noiseZ+jitter)
			minecraft.WriteBool(body, true) // on ground

			if err := c.WritePacket(minecraft.IDPlayerPosition, body.Bytes()); err != nil {
				return
			}
		}
	}
}
