// Package server manages individual WebSocket connections, handling the
// read/write pumps, rate limiting, and lifecycle control for each one.
package server

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// pongWait is how long a connection may stay silent before the read
	// side gives up on it.
	pongWait = 60 * time.Second

	// pingPeriod is the keepalive interval; it must be shorter than pongWait.
	pingPeriod = 54 * time.Second

	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second

	// outboundBuffer is the per-connection queue of frames awaiting the
	// write pump.
	outboundBuffer = 256
)

// connection wraps one WebSocket and the channels bridging it to the relay
// core: frames carries raw inbound frames to the router, outbound carries
// encoded events back to the client.
type connection struct {
	id       string
	ws       *websocket.Conn
	outbound chan []byte
	frames   chan []byte

	limiter   *rateLimiter
	rateLimit RateLimitConfig
	maxSize   int64
	log       zerolog.Logger
}

func newConnection(id string, ws *websocket.Conn, cfg *Config, log zerolog.Logger) *connection {
	ws.SetReadLimit(cfg.MaxMessageSize)

	return &connection{
		id:        id,
		ws:        ws,
		outbound:  make(chan []byte, outboundBuffer),
		frames:    make(chan []byte),
		limiter:   newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit: cfg.RateLimit,
		maxSize:   cfg.MaxMessageSize,
		log:       log.With().Str("conn", id).Logger(),
	}
}

func (c *connection) setupRead() {
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error().Err(err).Msg("setting initial read deadline")
	}
	c.ws.SetPongHandler(func(string) error {
		if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Error().Err(err).Msg("setting read deadline in pong handler")
		}
		return nil
	})
}

// readPump feeds raw frames from the socket into the frames channel until
// the client disconnects, then closes the channel to signal the router.
// Frames over the rate limit are discarded here, before they cost anything.
func (c *connection) readPump() {
	defer func() {
		close(c.frames)
		if err := c.ws.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Error().Err(err).Msg("closing connection in readPump")
		}
	}()

	c.setupRead()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.allow() {
			c.log.Warn().Int("burst", c.rateLimit.Burst).
				Dur("interval", c.rateLimit.RefillInterval).
				Msg("rate limit exceeded; discarding frame")
			continue
		}

		c.frames <- raw
	}
}

// writePump drains the outbound channel onto the socket, one WebSocket text
// message per frame, and keeps the connection alive with pings. It exits
// when the outbound channel is closed or a write fails.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.ws.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Error().Err(err).Msg("closing connection in writePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.outbound:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("setting write deadline")
				return
			}
			if !ok {
				if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					c.log.Error().Err(err).Msg("writing close message")
				}
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Error().Err(err).Msg("writing frame")
				}
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("setting write deadline for ping")
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Error().Err(err).Msg("writing ping")
				}
				return
			}
		}
	}
}

// logReadError distinguishes routine disconnects from genuine failures.
func (c *connection) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Int64("max_bytes", c.maxSize).Msg("frame exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug().Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Debug().Err(err).Msg("connection closed")
	default:
		c.log.Warn().Err(err).Msg("websocket read error")
	}
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
