// Package server tracks live connections so shutdown can close them in an
// orderly way and wait for their goroutines to finish.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type registry struct {
	mu    sync.Mutex
	conns map[*connection]struct{}
	wg    sync.WaitGroup
	log   zerolog.Logger
}

func newRegistry(log zerolog.Logger) *registry {
	return &registry{
		conns: make(map[*connection]struct{}),
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// add registers a connection and accounts for its goroutines.
func (r *registry) add(c *connection) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	count := len(r.conns)
	r.mu.Unlock()
	r.wg.Add(1)
	r.log.Debug().Str("conn", c.id).Int("total", count).Msg("connection registered")
}

// remove drops a connection once its pumps and router have all returned.
func (r *registry) remove(c *connection) {
	r.mu.Lock()
	if _, ok := r.conns[c]; ok {
		delete(r.conns, c)
		r.wg.Done()
	}
	count := len(r.conns)
	r.mu.Unlock()
	r.log.Debug().Str("conn", c.id).Int("total", count).Msg("connection unregistered")
}

// Shutdown closes every live connection and waits for their teardown to
// complete, up to the timeout.
func (r *registry) Shutdown(timeout time.Duration) error {
	r.mu.Lock()
	conns := make([]*connection, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	r.log.Info().Int("connections", len(conns)).Msg("closing client connections")
	for _, c := range conns {
		// Closing the socket makes the read pump exit, which drives the
		// session teardown for that connection.
		if err := c.ws.Close(); err != nil && !isExpectedCloseError(err) {
			r.log.Error().Err(err).Str("conn", c.id).Msg("closing client connection")
		}
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info().Msg("all connections torn down")
		return nil
	case <-time.After(timeout):
		r.log.Warn().Msg("shutdown timeout reached; some connections may still be tearing down")
		return context.DeadlineExceeded
	}
}
