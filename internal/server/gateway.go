// Package server exposes the relay's HTTP surface: the WebSocket upgrade
// endpoint, the nonce minting endpoint for the trusted web tier, and a
// health check.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/helpchat/relay/internal/bus"
	"github.com/helpchat/relay/internal/chat"
	"github.com/helpchat/relay/internal/directory"
	"github.com/helpchat/relay/internal/nonce"
)

// Gateway connects the transport layer to the relay core. Every collaborator
// is injected at construction; the gateway holds no global state.
type Gateway struct {
	cfg      *Config
	bus      bus.Bus
	nonces   *nonce.Store
	users    directory.Directory
	registry *registry
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewGateway wires the relay's HTTP surface together.
func NewGateway(cfg *Config, b bus.Bus, nonces *nonce.Store, users directory.Directory, log zerolog.Logger) *Gateway {
	policy := newOriginPolicy(cfg.AllowedOrigins, log)

	return &Gateway{
		cfg:      cfg,
		bus:      b,
		nonces:   nonces,
		users:    users,
		registry: newRegistry(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
		log: log,
	}
}

// Routes configures and returns an HTTP ServeMux with all relay routes.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", g.HealthHandler)
	mux.HandleFunc("/chat", g.WebSocketHandler)
	mux.HandleFunc("/nonce", g.NonceHandler)
	return mux
}

// HealthHandler provides a simple health check endpoint.
func (g *Gateway) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "chat relay is running")
}

// WebSocketHandler upgrades the HTTP connection, builds the per-connection
// session and router, and starts the pump goroutines.
func (g *Gateway) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.",
			http.StatusMethodNotAllowed)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	conn := newConnection(uuid.NewString(), ws, g.cfg, g.log)
	session := chat.NewSession(conn.id, g.bus, g.nonces, g.users, conn.outbound, g.log)
	router := chat.NewRouter(session)

	g.registry.add(conn)
	g.log.Debug().Str("conn", conn.id).Str("remote", r.RemoteAddr).Msg("connection established")

	go conn.writePump()
	go conn.readPump()
	go func() {
		// Run returns once the read pump closes the frame stream and the
		// session has torn down; only then is it safe to close outbound.
		_ = router.Run(context.Background(), conn.frames)
		close(conn.outbound)
		g.registry.remove(conn)
	}()
}

// nonceRequest is the web tier's payload for minting a nonce.
type nonceRequest struct {
	UserID int64 `json:"user_id"`
}

type nonceResponse struct {
	Nonce      string `json:"nonce"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// NonceHandler mints a one-time nonce for a user. It is called by the
// trusted web tier while rendering the chat page; it performs no end-user
// authentication itself and must not be exposed publicly.
func (g *Gateway) NonceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
		return
	}

	var req nonceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body.", http.StatusBadRequest)
		return
	}

	token, err := g.nonces.Issue(r.Context(), req.UserID)
	if errors.Is(err, nonce.ErrNoIdentity) {
		http.Error(w, "A user ID is required.", http.StatusBadRequest)
		return
	}
	if err != nil {
		g.log.Error().Err(err).Msg("nonce issue failed")
		http.Error(w, "Internal server error.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(nonceResponse{
		Nonce:      token,
		TTLSeconds: int(g.nonces.TTL() / time.Second),
	})
}

// Shutdown closes all live connections and waits for their sessions to tear
// down, up to the timeout.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	return g.registry.Shutdown(timeout)
}
