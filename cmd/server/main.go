// Command server runs the chat relay: it wires the configured pub/sub
// backbone, nonce store, and user directory into the WebSocket gateway and
// serves it until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/helpchat/relay/internal/bus"
	"github.com/helpchat/relay/internal/directory"
	"github.com/helpchat/relay/internal/nonce"
	"github.com/helpchat/relay/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("relay exited")
	}
}

func run(log zerolog.Logger) error {
	cfg := server.NewConfigFromEnv()

	var redisClient *redis.Client
	if cfg.BusBackend == server.BusRedis {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("pinging redis at %s: %w", cfg.RedisAddr, err)
		}
		defer redisClient.Close()
	}

	roomBus, busCleanup, err := buildBus(cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer busCleanup()

	nonces := buildNonceStore(cfg, redisClient, log)
	users, err := buildDirectory(cfg, log)
	if err != nil {
		return err
	}

	gateway := server.NewGateway(cfg, roomBus, nonces, users, log)
	httpServer := server.CreateServer(cfg.Port, gateway.Routes())

	errCh := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, log); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return server.ShutdownServer(httpServer, shutdownTimeout, log)
			},
			"connections": func(ctx context.Context) error {
				return gateway.Shutdown(shutdownTimeout)
			},
		},
	)

	select {
	case err := <-errCh:
		return err
	case code := <-wait:
		log.Info().Int("code", code).Msg("relay stopped")
		return nil
	}
}

// buildBus selects the pub/sub backbone from configuration.
func buildBus(cfg *server.Config, redisClient *redis.Client, log zerolog.Logger) (bus.Bus, func(), error) {
	switch cfg.BusBackend {
	case server.BusRedis:
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis bus")
		return bus.NewRedisBus(redisClient, log), func() {}, nil

	case server.BusNats:
		nc, err := nats.Connect(cfg.NatsURL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(10),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.NatsURL, err)
		}
		log.Info().Str("url", cfg.NatsURL).Msg("using nats bus")
		return bus.NewNatsBus(nc, log), nc.Close, nil

	default:
		log.Warn().Msg("using in-process bus; rooms will not span relay nodes")
		return bus.NewMemoryBus(log), func() {}, nil
	}
}

// buildNonceStore keeps nonces next to the bus: in Redis when Redis is
// around, else in memory.
func buildNonceStore(cfg *server.Config, redisClient *redis.Client, log zerolog.Logger) *nonce.Store {
	if redisClient != nil {
		return nonce.New(nonce.NewRedisTokenStore(redisClient), cfg.NonceTTL, log)
	}
	log.Warn().Msg("using in-memory nonce store; nonces will not span relay nodes")
	return nonce.New(nonce.NewMemoryTokenStore(), cfg.NonceTTL, log)
}

func buildDirectory(cfg *server.Config, log zerolog.Logger) (directory.Directory, error) {
	if cfg.DirectoryDB == "" {
		log.Warn().Msg("no DIRECTORY_DB configured; all connections will stay anonymous")
		return directory.NewStaticDirectory(), nil
	}

	users, err := directory.OpenSQLite(cfg.DirectoryDB)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.DirectoryDB).Msg("user directory opened")
	return users, nil
}
