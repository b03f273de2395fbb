package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonerickson/tui-chat/config"
	"github.com/jonerickson/tui-chat/src/hub"
	"github.com/jonerickson/tui-chat/src/logring"
	"github.com/jonerickson/tui-chat/src/server"
	"github.com/jonerickson/tui-chat/src/store"
	"github.com/jonerickson/tui-chat/src/tui"
)

func main() {
	cfg := config.ServerConfigFromEnv()
	port := flag.Int("port", cfg.Port, "TCP port to listen on")
	backend := flag.String("store", cfg.StoreBackend, "persistence backend: memory, mongo, or redis")
	plain := flag.Bool("plain", false, "log to stderr instead of drawing the operator console")
	flag.Parse()
	cfg.Port = *port
	cfg.StoreBackend = *backend

	console := !*plain && tui.IsTerminal(os.Stdout)
	ring := logring.New(cfg.LogLines)
	logger := buildLogger(ring, console)

	st := openStore(cfg, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			logger.Warn().Err(err).Msg("store close failed")
		}
	}()

	limiter := hub.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
	h := hub.New(limiter, st, logger)
	go h.Run()

	srv := server.New(fmt.Sprintf(":%d", cfg.Port), h, logger)
	if err := srv.Listen(); err != nil {
		logger.Error().Err(err).Msg("startup failed")
		fmt.Fprintf(os.Stderr, "could not bind port %d: %v\n", cfg.Port, err)
		os.Exit(1)
	}

	if console {
		startConsole(ring, srv, h)
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		logger.Info().Msg("shutting down")
		h.Stop()
		_ = srv.Close()
	}()

	if err := srv.Serve(); err != nil {
		logger.Error().Err(err).Msg("serve failed")
		os.Exit(1)
	}
	h.Stop()
}

// buildLogger routes events to the operator console's ring when one is
// drawn, since the console owns the screen, and to stderr otherwise.
func buildLogger(ring *logring.Ring, console bool) zerolog.Logger {
	if console {
		return zerolog.New(io.Discard).With().Timestamp().Logger().Hook(ring.Hook())
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// openStore builds the configured persistence backend. Persistence is
// best-effort: an unreachable backend degrades to the in-memory no-op store
// rather than preventing startup.
func openStore(cfg config.ServerConfig, logger zerolog.Logger) store.Store {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.StoreBackend {
	case "mongo":
		st, err := store.NewMongoStore(ctx, store.MongoConfigFromEnv())
		if err != nil {
			logger.Warn().Err(err).Msg("mongodb unavailable, messages will not be persisted")
			return store.Nop{}
		}
		logger.Info().Msg("persisting to mongodb")
		return st
	case "redis":
		st, err := store.NewRedisStore(ctx, store.RedisConfigFromEnv())
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, messages will not be persisted")
			return store.Nop{}
		}
		logger.Info().Msg("persisting to redis")
		return st
	default:
		return store.Nop{}
	}
}

// startConsole wires the log ring to a full-screen operator view that
// repaints on every captured log event.
func startConsole(ring *logring.Ring, srv *server.Server, h *hub.Hub) {
	view := tui.NewView(os.Stdout, "tui-chat server", "operator console")
	render := func(entries []logring.Entry) {
		lines := make([]string, 0, len(entries))
		for _, e := range entries {
			lines = append(lines, fmt.Sprintf("[%s] %-5s %s", e.Time.Format("15:04:05"), e.Tag, e.Message))
		}
		hint := fmt.Sprintf("listening on %s | clients: %d | rooms: %d", srv.Addr(), h.ClientCount(), h.RoomCount())
		view.Render(lines, hint, "")
	}
	ring.OnAppend(render)
	render(ring.Entries())
}
