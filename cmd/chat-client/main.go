package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/jonerickson/tui-chat/config"
	"github.com/jonerickson/tui-chat/src/client"
	"github.com/jonerickson/tui-chat/src/tui"
)

func main() {
	cfg := config.ClientConfigFromEnv()
	username := flag.String("user", "", "username to join as (required)")
	room := flag.String("room", "", "room to join (required)")
	serverAddr := flag.String("server", cfg.ServerAddr, "chat server address")
	debugLog := flag.String("debug-log", cfg.DebugLogFile, "write client logs to this file")
	flag.Parse()

	if *username == "" || *room == "" {
		fmt.Fprintln(os.Stderr, "usage: chat-client -user <name> -room <room> [-server host:port]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := buildLogger(*debugLog)

	conn, err := client.Dial(*serverAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", *serverAddr, err)
		fmt.Fprintln(os.Stderr, "Is the chat server running? Start one with: chat-server")
		os.Exit(1)
	}
	defer conn.Close()

	raw, err := tui.EnterRaw(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not enter raw terminal mode: %v\n", err)
		os.Exit(1)
	}
	defer raw.Restore()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	view := tui.NewView(os.Stdout, "tui-chat",
		fmt.Sprintf("%s @ %s", *username, *serverAddr))
	sess := client.NewSession(conn, view, *username, *room, cfg.HistorySize, logger)

	runErr := sess.Run(os.Stdin, sigs)

	raw.Restore()
	fmt.Print("\r\n")
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "disconnected: %v\n", runErr)
		os.Exit(1)
	}
}

func buildLogger(path string) zerolog.Logger {
	if path == "" {
		// The TUI owns the terminal; logs have nowhere safe to go.
		return zerolog.New(io.Discard)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.New(io.Discard)
	}
	return zerolog.New(f).With().Timestamp().Logger()
}
