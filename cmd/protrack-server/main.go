package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/protrack-edu/protrack-server/internal/audit"
	"github.com/protrack-edu/protrack-server/internal/config"
	"github.com/protrack-edu/protrack-server/internal/handlers"
	"github.com/protrack-edu/protrack-server/internal/logger"
	"github.com/protrack-edu/protrack-server/internal/pidfile"
	"github.com/protrack-edu/protrack-server/internal/protocol"
	"github.com/protrack-edu/protrack-server/internal/server"
	"github.com/protrack-edu/protrack-server/internal/session"
	"github.com/protrack-edu/protrack-server/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	addr := flag.String("addr", "", "listen address override (host:port)")
	pidPath := flag.String("pidfile", "", "write the process id to this file and refuse to start twice")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if *addr != "" {
		host, portStr, splitErr := net.SplitHostPort(*addr)
		if splitErr != nil {
			return fmt.Errorf("invalid -addr %q: %w", *addr, splitErr)
		}
		port, convErr := strconv.Atoi(portStr)
		if convErr != nil {
			return fmt.Errorf("invalid -addr port %q: %w", portStr, convErr)
		}
		cfg.Listen.Host = host
		cfg.Listen.Port = port
	}

	if err := logger.Init(logger.ParseLevel(cfg.Log.Level), cfg.Log.Path); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Global()
	defer func() {
		if err != nil {
			log.Error("Fatal error: %v", err)
		}
		if closeErr := log.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	log.Info("Servidor ProTrack iniciando...")

	if *pidPath != "" {
		pf, acquireErr := pidfile.Acquire(*pidPath)
		if acquireErr != nil {
			return acquireErr
		}
		defer func() {
			if releaseErr := pf.Release(); releaseErr != nil {
				log.Warn("Failed to remove pidfile: %v", releaseErr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := store.Open(openCtx, cfg.Database.DSN(), log)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions := session.NewRegistry()
	recorder := audit.NewRecorder(db, log)
	registry := handlers.New(db, recorder, log).Registry()
	dispatcher := protocol.NewDispatcher(registry, sessions, log)

	srv := server.New(cfg, dispatcher, sessions, log)
	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	return srv.Stop(stopCtx)
}
