package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plantwise-io/plantmon/internal/config"
	"github.com/plantwise-io/plantmon/internal/journal"
	"github.com/plantwise-io/plantmon/internal/lib/logger/sl"
	"github.com/plantwise-io/plantmon/internal/model"
	"github.com/plantwise-io/plantmon/internal/server"
	"github.com/plantwise-io/plantmon/internal/state"
	"github.com/plantwise-io/plantmon/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting plantmon",
		slog.String("env", cfg.Env),
		slog.String("address", cfg.HTTP.Address),
		slog.String("storage_path", cfg.Storage.Path),
	)

	store, err := storage.NewSQLiteStore(log, cfg.Storage.Path)
	if err != nil {
		log.Error("failed to open storage", sl.Err(err))
		os.Exit(1)
	}

	readings := state.NewReadingStore()
	mailbox := state.NewMailbox()

	jrnl := journal.New(log, store, &cfg.Storage)

	srv := server.New(log, cfg, readings, mailbox, jrnl, store)
	srv.AddChecker(server.NewStorageHealthChecker(store.Count))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jrnl.Start(ctx)
	jrnl.RecordEvent(model.NewSystemRecord("server started"))

	if err := srv.Start(); err != nil {
		log.Error("failed to start http server", sl.Err(err))
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received signal, shutting down", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop http server", sl.Err(err))
	}

	jrnl.RecordEvent(model.NewSystemRecord("server stopped"))
	jrnl.Stop()

	if err := store.Close(); err != nil {
		log.Error("failed to close storage", sl.Err(err))
	}

	log.Info("plantmon stopped")
}
