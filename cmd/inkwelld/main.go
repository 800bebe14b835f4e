package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"inkwell/internal/config"
	"inkwell/internal/daemon"
	"inkwell/internal/decision"
	"inkwell/internal/ipc"
	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/progress"
	"inkwell/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		log.Fatalf("open job store: %v", err)
	}

	hub := progress.NewHub(cfg.Progress.BufferSize)
	manager := workflow.NewManager(cfg, store, hub, logger)
	registerStages(manager, cfg, logger)

	resolver := decision.NewResolver(cfg, store, hub, logger)
	d, err := daemon.New(cfg, store, logger, manager, hub, resolver)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		log.Fatalf("start IPC server: %v", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("inkwelld shutting down")
}
