package main

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/epetrov/studyvault/internal/asset"
	"github.com/epetrov/studyvault/internal/blobstore"
	"github.com/epetrov/studyvault/internal/cli"
	"github.com/epetrov/studyvault/internal/config"
	"github.com/epetrov/studyvault/internal/identity"
	"github.com/epetrov/studyvault/internal/logging"
	"github.com/epetrov/studyvault/internal/storex"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigs
		cancel()
	}()

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	db, err := storex.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Printf("db init error: %v", err)
		return
	}
	defer db.Close()

	blobs, err := blobstore.NewS3Store(ctx, cfg)
	if err != nil {
		log.Printf("blob store init error: %v", err)
		return
	}

	repos := storex.NewPostgresRepositoryManager()

	provider := identity.NewPostgresProvider(db, cfg, logger)
	defer provider.Close()

	sessions := identity.NewManager(provider, repos.Profiles(db), logger)
	go sessions.Run(ctx)

	pipeline := asset.NewPipeline(blobs, repos.Assets(db), logger, cfg.AssetPageSize)

	in := bufio.NewReader(os.Stdin)
	app := cli.NewApp(sessions, pipeline, logger, in, os.Stdout)
	go app.WatchSession(ctx)

	cli.RunShell(ctx, app, in)
}
