// Command unimaild runs the unified inbox daemon: it keeps a local
// cache of every attached account's mailbox in sync with the remote
// IMAP servers and serves the cache over a JSON HTTP API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unimail/unimail/internal/account"
	"github.com/unimail/unimail/internal/api"
	"github.com/unimail/unimail/internal/cache"
	"github.com/unimail/unimail/internal/credential"
	"github.com/unimail/unimail/internal/mail"
	"github.com/unimail/unimail/internal/model"
	"github.com/unimail/unimail/internal/sync"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("loading config: %v", err)
	}

	log := newLogger(cfg.Logging)

	store, err := account.NewSQLiteStore(cfg.Database.Path, credential.Source{})
	if err != nil {
		log.Fatalf("opening account store: %v", err)
	}
	defer store.Close()

	cacheStore := cache.NewStore()
	client := mail.NewIMAPClient(
		time.Duration(cfg.Sync.FetchTimeoutSec)*time.Second, log,
	)
	svc := sync.NewService(store, client, cacheStore, log)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	poller := sync.NewPoller(
		svc, time.Duration(cfg.Sync.PollIntervalSec)*time.Second, log,
	)
	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		log.WithError(err).Warn("listing accounts; background sync disabled")
	} else {
		poller.Start(accounts)
		defer poller.Stop()
	}

	server := api.NewServer(cfg.Server.ListenAddr, svc, cacheStore, store, log)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("HTTP server: %v", err)
	}
}

// newLogger builds the process logger from config.
func newLogger(cfg model.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
