// Package main is the interactive terminal client of the story service.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atinyakov/storyapp/internal/client/api"
	"github.com/atinyakov/storyapp/internal/client/session"
	"github.com/atinyakov/storyapp/internal/config"
	"github.com/atinyakov/storyapp/internal/logger"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-version" {
		fmt.Printf("Story Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	options, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	zapLogger := log.Log

	backend, closeBackend, err := openBackend(options)
	if err != nil {
		zapLogger.Fatal("cannot open session storage", zap.Error(err))
	}
	defer closeBackend()

	httpClient, err := api.NewHTTPClient(options.CAFile, options.Timeout)
	if err != nil {
		zapLogger.Fatal("cannot configure HTTP client", zap.Error(err))
	}

	store := session.NewStore(backend, zapLogger)
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(api.New(options.BaseURL, httpClient, zapLogger), store, os.Stdin, os.Stdout, zapLogger, options.Timeout+options.Timeout/2)
	defer a.close()

	if err := a.run(ctx); err != nil {
		zapLogger.Error("terminal input failed", zap.Error(err))
	}
}

// openBackend picks Postgres when a DSN is configured, the session file otherwise.
func openBackend(options *config.Options) (session.Backend, func(), error) {
	if options.DatabaseDSN == "" {
		return session.NewFileBackend(options.SessionDir, session.Namespace), func() {}, nil
	}
	db, err := session.InitPostgres(options.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	return session.NewPostgresBackend(db, session.Namespace), func() { _ = db.Close() }, nil
}
