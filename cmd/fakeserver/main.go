// Package main runs the in-memory story API for local development of the client.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atinyakov/storyapp/internal/certgen"
	"github.com/atinyakov/storyapp/internal/config"
	"github.com/atinyakov/storyapp/internal/fakeapi"
	"github.com/atinyakov/storyapp/internal/logger"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options, err := config.ParseServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	api := fakeapi.New(fakeapi.WithLogger(zapLogger))
	server := &http.Server{
		Addr:              options.Port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if options.TLS() {
		tlsConfig, err := serverTLS(options)
		if err != nil {
			zapLogger.Fatal("failed to prepare TLS", zap.Error(err))
		}
		server.TLSConfig = tlsConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("shutdown failed", zap.Error(err))
		}
	}()

	zapLogger.Info("starting fake story API", zap.String("addr", options.Port), zap.Bool("tls", options.TLS()))
	if server.TLSConfig != nil {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// serverTLS issues a certificate for the listen host signed by the configured authority.
func serverTLS(options *config.ServerOptions) (*tls.Config, error) {
	ca, err := certgen.LoadAuthority(options.CACert, options.CAKey)
	if err != nil {
		return nil, err
	}
	host, _, err := net.SplitHostPort(options.Port)
	if err != nil {
		return nil, fmt.Errorf("listen address %q: %w", options.Port, err)
	}
	hosts := []string{"localhost", "127.0.0.1"}
	if host != "" && host != "localhost" && host != "127.0.0.1" {
		hosts = append(hosts, host)
	}
	cert, err := ca.ServerCertificate(hosts...)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
