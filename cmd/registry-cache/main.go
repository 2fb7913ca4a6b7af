package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/re-cinq/registry-cache/internal/bus"
	"github.com/re-cinq/registry-cache/internal/config"
	"github.com/re-cinq/registry-cache/internal/health"
	"github.com/re-cinq/registry-cache/internal/manifestindex"
	"github.com/re-cinq/registry-cache/internal/metrics"
	"github.com/re-cinq/registry-cache/internal/persist"
	"github.com/re-cinq/registry-cache/internal/proxy"
	"github.com/re-cinq/registry-cache/internal/store"
)

func main() {
	// Self-contained healthcheck for scratch containers (no curl/wget available).
	// Usage: registry-cache -healthcheck
	if len(os.Args) > 1 && os.Args[1] == "-healthcheck" {
		resp, err := http.Get("http://127.0.0.1:8080/healthz")
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	configPath := flag.String("config", "/etc/registry-cache/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Log.Level)})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobStore := store.NewFS(cfg.Storage.Folder)
	if err := blobStore.Init(); err != nil {
		slog.Error("failed to initialise blob store", "folder", cfg.Storage.Folder, "error", err)
		os.Exit(1)
	}

	index, err := manifestindex.Open(cfg.DB.URI, cfg.DB.MaxConnections)
	if err != nil {
		slog.Error("failed to open manifest index", "error", err)
		os.Exit(1)
	}
	defer index.Close()

	commandBus := bus.New(slog.Default(), bus.DefaultFrontCapacity)
	workers := runtime.NumCPU()

	var mirror *store.Mirror
	if cfg.UsesMirror() {
		mirror, err = store.NewMirror(ctx, cfg.Storage.Mirror.Bucket, cfg.Storage.Mirror.Prefix, cfg.Storage.Mirror.Region)
		if err != nil {
			slog.Error("failed to configure blob mirror", "error", err)
			os.Exit(1)
		}
		commandBus.Subscribe(bus.TopicMirrorBlob, &persist.Mirror{Store: blobStore, Mirror: mirror, Log: slog.Default()}, workers, bus.DefaultInboxCapacity)
	}

	blobPersister := &persist.Blob{Store: blobStore, Log: slog.Default()}
	if mirror != nil {
		blobPersister.Bus = commandBus
	}
	commandBus.Subscribe(bus.TopicPersistBlob, blobPersister, workers, bus.DefaultInboxCapacity)
	commandBus.Subscribe(bus.TopicPersistManifest, &persist.Manifest{
		Blob:  blobPersister,
		Store: blobStore,
		Index: index,
		Log:   slog.Default(),
	}, workers, bus.DefaultInboxCapacity)

	m := metrics.New(prometheus.DefaultRegisterer)

	handler := &proxy.Handler{
		Upstream: proxy.NewUpstreamClient(cfg.UpstreamTable()),
		Store:    blobStore,
		Index:    index,
		Bus:      commandBus,
		Metrics:  m,
		Log:      slog.Default(),
	}
	healthHandler := &health.Handler{StorageRoot: cfg.Storage.Folder, DB: index}
	router := proxy.NewRouter(handler, healthHandler, m, slog.Default(), cfg.API.Hostname)

	listenAddr := cfg.API.Address + ":" + cfg.API.Port

	var server *http.Server
	useTLS := cfg.UsesTLS()
	if useTLS {
		cert, err := tls.LoadX509KeyPair(cfg.API.TLSCert, cfg.API.TLSKey)
		if err != nil {
			slog.Error("failed to load TLS certificate", "error", err)
			os.Exit(1)
		}
		server = &http.Server{
			Addr:      listenAddr,
			Handler:   router,
			TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		}
	} else {
		h2s := &http2.Server{}
		server = &http.Server{
			Addr:    listenAddr,
			Handler: h2c.NewHandler(router, h2s),
		}
	}

	go func() {
		slog.Info("starting server", "addr", listenAddr, "tls", useTLS, "hostname", cfg.API.Hostname)
		var err error
		if useTLS {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	commandBus.Shutdown()
	slog.Info("shutdown complete")
}
