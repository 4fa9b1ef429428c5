// cirrusd serves the bucket browser core over a local JSON HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kavinraju/cirrus/internal/api"
	"github.com/kavinraju/cirrus/internal/catalog"
	"github.com/kavinraju/cirrus/internal/catalog/mysql"
	"github.com/kavinraju/cirrus/internal/catalog/postgres"
	"github.com/kavinraju/cirrus/internal/catalog/yamlfile"
	"github.com/kavinraju/cirrus/internal/creds"
	"github.com/kavinraju/cirrus/internal/logger"
	"github.com/kavinraju/cirrus/internal/objstore"
	"github.com/kavinraju/cirrus/internal/objstore/minio"
	"github.com/kavinraju/cirrus/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg := api.DefaultConfig()
	if *configPath != "" {
		loaded, err := api.LoadConfig(*configPath)
		if err != nil {
			logger.New(logger.DefaultConfig()).Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	log := logger.New(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	defer cat.Close()

	vault, err := creds.NewFileVault(cfg.VaultDir)
	if err != nil {
		log.Fatalf("credential vault: %v", err)
	}

	var opts []session.Option
	if cfg.Store.Driver == "minio" {
		opts = append(opts, session.WithStoreFactory(
			func(ec objstore.EndpointConfig, c creds.Credentials, l *logger.Logger) (objstore.Store, error) {
				return minio.New(ec, c, l)
			}))
	}
	if cfg.Store.ListLimit > 0 {
		opts = append(opts, session.WithListLimit(cfg.Store.ListLimit))
	}
	manager := session.New(vault, log, opts...)

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.NewServer(cat, vault, manager, log),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("shutdown: %v", err)
		}
		manager.Disconnect()
	}()

	log.With().Str("listen", cfg.Listen).Str("catalog", cfg.Catalog.Driver).Logger().Info("cirrusd listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}
}

// openCatalog builds the configured catalog driver.
func openCatalog(ctx context.Context, cfg *api.Config) (catalog.Store, error) {
	switch cfg.Catalog.Driver {
	case "postgres":
		return postgres.New(ctx, postgres.DefaultConfig(cfg.Catalog.DSN))
	case "mysql":
		return mysql.New(ctx, mysql.DefaultConfig(cfg.Catalog.DSN))
	default:
		return yamlfile.New(cfg.Catalog.Path)
	}
}
