package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keyfold/keyfold/internal/command"
	"github.com/keyfold/keyfold/internal/config"
	"github.com/keyfold/keyfold/internal/es"
	elmemory "github.com/keyfold/keyfold/internal/eventlog/memory"
	elpg "github.com/keyfold/keyfold/internal/eventlog/pg"
	httpserver "github.com/keyfold/keyfold/internal/http"
	"github.com/keyfold/keyfold/internal/metrics"
	"github.com/keyfold/keyfold/internal/observability/logger"
	"github.com/keyfold/keyfold/internal/readmodel"
	rmmemory "github.com/keyfold/keyfold/internal/readmodel/memory"
	rmredis "github.com/keyfold/keyfold/internal/readmodel/redis"
	"github.com/keyfold/keyfold/internal/security/accesstoken"
)

func main() {
	// .env es opcional; en prod todo viene del entorno real.
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:   "keyfold",
		Short: "Backend multi-tenant de identidad y credenciales",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("KEYFOLD_CONFIG", ""), "ruta al YAML de configuración (env KEYFOLD_CONFIG)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el API HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfgPath)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica el esquema del event log (solo driver postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), cfgPath)
		},
	}

	root.AddCommand(serveCmd, migrateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "keyfold",
	})
	defer logger.Sync()
	log := logger.L()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	eventLog, closeLog, err := openEventLog(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	index, closeIndex, err := openReadModel(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeIndex()

	if cfg.AccessToken.Secret == "" {
		return fmt.Errorf("falta el secreto de access tokens (KEYFOLD_ACCESS_SECRET)")
	}
	issuer := accesstoken.NewIssuer(cfg.AccessToken.Issuer, []byte(cfg.AccessToken.Secret), cfg.AccessTTL())

	svc := command.NewService(command.Deps{
		Log:    eventLog,
		Index:  index,
		Access: issuer,
	})

	log.Info("arrancando servidor HTTP",
		logger.Component("main"),
		zap.String("addr", cfg.Server.Addr),
		zap.String("eventlog", cfg.EventLog.Driver),
		zap.String("readmodel", cfg.ReadModel.Driver),
	)
	return httpserver.Start(cfg.Server.Addr, httpserver.NewRouter(svc))
}

func migrate(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.EventLog.Driver != "postgres" {
		return fmt.Errorf("migrate requiere eventlog.driver=postgres (actual: %q)", cfg.EventLog.Driver)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pg, err := elpg.New(ctx, cfg.EventLog.DSN)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("esquema aplicado")
	return nil
}

func openEventLog(ctx context.Context, cfg *config.Config) (es.Log, func(), error) {
	switch cfg.EventLog.Driver {
	case "", "memory":
		return elmemory.New(), func() {}, nil
	case "postgres":
		pg, err := elpg.New(ctx, cfg.EventLog.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("eventlog pg: %w", err)
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("eventlog pg ping: %w", err)
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("eventlog.driver desconocido: %q", cfg.EventLog.Driver)
	}
}

func openReadModel(ctx context.Context, cfg *config.Config) (readmodel.Store, func(), error) {
	switch cfg.ReadModel.Driver {
	case "", "memory":
		return rmmemory.New(), func() {}, nil
	case "redis":
		r := cfg.ReadModel.Redis
		store := rmredis.New(r.Addr, r.DB, r.Prefix)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("readmodel redis ping: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("readmodel.driver desconocido: %q", cfg.ReadModel.Driver)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
