package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sevewell/enty/internal/adapters/db/gormstore"
	httpadapter "github.com/Sevewell/enty/internal/adapters/http"
	"github.com/Sevewell/enty/internal/adapters/oidc"
	rpcadapter "github.com/Sevewell/enty/internal/adapters/rpcjson"
	"github.com/Sevewell/enty/internal/application"
	"github.com/Sevewell/enty/internal/config"
	"github.com/Sevewell/enty/internal/logger"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "enty",
		Usage: "Temporal entity-attribute-value store server and CLI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profile",
				Usage:   "connection profile (default: the current one)",
				Sources: cli.EnvVars("ENTY_PROFILE"),
			},
		},
		Commands: []*cli.Command{
			serverCommand(),
			profileCommand(),
			authCommand(),
			catalogCommand(),
			entitiesCommand(),
			factsCommand(),
			relationsCommand(),
			accessCommand(),
			auditCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the HTTP API and the JSON-RPC socket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to enty.yaml"},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-driver", Usage: "sqlite or postgres"},
			&cli.StringFlag{Name: "db-dsn", Usage: "database file or connection string"},
			&cli.StringFlag{Name: "linkage-mode", Usage: "attribute, relation or both"},
			&cli.BoolFlag{Name: "temporal-scoping", Usage: "scope list and detail reads to the view date"},
			&cli.StringFlag{Name: "bootstrap-admin-email", Usage: "initial admin email"},
			&cli.StringFlag{Name: "bootstrap-admin-password", Usage: "initial admin password when users are empty"},
			&cli.StringFlag{Name: "log-mode", Usage: "development or production"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			applyServerFlags(c, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(ctx, cfg)
		},
	}
}

func applyServerFlags(c *cli.Command, cfg *config.Config) {
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("rpc-socket") {
		cfg.Server.RPCSocket = c.String("rpc-socket")
	}
	if c.IsSet("db-driver") {
		cfg.Database.Driver = c.String("db-driver")
	}
	if c.IsSet("db-dsn") {
		cfg.Database.DSN = c.String("db-dsn")
	}
	if c.IsSet("linkage-mode") {
		cfg.Model.LinkageMode = c.String("linkage-mode")
	}
	if c.IsSet("temporal-scoping") {
		cfg.Model.TemporalScoping = c.Bool("temporal-scoping")
	}
	if c.IsSet("bootstrap-admin-email") {
		cfg.Bootstrap.AdminEmail = c.String("bootstrap-admin-email")
	}
	if c.IsSet("bootstrap-admin-password") {
		cfg.Bootstrap.AdminPassword = c.String("bootstrap-admin-password")
	}
	if c.IsSet("log-mode") {
		cfg.Logging.Mode = c.String("log-mode")
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := gormstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := gormstore.RunMigrations(ctx, db, log.With("component", "migrate")); err != nil {
		return err
	}

	graph := application.NewGraphService(gormstore.NewGraphRepository(db), log.With("component", "graph"), application.Options{
		LinkageMode:     cfg.Model.LinkageMode,
		TemporalScoping: cfg.Model.TemporalScoping,
	})
	access := application.NewAccessService(gormstore.NewAccessRepository(db), log.With("component", "access"))
	if err := access.BootstrapAccess(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
		return err
	}

	var idp httpadapter.IdentityProvider
	if cfg.OIDC.Enabled() {
		provider, err := oidc.New(oidc.Config{
			MetadataURL:  cfg.OIDC.MetadataURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.RedirectURL(),
			Scopes:       cfg.OIDC.Scopes(),
		})
		if err != nil {
			return err
		}
		idp = provider
		log.Info("oidc login enabled", "provider", cfg.OIDC.ProviderName, "config", cfg.OIDC.String())
	}

	router := httpadapter.NewRouter(graph, access, idp, log.With("component", "http"), httpadapter.Options{
		SessionTTL:   cfg.Server.SessionTTL,
		CookieSecure: cfg.Server.CookieSecure,
		ProviderName: cfg.OIDC.ProviderName,
	})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv := rpcadapter.New(graph, access, log.With("component", "rpc"))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", "addr", srv.Addr, "linkage_mode", cfg.Model.LinkageMode, "temporal_scoping", cfg.Model.TemporalScoping)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return rpcSrv.ListenAndServe(gctx, cfg.Server.RPCSocket)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
