package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/drazisil/mcos-sub001/internal/codec"
	"github.com/drazisil/mcos-sub001/internal/config"
	"github.com/drazisil/mcos-sub001/internal/crypt"
	"github.com/drazisil/mcos-sub001/internal/db"
	"github.com/drazisil/mcos-sub001/internal/lobby"
	"github.com/drazisil/mcos-sub001/internal/login"
	"github.com/drazisil/mcos-sub001/internal/mcots"
	"github.com/drazisil/mcos-sub001/internal/nps"
	"github.com/drazisil/mcos-sub001/internal/patch"
	"github.com/drazisil/mcos-sub001/internal/persona"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

const ConfigPath = "config/server.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	slog.Info("mcos server starting")

	// Load config
	cfgPath := ConfigPath
	if p := os.Getenv("MCOS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded",
		"bind", cfg.BindAddress, "storage", cfg.Storage,
		"login_port", cfg.LoginPort, "mcots_port", cfg.MCOTSPort)

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	privateKey, err := loadOrGenerateKey(cfg.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("preparing session key pair: %w", err)
	}

	state := registry.NewState()
	ciphers := crypt.NewManager()

	sessionTTL := time.Duration(cfg.SessionTTLSeconds) * time.Second
	idleTimeout := time.Duration(cfg.IdleTimeoutSeconds) * time.Second

	loginHandler := login.NewHandler(store, state, ciphers, privateKey, sessionTTL)
	loginTable, err := loginHandler.Table()
	if err != nil {
		return fmt.Errorf("building login table: %w", err)
	}

	personaHandler := persona.NewHandler(store, state)
	personaTable, err := personaHandler.Table()
	if err != nil {
		return fmt.Errorf("building persona table: %w", err)
	}

	lobbyHandler := lobby.NewHandler(store, state, ciphers, lobby.DefaultRooms)
	lobbyTable, err := lobbyHandler.Table()
	if err != nil {
		return fmt.Errorf("building lobby table: %w", err)
	}

	mcotsHandler := mcots.NewHandler(store, state, ciphers)
	mcotsTable, err := mcotsHandler.Table()
	if err != nil {
		return fmt.Errorf("building transaction table: %w", err)
	}

	servers := []*nps.Server{
		nps.NewServer("login", cfg.BindAddress, cfg.LoginPort,
			nps.NewDispatcher(codec.VariantNPS, loginTable, state, ciphers),
			state, ciphers, nps.WithIdleTimeout(idleTimeout)),
		nps.NewServer("persona", cfg.BindAddress, cfg.PersonaPort,
			nps.NewDispatcher(codec.VariantNPS, personaTable, state, ciphers),
			state, ciphers, nps.WithIdleTimeout(idleTimeout)),
		nps.NewServer("lobby", cfg.BindAddress, cfg.LobbyPort,
			nps.NewDispatcher(codec.VariantRaw, lobbyTable, state, ciphers),
			state, ciphers, nps.WithIdleTimeout(idleTimeout)),
		nps.NewServer("mcots", cfg.BindAddress, cfg.MCOTSPort,
			nps.NewDispatcher(codec.VariantGame, mcotsTable, state, ciphers),
			state, ciphers, nps.WithIdleTimeout(idleTimeout)),
	}

	patchService := patch.NewService(cfg, store, store)

	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.Run(gctx); err != nil {
				return fmt.Errorf("socket server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := patchService.Run(gctx); err != nil {
			return fmt.Errorf("patch service: %w", err)
		}
		return nil
	})

	// Expired sessions are reaped in the background so a crashed client
	// cannot pin its key forever.
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				state.Sessions.CleanExpired(sessionTTL)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// openStore wires the configured storage backend. The memory store is
// pre-seeded with dev fixtures so the stack works out of the box.
func openStore(ctx context.Context, cfg config.Server) (db.Store, func(), error) {
	switch cfg.Storage {
	case "postgres":
		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")
		pg, err := db.NewPostgresStore(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		slog.Info("database connected")
		return pg, pg.Close, nil
	case "memory", "":
		slog.Info("using in-memory fixture store")
		return db.NewFixtureStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// loadOrGenerateKey reads the RSA key from disk, generating an ephemeral
// one when the file is absent so a dev run needs no setup.
func loadOrGenerateKey(path string) (*rsa.PrivateKey, error) {
	key, err := crypt.LoadPrivateKey(path)
	if err == nil {
		slog.Info("loaded private key", "path", path)
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	slog.Warn("private key missing, generating ephemeral key", "path", path)
	return crypt.GeneratePrivateKey()
}
