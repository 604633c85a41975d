package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"DailyBitesserver/internal/auth"
	"DailyBitesserver/internal/config"
	"DailyBitesserver/internal/httpapi"
	"DailyBitesserver/internal/journal"
	"DailyBitesserver/internal/service"
	"DailyBitesserver/internal/store"
	"DailyBitesserver/internal/store/firestore"
	"DailyBitesserver/internal/store/memory"
	"DailyBitesserver/internal/store/postgres"
)

// backend is the document store selected by APP_STORE.
type backend struct {
	docs   store.DocumentStore
	search store.UsersSearchStore
	ping   func(context.Context) error
	close  func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("store open failed", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer be.close()

	var sagaLog journal.Journal = journal.NewMemory(cfg.JournalTTL)
	if cfg.RedisAddr != "" {
		client, err := journal.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer client.Close()
		sagaLog = journal.NewRedis(client, cfg.JournalTTL)
		logger.Info("saga journal on redis", "addr", cfg.RedisAddr)
	} else if cfg.IsProd() {
		logger.Warn("saga journal is in-process; interrupted operations are forgotten on restart")
	}

	repo := store.NewRepository(be.docs)
	if cfg.AtomicWrites && !repo.Atomic() {
		logger.Warn("APP_ATOMIC_WRITES set but the store has no atomic commit; using step writes", "store", cfg.Store)
	}

	friendsSvc := &service.FriendsService{
		Repo:             repo,
		Journal:          sagaLog,
		Logger:           logger,
		WriteMaxAttempts: cfg.WriteMaxAttempts,
		WriteBackoff:     cfg.WriteBackoff,
		AtomicWrites:     cfg.AtomicWrites,
		HealOnRead:       cfg.HealOnRead,
	}
	usersSvc := &service.UsersService{Store: be.search, Repo: repo, Logger: logger}
	profileSvc := &service.ProfileService{Repo: repo, Usernames: be.search, Logger: logger}

	apiRouter := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:             logger,
		IsProd:             cfg.IsProd(),
		StorePing:          be.ping,
		Verifier:           newVerifier(cfg, logger),
		Friends:            friendsSvc,
		Users:              usersSvc,
		Profile:            profileSvc,
		MutationsPerMinute: cfg.MutationRate,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "store", cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			return backend{}, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("ensure schema: %w", err)
		}
		users := postgres.NewUsersStore(pool)
		return backend{docs: users, search: users, ping: users.Ping, close: pool.Close}, nil

	case config.StoreFirestore:
		fs, err := firestore.New(ctx, firestore.Config{
			ProjectID:       cfg.FirestoreProject,
			Database:        cfg.FirestoreDatabase,
			Collection:      cfg.FirestoreCollection,
			CredentialsPath: cfg.GoogleCredentials,
			Endpoint:        cfg.FirestoreEndpoint,
		})
		if err != nil {
			return backend{}, err
		}
		logger.Info("firestore store has no username search; /v1/users/search is disabled")
		return backend{docs: fs, ping: fs.Ping, close: func() {}}, nil

	default:
		mem := memory.New()
		logger.Info("using in-memory store; data is lost on restart")
		return backend{docs: mem, search: mem, ping: mem.Ping, close: func() {}}, nil
	}
}

func newVerifier(cfg config.Config, logger *slog.Logger) auth.Verifier {
	chain := &auth.Chain{Logger: logger}
	if cfg.GoogleClientID != "" {
		chain.Verifiers = append(chain.Verifiers, auth.NewGoogleVerifier(cfg.GoogleClientID))
	}
	if cfg.AppleServiceID != "" {
		chain.Verifiers = append(chain.Verifiers, &auth.AppleVerifier{ServiceID: cfg.AppleServiceID})
	}
	if !cfg.IsProd() {
		chain.Verifiers = append(chain.Verifiers, auth.DevVerifier{})
		logger.Warn("dev tokens accepted", "env", cfg.Env)
	}
	return chain
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
