package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/user-api/backend/internal/config"
	"github.com/zhouzirui/user-api/backend/internal/handler"
	"github.com/zhouzirui/user-api/backend/internal/logger"
	"github.com/zhouzirui/user-api/backend/internal/model/user"
	"github.com/zhouzirui/user-api/backend/internal/service/events"
	userservice "github.com/zhouzirui/user-api/backend/internal/service/user"
	"github.com/zhouzirui/user-api/backend/internal/storage/jsonfile"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Fatal("server error", "error", err)
	}
	logger.Info("server stopped")
}

// run serves until ctx is done or a component fails. All cleanup happens
// before it returns.
func run(ctx context.Context, cfg *config.Config, logger *logger.Logger) error {
	hub := events.NewHub(16)
	defer hub.Close()

	var (
		store   user.Store
		watcher *jsonfile.Watcher
	)
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		store = user.NewMemoryStore(nil)
		logger.Warn("using in-memory user store, data is lost on exit")
	default:
		fileStore := jsonfile.New(cfg.Storage.UsersFile)
		store = fileStore
		if cfg.Storage.Watch {
			watcher = jsonfile.NewWatcher(fileStore, logger, func() {
				hub.Publish(events.NewEvent(events.UsersReloaded, nil))
			})
		}
		logger.Info("using file user store", "path", fileStore.Path())
	}

	users := userservice.NewService(store, hub, logger)
	router := handler.NewRouter(users, hub, logger, cfg.Server.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return startServer(gctx, cfg.Server, router, logger)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	return g.Wait()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *logger.Logger) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("user API listening", "addr", serverCfg.Addr)
	return runServer(ctx, srv, serverCfg.ShutdownTimeout)
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
