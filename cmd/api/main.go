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

	"github.com/hexlay/cyberchat/internal/config"
	"github.com/hexlay/cyberchat/internal/cue"
	"github.com/hexlay/cyberchat/internal/handler"
	"github.com/hexlay/cyberchat/internal/service/ai"
	"github.com/hexlay/cyberchat/internal/service/command"
	"github.com/hexlay/cyberchat/internal/service/session"
	"github.com/hexlay/cyberchat/internal/service/turn"
	"github.com/hexlay/cyberchat/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := openStore(cfg.Storage)
	defer store.Close()

	sessions := session.NewService(store)
	sessions.Load()

	var gateway turn.Gateway
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without a backend - submissions will fail until credentials are fixed")
		} else {
			gateway = aiService
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("model credentials not configured, submissions will fail until they are provided")
	}

	engine := turn.New(sessions, gateway, cue.Nop{}, time.Duration(cfg.AI.SubmitTimeout)*time.Second)
	commands := command.New(sessions, engine, cue.Nop{})

	router := handler.NewRouter(sessions, engine, commands)

	startServer(ctx, cfg.Server, router)
}

// openStore falls back to in-memory state when the database cannot be
// opened, so a broken disk never blocks the chat itself.
func openStore(cfg config.StorageConfig) storage.Store {
	if cfg.Path == "" {
		log.Println("no database path configured, state is in-memory only")
		return storage.NewMemoryStore()
	}

	store, err := storage.OpenSQLite(cfg.Path)
	if err != nil {
		log.Printf("warning: failed to open database %q: %v", cfg.Path, err)
		log.Println("continuing with in-memory state only")
		return storage.NewMemoryStore()
	}

	log.Printf("durable store opened at %s", cfg.Path)
	return store
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("cyberchat backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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
