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

	"github.com/rollcall-app/rollcall/backend/internal/config"
	"github.com/rollcall-app/rollcall/backend/internal/handler"
	agentservice "github.com/rollcall-app/rollcall/backend/internal/service/agent"
	"github.com/rollcall-app/rollcall/backend/internal/service/ai"
	"github.com/rollcall-app/rollcall/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	repo, err := store.NewSQLite(cfg.DB.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = repo.Close() }()

	// The agent service needs a chat model; without Ark credentials the
	// server still starts and the agent endpoint reports unavailable.
	var agentSvc *agentservice.Service
	if cfg.AI.Enabled() {
		agentSvc, err = buildAgentService(ctx, cfg, repo)
		if err != nil {
			log.Printf("warning: failed to initialize agent service: %v", err)
			log.Println("continuing without the AI assistant - check the Ark model environment variables")
		} else {
			log.Println("agent service initialized successfully")
		}
	} else {
		log.Println("Ark credentials not configured, skipping AI assistant initialization")
	}

	router := handler.NewRouter(agentSvc, repo, cfg.Server.AllowedOrigins)

	startServer(ctx, cfg.Server, router)
}

func buildAgentService(ctx context.Context, cfg *config.Config, repo store.Repository) (*agentservice.Service, error) {
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}

	generator, err := ai.NewGenerator(ctx, chatModel, cfg.Agent.RowLimit)
	if err != nil {
		return nil, err
	}

	summarizer, err := ai.NewSummarizer(ctx, chatModel)
	if err != nil {
		return nil, err
	}

	writeFlow, err := ai.NewWriteFlow(ctx, chatModel, nil)
	if err != nil {
		return nil, err
	}

	return agentservice.NewService(repo, nil, generator, summarizer, writeFlow, cfg.Agent), nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Rollcall agent gateway listening on %s", serverCfg.Addr)
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
