package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"notesync-server/internal/config"
	"notesync-server/internal/handler"
	"notesync-server/internal/service"
	"notesync-server/internal/store"
	"notesync-server/internal/websocket"
	"notesync-server/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Server.Env); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	log := logger.WithModule("server")

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, st.Close())
	}()

	hub := websocket.NewHub(cfg.WebSocket.MaxConnPerUser, logger.WithModule("websocket"))

	access := service.NewAccessResolver(st.Notes, st.Collaborators)
	names := service.NewNameCache(st.Users, logger.WithModule("names"))
	collab := service.NewCollabService(hub, access, st.Notes, st.Versions, names, logger.WithModule("collab"))
	authService := service.NewAuthService(st.Users, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	userService := service.NewUserService(st.Users)
	noteService := service.NewNoteService(st.Notes, st.Versions, st.Collaborators, st.Users, st.Folders, access, collab)
	folderService := service.NewFolderService(st.Folders, st.Notes)

	r := handler.NewRouter(cfg, handler.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(userService),
		Note:   handler.NewNoteHandler(noteService),
		Folder: handler.NewFolderHandler(folderService),
		WebSocket: handler.NewWebSocketHandler(
			hub,
			authService,
			collab,
			cfg.WebSocket,
			cfg.CORS.AllowedOrigins,
			logger.WithModule("websocket"),
		),
	}, logger.WithModule("http"))

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("addr", cfg.Addr()),
			zap.String("env", cfg.Server.Env),
			zap.String("driver", st.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown does not track hijacked connections; the hub drains realtime
	// sessions before the deferred store close runs.
	if err := multierr.Combine(srv.Shutdown(shutdownCtx), hub.Close(shutdownCtx)); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
