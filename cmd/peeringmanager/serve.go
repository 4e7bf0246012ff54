package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/HerbHall/peeringmanager/api/swagger"
	"github.com/HerbHall/peeringmanager/internal/auth"
	"github.com/HerbHall/peeringmanager/internal/config"
	"github.com/HerbHall/peeringmanager/internal/server"
	"github.com/HerbHall/peeringmanager/internal/version"
	"github.com/HerbHall/peeringmanager/internal/ws"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return serve(cmd.Context(), *configPath)
		},
	}
}

func serve(parent context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger
	logger.Info("peeringmanager server starting", zap.String("version", version.Short()))

	if err := a.reg.StartAll(ctx); err != nil {
		return fmt.Errorf("start plugins: %w", err)
	}

	var (
		authHandler server.RouteRegistrar
		tokens      *auth.TokenService
	)
	if a.v.GetBool("auth.enabled") {
		authService, err := newAuthService(ctx, a)
		if err != nil {
			return err
		}
		tokens = authService.Tokens()
		authHandler = auth.NewHandler(authService, logger.Named("auth"))
		go cleanTokens(ctx, authService)
	} else {
		logger.Warn("authentication disabled, every request is anonymous", zap.String("component", "auth"))
	}

	wsHandler := ws.NewHandler(tokens, a.bus, logger.Named("ws"))
	defer wsHandler.Close()

	addr := fmt.Sprintf("%s:%d", a.v.GetString("server.host"), a.v.GetInt("server.port"))
	srv := server.New(server.Options{
		Addr:    addr,
		Plugins: a.reg,
		Logger:  logger,
		Ready: func(ctx context.Context) error {
			return a.db.DB().PingContext(ctx)
		},
		Auth:           authHandler,
		DevMode:        a.v.GetBool("server.dev_mode"),
		RateLimitRPS:   a.v.GetFloat64("server.rate_limit_rps"),
		RateLimitBurst: a.v.GetInt("server.rate_limit_burst"),
		Extra:          []server.SimpleRouteRegistrar{wsHandler},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("peeringmanager server ready", zap.String("addr", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	a.reg.StopAll(shutdownCtx)
	if err := a.bus.Drain(shutdownCtx); err != nil {
		logger.Warn("event bus did not drain", zap.Error(err))
	}
	logger.Info("peeringmanager server stopped")
	return nil
}

func newAuthService(ctx context.Context, a *app) (*auth.Service, error) {
	users, err := auth.NewUserStore(ctx, a.db)
	if err != nil {
		return nil, err
	}

	secret := a.v.GetString("auth.jwt_secret")
	if secret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("generate JWT secret: %w", err)
		}
		secret = hex.EncodeToString(b)
		a.logger.Info("using auto-generated JWT secret; set auth.jwt_secret to keep sessions across restarts",
			zap.String("component", "auth"))
	}

	accessTTL := config.Duration(a.v, "auth.access_token_ttl")
	refreshTTL := config.Duration(a.v, "auth.refresh_token_ttl")
	tokens := auth.NewTokenService([]byte(secret), accessTTL, refreshTTL)
	a.logger.Info("auth service initialized",
		zap.String("component", "auth"),
		zap.Duration("access_token_ttl", accessTTL),
		zap.Duration("refresh_token_ttl", refreshTTL),
	)
	return auth.NewService(users, tokens, a.logger.Named("auth")), nil
}

// cleanTokens prunes dead refresh tokens hourly until ctx ends.
func cleanTokens(ctx context.Context, svc *auth.Service) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		svc.CleanExpiredTokens(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
