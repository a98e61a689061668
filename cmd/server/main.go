// Package main initializes and starts the soundpad server, setting up
// configuration, logging, database connections, session and media storage,
// services, handlers, and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/soundpad/internal/auth"
	"github.com/atinyakov/soundpad/internal/config"
	"github.com/atinyakov/soundpad/internal/db"
	"github.com/atinyakov/soundpad/internal/logger"
	"github.com/atinyakov/soundpad/internal/media"
	"github.com/atinyakov/soundpad/internal/middleware"
	"github.com/atinyakov/soundpad/internal/repository"
	"github.com/atinyakov/soundpad/internal/server/handler/http"
	"github.com/atinyakov/soundpad/internal/service"
	"github.com/atinyakov/soundpad/internal/session"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const (
	sessionSweepInterval = time.Hour
	shutdownTimeout      = 15 * time.Second
)

func main() {
	// Parse command-line, config file and environment configuration.
	options, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	zapLogger := log.Log
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Session storage: Redis when configured, PostgreSQL otherwise.
	sessionStore, pingSessions, closeSessions, err := newSessionStore(ctx, options, postgresDB, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init session store", zap.Error(err))
	}
	defer closeSessions()

	// Media storage for uploaded files.
	mediaStore, closeMedia, err := newMediaStore(ctx, options)
	if err != nil {
		zapLogger.Fatal("cannot init media storage", zap.Error(err))
	}
	defer closeMedia()

	// Repositories and business-logic services.
	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	authService := service.NewAuthService(authRepo)
	sessionService := service.NewSessionService(
		authService,
		sessionStore,
		auth.NewTokenCodec([]byte(options.SessionSecret)),
		options.SessionTTL,
	)
	trackService := service.NewTrackService(repository.NewPostgresTrackRepository(postgresDB), mediaStore, zapLogger)

	// HTTP handlers, guards and router.
	secure := options.TLSEnabled()
	limiter := middleware.NewRateLimiter(ctx, options.AuthRateLimit, options.AuthRateBurst)
	router := http.NewRouter(
		&http.AuthHandler{AuthService: authService, Sessions: sessionService, SecureCookies: secure, Logger: zapLogger},
		&http.TrackHandler{Tracks: trackService, MaxUploadBytes: options.MaxUploadBytes, Logger: zapLogger},
		&http.HealthHandler{
			DB: http.PingerFunc(func(ctx context.Context) error {
				if err := authRepo.Ping(ctx); err != nil {
					return err
				}
				return pingSessions(ctx)
			}),
			Logger: zapLogger,
		},
		http.Guards{
			RequireSession: middleware.RequireSession(sessionService, secure, zapLogger),
			RateLimit:      limiter.Middleware,
		},
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	if secure {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("starting server", zap.String("addr", options.Addr), zap.Bool("tls", secure),
			zap.String("media", options.MediaBackend), zap.Bool("redis_sessions", options.RedisURL != ""))
		if secure {
			serveErr <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			serveErr <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}

// newSessionStore picks the session backend. The PostgreSQL backend gets a
// background sweeper for expired rows; Redis expires keys itself.
func newSessionStore(
	ctx context.Context,
	options *config.Options,
	postgresDB *sql.DB,
	log *zap.Logger,
) (service.SessionStore, func(context.Context) error, func(), error) {
	if options.RedisURL == "" {
		db.StartSessionCleaner(ctx, postgresDB, sessionSweepInterval, log)
		noPing := func(context.Context) error { return nil }
		return repository.NewPostgresSessionRepository(postgresDB), noPing, func() {}, nil
	}

	client, err := session.NewClient(ctx, options.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return session.NewRedisStore(client), ping, func() { _ = client.Close() }, nil
}

func newMediaStore(ctx context.Context, options *config.Options) (media.Store, func(), error) {
	switch options.MediaBackend {
	case config.MediaS3:
		client, err := media.NewS3Client(ctx, media.S3Options{
			Region:    options.S3Region,
			Endpoint:  options.S3Endpoint,
			AccessKey: options.S3AccessKey,
			SecretKey: options.S3SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return media.NewS3(client, options.S3Bucket), func() {}, nil
	default:
		fs, err := media.NewFilesystem(options.UploadDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { _ = fs.Close() }, nil
	}
}
