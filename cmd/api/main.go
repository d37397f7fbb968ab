package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dec/api/internal/app"
	"dec/api/internal/assets"
	"dec/api/internal/config"
	"dec/api/internal/email"
	"dec/api/internal/export"
	"dec/api/internal/gitstore"
	"dec/api/internal/media"
	"dec/api/internal/oauth"
	"dec/api/internal/search"
	"dec/api/internal/secrets"
	"dec/api/internal/session"
	"dec/api/internal/store"
	"dec/api/internal/terminal"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	content, err := gitstore.Open(cfg.ContentDir)
	if err != nil {
		log.Fatalf("content repo init failed: %v", err)
	}

	box, err := secrets.NewBox(cfg.TokenSealKey)
	if err != nil {
		log.Fatalf("token seal key invalid: %v", err)
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		searchService.ReindexAllFromPG(ctx)
	}

	deps := app.Deps{
		Store:    dataStore,
		Box:      box,
		Content:  content,
		Search:   searchService,
		Exporter: export.NewService(),
		Media:    media.NewService(box, cfg.TwitchClientID),
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("using Redis for web sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
	} else {
		log.Printf("using PostgreSQL for web sessions")
		deps.Sessions = app.NewPostgresSessions(dataStore)
	}

	callback := func(provider string) string {
		return strings.TrimRight(cfg.PublicURL, "/") + "/api/auth/" + provider + "/callback"
	}
	deps.Providers = oauth.NewRegistry(
		oauth.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, callback("github")),
		oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, callback("google")),
		oauth.NewTwitch(cfg.TwitchClientID, cfg.TwitchClientSecret, callback("twitch")),
	)
	if names := deps.Providers.Names(); len(names) > 0 {
		log.Printf("oauth providers enabled: %s", strings.Join(names, ", "))
	} else {
		log.Printf("WARNING: no oauth providers configured, sign-in is unavailable")
	}

	deps.Mailer = email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})

	service := app.New(cfg, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		assetStore, err := assets.NewService(assets.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("minio client failed: %v", err)
		}
		if err := assetStore.EnsureBucket(ctx); err != nil {
			log.Fatalf("minio bucket check failed: %v", err)
		}
		httpServer.Assets = assetStore
	}

	if cfg.TerminalEnabled {
		log.Printf("terminal bridge enabled with shell %s", cfg.TerminalShell)
		httpServer.Terminal = terminal.NewBridge(cfg.TerminalShell, log.Default())
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("dec API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
