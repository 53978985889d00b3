package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"

	"github.com/cinemaguru/cinema-guru/internal/catalog"
	"github.com/cinemaguru/cinema-guru/internal/github"
	"github.com/cinemaguru/cinema-guru/internal/handlers"
	"github.com/cinemaguru/cinema-guru/internal/logger"
	"github.com/cinemaguru/cinema-guru/internal/session"
	"github.com/cinemaguru/cinema-guru/internal/store"
	"github.com/cinemaguru/cinema-guru/internal/web"

	_ "github.com/joho/godotenv/autoload"
)

const (
	defaultPort     = "8080"
	defaultPageSize = catalog.DefaultPageSize
	sessionTTL      = 24 * time.Hour
)

func main() {
	slog.SetDefault(logger.New(slog.LevelDebug))
	if err := run(); err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}

func run() error {
	dbPath := envOr("DB_PATH", "/app/data/cinema-guru.db")
	clientID := os.Getenv("AUTH_GITHUB_ID")
	clientSecret := os.Getenv("AUTH_GITHUB_SECRET")
	sessionSecret := os.Getenv("SESSION_SECRET")
	if clientID == "" || clientSecret == "" {
		return errors.New("AUTH_GITHUB_ID and AUTH_GITHUB_SECRET are required")
	}
	if sessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}

	pageSize := defaultPageSize
	if raw := os.Getenv("PAGE_SIZE"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid PAGE_SIZE %q", raw)
		}
		pageSize = parsed
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close DB", logger.Error(err))
		}
	}()

	ctx := context.Background()
	if seedPath := os.Getenv("SEED_PATH"); seedPath != "" {
		count, err := st.CountTitles(ctx)
		if err != nil {
			return fmt.Errorf("count titles: %w", err)
		}
		if count == 0 {
			seeded, err := st.SeedFromFile(ctx, seedPath)
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			slog.Info("seeded catalog", slog.Int("titles", seeded))
		}
	}

	sessions, err := session.NewManager(sessionSecret, sessionTTL)
	if err != nil {
		return fmt.Errorf("failed to init sessions: %w", err)
	}

	app, err := handlers.New(&handlers.Config{
		Store:       st,
		Engine:      catalog.New(st, pageSize),
		Sessions:    sessions,
		Identity:    github.New(clientID, clientSecret),
		RedirectURI: os.Getenv("AUTH_REDIRECT_URI"),
	})
	if err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(slog.Default(), &httplog.Options{
		Level:         slog.LevelInfo,
		RecoverPanics: true,
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{envOr("CORS_ORIGIN", "http://localhost:3000")},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	app.RegisterRoutes(r)

	dist, err := web.Dist()
	if err != nil {
		return fmt.Errorf("failed to load web assets: %w", err)
	}
	spa, err := handlers.SPA(dist)
	if err != nil {
		return fmt.Errorf("failed to init spa handler: %w", err)
	}
	r.NotFound(spa.ServeHTTP)

	addr := ":" + envOr("PORT", defaultPort)
	slog.Info("listening", slog.String("addr", addr))
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
