package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"socialfeed/internal/cache"
	"socialfeed/internal/config"
	"socialfeed/internal/database"
	"socialfeed/internal/handlers"
	"socialfeed/internal/metrics"
	"socialfeed/internal/middleware"
	"socialfeed/internal/repository"
	"socialfeed/internal/services"
	"socialfeed/internal/storage"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/time/rate"
)

func Run() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()
	if p := os.Getenv("SOCIALFEED_CONFIG"); p != "" {
		*configPath = p
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx := context.Background()

	// Connect to database
	db, err := database.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	// Connect to redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to ping redis")
	}
	log.Info().Msg("Redis connection established")

	objects, err := storage.NewS3Store(ctx, storage.S3Options{
		Region:        cfg.AWS.Region,
		Bucket:        cfg.AWS.S3Bucket,
		AccessKey:     cfg.AWS.AccessKey,
		SecretKey:     cfg.AWS.SecretKey,
		Endpoint:      cfg.AWS.Endpoint,
		PublicBaseURL: cfg.AWS.PublicBaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	profileCache := cache.NewProfileCache(rdb, userRepo, cfg.Redis.ProfileCacheTTL)

	// Initialize services
	sessionProvider := services.NewSessionProvider()
	authService := services.NewAuthService(
		userRepo,
		cache.NewCodeStore(rdb),
		cache.NewRevocationStore(rdb),
		newMailer(cfg.SMTP),
		sessionProvider,
		profileCache,
		services.AuthOptions{
			JWTSecret: cfg.JWT.Secret,
			JWTTTL:    cfg.JWT.TTL,
			OTPTTL:    cfg.OTP.TTL,
			OTPRate:   rate.Limit(cfg.OTP.RPS),
			OTPBurst:  cfg.OTP.Burst,
			OAuth:     newOAuthConfig(cfg.OAuth),

			MaxTrackedEmails: cfg.OTP.MaxTracked,
		},
	)
	feedService := services.NewFeedService(followRepo, postRepo, cfg.Feed.PageSize)
	composer := services.NewComposer(postRepo, objects, services.ComposerLimits{
		MaxChars:      cfg.Composer.MaxChars,
		MaxMediaBytes: cfg.Composer.MaxMediaBytes,
		RecentLimit:   cfg.Composer.RecentLimit,
	})
	wsHub := services.NewWSHub(feedService, followRepo, profileCache, sessionProvider, cfg.Server.WSWriteTimeout)

	cookieSecret := cfg.OAuth.CookieSecret
	if cookieSecret == "" {
		cookieSecret = cfg.JWT.Secret
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userRepo, sessions.NewCookieStore([]byte(cookieSecret)), cfg.OAuth.SuccessURL)
	feedHandler := handlers.NewFeedHandler(feedService)
	networkHandler := handlers.NewNetworkHandler(followRepo, profileCache)
	postHandler := handlers.NewPostHandler(composer, wsHub)
	wsHandler := handlers.NewWebSocketHandler(wsHub, authService, originChecker(cfg.Server.AllowedOrigins))

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/otp", authHandler.RequestOTP)
		r.Post("/auth/otp/verify", authHandler.VerifyOTP)
		r.Get("/auth/google", authHandler.StartOAuth)
		r.Get("/auth/google/callback", authHandler.OAuthCallback)

		r.With(middleware.OptionalAuthMiddleware(authService)).Get("/navigation", handlers.GetNavigation)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authService))
			r.Post("/auth/signout", authHandler.SignOut)
			r.Get("/me", authHandler.Me)
			r.Get("/feed", feedHandler.GetFeed)
			r.Get("/network", networkHandler.GetNetwork)
			r.Post("/network/following", networkHandler.Follow)
			r.Delete("/network/following/{user_id}", networkHandler.Unfollow)
			r.Delete("/network/followers/{user_id}", networkHandler.RemoveFollower)
			r.Post("/posts", postHandler.CreatePost)
			r.Get("/posts/recent", postHandler.GetRecent)
			r.Post("/posts/tokens", postHandler.PreviewTokens)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by the server
	wsHub.Close()

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// newMailer sends codes over SMTP, or logs them when no SMTP host is configured
func newMailer(cfg config.SMTPConfig) services.Mailer {
	if cfg.Host == "" {
		log.Warn().Msg("SMTP host not configured, sign-in codes will be logged")
		return services.LogMailer{}
	}
	return services.NewSMTPMailer(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.From)
}

// newOAuthConfig returns nil when Google sign-in is not configured
func newOAuthConfig(cfg config.OAuthConfig) *oauth2.Config {
	if cfg.GoogleClientID == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoints.Google,
	}
}

// originChecker matches WebSocket handshakes against the CORS allow list
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
