package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/sbilibin2017/gw-progress-store/internal/handlers"
	"github.com/sbilibin2017/gw-progress-store/internal/jwt"
	"github.com/sbilibin2017/gw-progress-store/internal/logger"
	"github.com/sbilibin2017/gw-progress-store/internal/middlewares"
	"github.com/sbilibin2017/gw-progress-store/internal/repositories"
	"github.com/sbilibin2017/gw-progress-store/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// Supported MIRROR_BACKENDS entries
const (
	backendRedis    = "redis"
	backendKafka    = "kafka"
	backendPostgres = "postgres"
)

// @title gw-progress-store API
// @version 1.0.0
// @description Per-user fitness progress store with asynchronous remote mirroring
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	appHost, appPort, logLevel,
		mirrorBackends, mirrorTimeout,
		pgHost, pgPort, pgUser, pgPassword, pgDB,
		pgMaxOpenConns, pgMaxIdleConns,
		redisHost, redisPort, redisDB, redisPassword,
		redisPoolSize, redisMinIdleConns, redisDedupTTL,
		kafkaBrokers, kafkaTopic,
		jwtSecret, jwtExp,
		err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(),
		appHost, appPort, logLevel,
		mirrorBackends, mirrorTimeout,
		pgHost, pgPort, pgUser, pgPassword, pgDB,
		pgMaxOpenConns, pgMaxIdleConns,
		redisHost, redisPort, redisDB, redisPassword,
		redisPoolSize, redisMinIdleConns, redisDedupTTL,
		kafkaBrokers, kafkaTopic,
		jwtSecret, jwtExp,
	); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Version: %s\nCommit: %s\nBuild: %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// splitList splits a comma separated value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseConfig loads environment variables from a file and returns
// all application, mirror, database, Redis, Kafka, logging, and JWT configuration.
func parseConfig(path string) (
	appHost, appPort, logLevel string,
	mirrorBackends []string, mirrorTimeout time.Duration,
	pgHost string, pgPort int, pgUser, pgPassword, pgDB string,
	pgMaxOpenConns, pgMaxIdleConns int,
	redisHost string, redisPort int, redisDB int, redisPassword string,
	redisPoolSize, redisMinIdleConns int, redisDedupTTL time.Duration,
	kafkaBrokers []string, kafkaTopic string,
	jwtSecretKey string, jwtExpSecond int,
	err error,
) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}

	// Application config
	appHost = getEnv("APP_HOST", "localhost")
	appPort = getEnv("APP_PORT", "8080")
	logLevel = getEnv("APP_LOG_LEVEL", "info")

	// Mirror config
	mirrorBackends = splitList(getEnv("MIRROR_BACKENDS", ""))
	for _, b := range mirrorBackends {
		switch b {
		case backendRedis, backendKafka, backendPostgres:
		default:
			err = fmt.Errorf("unknown mirror backend %q", b)
			return
		}
	}
	if mirrorTimeout, err = time.ParseDuration(getEnv("MIRROR_TIMEOUT", "5s")); err != nil {
		return
	}

	// PostgreSQL config
	pgHost = getEnv("POSTGRES_HOST", "localhost")
	pgUser = getEnv("POSTGRES_USER", "user")
	pgPassword = getEnv("POSTGRES_PASSWORD", "password")
	pgDB = getEnv("POSTGRES_DB", "database")
	if pgPort, err = strconv.Atoi(getEnv("POSTGRES_PORT", "5432")); err != nil {
		return
	}
	if pgMaxOpenConns, err = strconv.Atoi(getEnv("POSTGRES_MAX_OPEN_CONNS", "16")); err != nil {
		return
	}
	if pgMaxIdleConns, err = strconv.Atoi(getEnv("POSTGRES_MAX_IDLE_CONNS", "8")); err != nil {
		return
	}

	// Redis config
	redisHost = getEnv("REDIS_HOST", "localhost")
	if redisPort, err = strconv.Atoi(getEnv("REDIS_PORT", "6379")); err != nil {
		return
	}
	if redisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return
	}
	redisPassword = getEnv("REDIS_PASSWORD", "")
	if redisPoolSize, err = strconv.Atoi(getEnv("REDIS_POOL_SIZE", "10")); err != nil {
		return
	}
	if redisMinIdleConns, err = strconv.Atoi(getEnv("REDIS_MIN_IDLE_CONNS", "2")); err != nil {
		return
	}
	if redisDedupTTL, err = time.ParseDuration(getEnv("REDIS_DEDUP_TTL", "24h")); err != nil {
		return
	}

	// Kafka config
	kafkaBrokers = splitList(getEnv("KAFKA_BROKERS", "localhost:9092"))
	kafkaTopic = getEnv("KAFKA_TOPIC", "progress-mutations")

	// JWT config
	jwtSecretKey = getEnv("JWT_SECRET_KEY", "my_super_secret_key")
	if jwtExpSecond, err = strconv.Atoi(getEnv("JWT_EXP_SECOND", "3600")); err != nil {
		return
	}

	return
}

// run initializes the logger, the configured mirrors, the progress store and the HTTP server.
// It sets up routes, applies middleware, and handles graceful shutdown.
func run(ctx context.Context,
	appHost, appPort, logLevel string,
	mirrorBackends []string, mirrorTimeout time.Duration,
	pgHost string, pgPort int, pgUser, pgPassword, pgDB string,
	pgMaxOpenConns, pgMaxIdleConns int,
	redisHost string, redisPort, redisDB int, redisPassword string,
	redisPoolSize, redisMinIdleConns int, redisDedupTTL time.Duration,
	kafkaBrokers []string, kafkaTopic string,
	jwtSecretKey string, jwtExpSecond int,
) error {
	// Initialize logger
	if err := logger.Initialize(logLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Log.Sync()
	logger.Log.Infof("Logger initialized with level %s", logLevel)

	fanout := repositories.NewFanoutMirror()

	for _, backend := range mirrorBackends {
		switch backend {
		case backendPostgres:
			dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
				pgUser, pgPassword, pgHost, pgPort, pgDB)
			logger.Log.Infof("Connecting to PostgreSQL at %s:%d/%s", pgHost, pgPort, pgDB)

			db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
			if err != nil {
				return fmt.Errorf("PostgreSQL connection error: %w", err)
			}
			defer db.Close()
			db.SetMaxOpenConns(pgMaxOpenConns)
			db.SetMaxIdleConns(pgMaxIdleConns)

			pgMirror := repositories.NewPostgresMirror(db)
			if err := pgMirror.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("PostgreSQL schema error: %w", err)
			}
			fanout.Add(backendPostgres, pgMirror)

		case backendRedis:
			rdb := redis.NewClient(&redis.Options{
				Addr:         fmt.Sprintf("%s:%d", redisHost, redisPort),
				Password:     redisPassword,
				DB:           redisDB,
				PoolSize:     redisPoolSize,
				MinIdleConns: redisMinIdleConns,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("Redis connection error: %w", err)
			}
			defer rdb.Close()
			fanout.Add(backendRedis, repositories.NewRedisMirror(rdb, redisDedupTTL))

		case backendKafka:
			writer := &kafka.Writer{
				Addr:         kafka.TCP(kafkaBrokers...),
				Topic:        kafkaTopic,
				Balancer:     &kafka.Hash{},
				RequiredAcks: kafka.RequireAll,
			}
			kafkaMirror := repositories.NewKafkaMirror(writer)
			defer kafkaMirror.Close()
			fanout.Add(backendKafka, kafkaMirror)
		}
	}

	var mirror services.Mirror
	if fanout.Len() > 0 {
		mirror = fanout
		logger.Log.Infow("remote mirroring enabled", "backends", mirrorBackends, "timeout", mirrorTimeout)
	} else {
		logger.Log.Info("no mirror backends configured, running local only")
	}

	// Initialize JWT service
	tokens := jwt.New(
		jwt.WithSecretKey(jwtSecretKey),
		jwt.WithExpiration(time.Duration(jwtExpSecond)*time.Second),
	)

	// Initialize store
	replicator := services.NewReplicator(mirror, mirrorTimeout)
	store := services.NewInMemoryProgressStore(replicator, services.SystemClock{})

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware(logger.Log))

	// Public routes
	r.Post("/register", handlers.NewRegisterHandler(store, tokens))
	r.Get("/usernames/{username}", handlers.NewUsernameHandler(store))
	r.Handle("/metrics", promhttp.Handler())

	// Protected routes with JWT middleware
	r.Route("/me", func(r chi.Router) {
		r.Use(middlewares.AuthMiddleware(tokens))
		r.Get("/", handlers.NewAccountHandler(store))
		r.Put("/username", handlers.NewChangeUsernameHandler(store))
		r.Get("/friends", handlers.NewListFriendsHandler(store))
		r.Post("/friends", handlers.NewAddFriendHandler(store))
		r.Delete("/friends/{friendID}", handlers.NewRemoveFriendHandler(store))
		r.Get("/runs", handlers.NewListRunsHandler(store))
		r.Put("/runs", handlers.NewUpsertRunHandler(store))
		r.Post("/runs/complete", handlers.NewCompleteRunHandler(store))
		r.Delete("/runs/{start}", handlers.NewRemoveRunHandler(store))
		r.Put("/goals/{kind}", handlers.NewSetGoalHandler(store))
		r.Post("/progress", handlers.NewRecordProgressHandler(store))
		r.Get("/goals/daily", handlers.NewDailyGoalsHandler(store))
		r.Get("/goals/today", handlers.NewTodayGoalHandler(store))
		r.Get("/stats", handlers.NewStatsHandler(store))
		r.Get("/milestones", handlers.NewMilestonesHandler(store))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s:%s/swagger/doc.json", appHost, appPort)),
	))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", appHost, appPort),
		Handler: r,
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		logger.Log.Infof("HTTP server listening on %s:%s", appHost, appPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr := <-errChan:
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}

	// Pending remote writes are flushed before the mirror connections close.
	if err := store.Close(shutdownCtx); err != nil {
		logger.Log.Errorw("failed to drain mirror queue", "error", err)
	}

	logger.Log.Info("HTTP server stopped gracefully")
	return nil
}
