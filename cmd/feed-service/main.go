package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Drivers
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	// Instrumentation
	"github.com/exaring/otelpgx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	// Internal
	"github.com/jupiterclapton/cenackle-feed/config"
	"github.com/jupiterclapton/cenackle-feed/internal/adapters/primary/events"
	"github.com/jupiterclapton/cenackle-feed/internal/adapters/primary/healthcheck"
	"github.com/jupiterclapton/cenackle-feed/internal/adapters/primary/httpapi"
	"github.com/jupiterclapton/cenackle-feed/internal/adapters/secondary/cache"
	"github.com/jupiterclapton/cenackle-feed/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle-feed/internal/adapters/secondary/graph"
	"github.com/jupiterclapton/cenackle-feed/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle-feed/internal/auth"
	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
	"github.com/jupiterclapton/cenackle-feed/internal/core/services"
)

func main() {
	// 1. Config & Logger
	cfg := config.Load()
	initLogger(cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("🚀 Starting Feed Service", "config", cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Tracing
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	probes := map[string]healthcheck.Probe{}

	// 3. Driven adapters
	posts, closePosts := mustPostStore(ctx, cfg, probes)
	defer closePosts()

	followGraph, closeGraph := mustFollowGraph(ctx, cfg, probes)
	defer closeGraph()

	pageCache, closeCache := mustPageCache(ctx, cfg, probes)
	defer closeCache()

	// Every replica stamps its events so it can skip its own.
	origin := uuid.NewString()

	var nc *nats.Conn
	var publisher ports.EventPublisher
	if cfg.NatsUrl != "" {
		nc, err = nats.Connect(cfg.NatsUrl, nats.Name("feed-service"))
		if err != nil {
			slog.Error("Unable to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		publisher = eventbroker.NewNatsPublisher(nc, origin)
		probes["nats"] = func(context.Context) error {
			if status := nc.Status(); status != nats.CONNECTED {
				return fmt.Errorf("nats status %s", status)
			}
			return nil
		}
		slog.Info("✅ Connected to NATS")
	} else {
		slog.Warn("NATS_URL empty, cache invalidations stay local")
	}

	// 4. Core
	composer := services.NewFeedComposer(posts, followGraph, cfg.PageSize)
	feedService := services.NewFeedService(composer, posts, followGraph, pageCache, publisher, services.CacheTTLs{
		domain.KindGlobal: cfg.CacheTTLGlobal,
		domain.KindGroup:  cfg.CacheTTLGroup,
		domain.KindAuthor: cfg.CacheTTLAuthor,
		domain.KindFollow: cfg.CacheTTLFollow,
	})

	// 5. NATS consumer (driving adapter, async)
	if nc != nil {
		handler := events.NewEventHandler(feedService, origin)
		if _, err := nc.Subscribe(eventbroker.SubjectFollowChanged, handler.HandleFollowChanged); err != nil {
			slog.Error("Failed to subscribe to NATS", "subject", eventbroker.SubjectFollowChanged, "error", err)
			os.Exit(1)
		}
		if _, err := nc.Subscribe(eventbroker.SubjectCacheFlush, handler.HandleCacheFlush); err != nil {
			slog.Error("Failed to subscribe to NATS", "subject", eventbroker.SubjectCacheFlush, "error", err)
			os.Exit(1)
		}
		slog.Info("👂 Listening for events (NATS)")
	}

	// 6. HTTP server (driving adapter, sync)
	var h http.Handler = httpapi.NewHandler(feedService).Routes()

	// A. Auth (injects the viewer)
	if cfg.JWTPublicKeyPath != "" {
		pem, err := os.ReadFile(cfg.JWTPublicKeyPath)
		if err != nil {
			slog.Error("Unable to read JWT public key", "path", cfg.JWTPublicKeyPath, "error", err)
			os.Exit(1)
		}
		verifier, err := auth.NewVerifier(pem, cfg.JWTIssuer)
		if err != nil {
			slog.Error("Invalid JWT public key", "error", err)
			os.Exit(1)
		}
		h = auth.Middleware(verifier)(h)
	} else {
		slog.Warn("JWT_PUBLIC_KEY_PATH empty, every request is anonymous")
	}

	// B. CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:19006"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "baggage", "traceparent"},
		AllowCredentials: true,
	})
	h = c.Handler(h)

	// C. OTEL HTTP (root span)
	h = otelhttp.NewHandler(h, "feed-http", otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	mux := http.NewServeMux()
	mux.Handle("/", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	srvHTTP := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("📡 Feed Service HTTP listening", "port", cfg.HTTPPort)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// 7. gRPC health & reflection
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen", "error", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	monitor := healthcheck.NewMonitor(healthServer, probes, 10*time.Second)
	go monitor.Run(ctx)

	go func() {
		slog.Info("📡 Feed Service gRPC health listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("🛑 Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	if nc != nil {
		if err := nc.Drain(); err != nil {
			slog.Warn("NATS drain failed", "error", err)
		}
	}

	slog.Info("👋 Server exited")
}

// --- Helpers ---

func mustPostStore(ctx context.Context, cfg config.Config, probes map[string]healthcheck.Probe) (ports.PostStore, func()) {
	switch cfg.PostStore {
	case config.BackendPostgres:
		dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
		if err != nil {
			slog.Error("Unable to parse DB config", "error", err)
			os.Exit(1)
		}
		// SQL instrumentation
		dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

		dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
		if err != nil {
			slog.Error("Unable to connect to database", "error", err)
			os.Exit(1)
		}
		store := repository.NewPostgresStore(dbPool)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("Unable to prepare database schema", "error", err)
			os.Exit(1)
		}
		probes["postgres"] = store.Ping
		slog.Info("✅ Connected to Postgres")
		return store, dbPool.Close

	case config.BackendSQLite:
		store, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			slog.Error("Unable to open SQLite database", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		probes["sqlite"] = store.Ping
		slog.Info("✅ Opened SQLite", "path", cfg.SQLitePath)
		return store, func() { _ = store.Close() }

	default:
		slog.Warn("Using in-memory post store, data is lost on exit")
		return repository.NewMemoryStore(), func() {}
	}
}

func mustFollowGraph(ctx context.Context, cfg config.Config, probes map[string]healthcheck.Probe) (ports.FollowGraph, func()) {
	if cfg.FollowGraph != config.BackendNeo4j {
		slog.Warn("Using in-memory follow graph, data is lost on exit")
		return graph.NewMemoryGraph(), func() {}
	}

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		slog.Error("Failed to create neo4j driver", "error", err)
		os.Exit(1)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		slog.Error("Failed to connect to Neo4j", "error", err)
		os.Exit(1)
	}

	g := graph.NewNeo4jGraph(driver)
	if err := g.EnsureSchema(verifyCtx); err != nil {
		slog.Error("Failed to create Neo4j constraints", "error", err)
		os.Exit(1)
	}
	probes["neo4j"] = driver.VerifyConnectivity
	slog.Info("✅ Connected to Neo4j")
	return g, func() { _ = driver.Close(context.Background()) }
}

func mustPageCache(ctx context.Context, cfg config.Config, probes map[string]healthcheck.Probe) (ports.PageCache, func()) {
	if cfg.PageCache != config.BackendRedis {
		return cache.NewMemoryPageCache(cache.WithMaxEntries(cfg.CacheMaxEntries)), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	// Redis instrumentation
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		panic(err)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	probes["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	slog.Info("✅ Connected to Redis")
	return cache.NewRedisPageCache(rdb, cfg.CacheNamespace), func() { _ = rdb.Close() }
}

func initLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Env == "local" {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, _ := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("feed-service"),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
