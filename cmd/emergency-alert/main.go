package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/mr1hm/go-emergency-alerts/internal/api"
	"github.com/mr1hm/go-emergency-alerts/internal/config"
	"github.com/mr1hm/go-emergency-alerts/internal/engine"
	"github.com/mr1hm/go-emergency-alerts/internal/events"
	"github.com/mr1hm/go-emergency-alerts/internal/gateway"
	"github.com/mr1hm/go-emergency-alerts/internal/intake"
	"github.com/mr1hm/go-emergency-alerts/internal/logging"
	"github.com/mr1hm/go-emergency-alerts/internal/models"
	"github.com/mr1hm/go-emergency-alerts/internal/notification"
	"github.com/mr1hm/go-emergency-alerts/internal/protocol"
	"github.com/mr1hm/go-emergency-alerts/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logCloser := logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Broadcaster feeds the SSE stream; Redis carries events to other services
	broadcaster := events.NewBroadcaster()
	bus := events.MultiBus{broadcaster}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, events will only be streamed locally", "addr", cfg.Redis.Addr, "error", err)
		}
		bus = append(bus, events.NewRedisStreamBus(rdb, cfg.Redis.Stream, cfg.Redis.StreamMaxLen))
	}

	loc, _ := time.LoadLocation(cfg.Protocol.Timezone)
	resolver := protocol.NewResolver(
		protocol.WithLocation(loc),
		protocol.WithNightWindow(cfg.Protocol.NightStart, cfg.Protocol.NightEnd),
	)

	dispatcher := notification.NewDispatcher(
		notification.WithTimeout(cfg.Dispatch.Timeout),
		notification.WithProviders(models.ChannelSMS,
			newProvider("sms-primary", models.ChannelSMS, cfg.Dispatch.SMSPrimary, cfg.Dispatch.Timeout),
			newProvider("sms-secondary", models.ChannelSMS, cfg.Dispatch.SMSSecondary, cfg.Dispatch.Timeout),
		),
		notification.WithProviders(models.ChannelVoice, newProvider("voice", models.ChannelVoice, cfg.Dispatch.Voice, cfg.Dispatch.Timeout)),
		notification.WithProviders(models.ChannelEmail, newProvider("email", models.ChannelEmail, cfg.Dispatch.Email, cfg.Dispatch.Timeout)),
		notification.WithProviders(models.ChannelPush, newProvider("push", models.ChannelPush, cfg.Dispatch.Push, cfg.Dispatch.Timeout)),
	)

	opts := []engine.Option{
		engine.WithResolver(resolver),
		engine.WithBus(bus),
		engine.WithActionTimeout(cfg.Actions.Timeout),
	}
	opts = append(opts, responderOptions(cfg)...)
	eng := engine.New(db, db, dispatcher, opts...)

	// Start trigger intake
	mgr := intake.NewManager(cfg, eng)
	if err := mgr.Start(ctx); err != nil {
		logging.Fatalf("Failed to start intake: %v", err)
	}

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

	handler := api.NewHandler(eng, db, broadcaster, db)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	mgr.Stop()
	cancel()
	broadcaster.Close() // Close all streams gracefully

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

func newProvider(name string, channel models.Channel, ep config.ProviderEndpoint, timeout time.Duration) notification.Provider {
	if ep.URL == "" {
		slog.Warn("no endpoint configured, notifications will be logged", "provider", name)
		return gateway.NewLogProvider(name)
	}
	return gateway.NewHTTPProvider(name, channel, ep.URL, gateway.ClientConfig{
		APIKey:  ep.APIKey,
		Timeout: timeout,
	})
}

// responderOptions wires the webhook gateways when any action endpoint is
// set and falls back to logging otherwise.
func responderOptions(cfg *config.Config) []engine.Option {
	a := cfg.Actions
	client := gateway.ClientConfig{APIKey: a.APIKey, Timeout: a.Timeout, RetryCount: 1}

	var opts []engine.Option
	if a.EMSURL == "" && a.ProvidersURL == "" && a.MonitoringURL == "" {
		slog.Warn("no action endpoints configured, immediate actions will be logged")
		opts = append(opts,
			engine.WithEMSCaller(gateway.LogResponder{}),
			engine.WithProviderPager(gateway.LogResponder{}),
			engine.WithMonitoringController(gateway.LogResponder{}),
		)
	} else {
		webhook := gateway.NewActionWebhook(gateway.ActionEndpoints{
			EMS:        a.EMSURL,
			Providers:  a.ProvidersURL,
			Monitoring: a.MonitoringURL,
		}, client)
		opts = append(opts,
			engine.WithEMSCaller(webhook),
			engine.WithProviderPager(webhook),
			engine.WithMonitoringController(webhook),
		)
	}

	if a.ConsultationURL == "" {
		opts = append(opts, engine.WithConsultationRequester(gateway.LogResponder{}))
	} else {
		opts = append(opts, engine.WithConsultationRequester(gateway.NewHTTPConsultationRequester(a.ConsultationURL, client)))
	}
	return opts
}
