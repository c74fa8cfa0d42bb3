package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"stellerom/internal/adapters/geocode"
	server "stellerom/internal/adapters/http_server"
	"stellerom/internal/adapters/memcache"
	"stellerom/internal/adapters/observability"
	redisad "stellerom/internal/adapters/redis"
	"stellerom/internal/adapters/reviewapi"
	"stellerom/internal/adapters/roomapi"
	"stellerom/internal/adapters/upstream"
	"stellerom/internal/app"
	"stellerom/internal/domain"
	"stellerom/internal/shared"
)

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// room cache: redis when configured, in-process otherwise
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed, rooms will be fetched on every cache error")
		} else {
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis connection ok")
		}
		cancel()
		cache = rc
	} else {
		mc := memcache.New()
		mc.Start()
		defer mc.Stop()
		cache = mc
	}

	opts := upstream.Options{Timeout: cfg.RequestTimeout, RPS: cfg.UpstreamRPS}
	roomHTTP, err := upstream.New(roomapi.Service, cfg.RoomAPIURL, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("room api client")
	}
	reviewHTTP, err := upstream.New(reviewapi.Service, cfg.ReviewAPIURL, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("review api client")
	}

	var geocoder domain.Geocoder
	if cfg.GoogleMapsKey != "" {
		g, err := geocode.NewGoogle(cfg.GoogleMapsKey)
		if err != nil {
			log.Fatal().Err(err).Msg("google maps client")
		}
		geocoder = g
	}

	sessions := app.NewSessionStore(cfg.SessionTTL)
	sessions.Start()
	defer sessions.Stop()

	svc := app.NewService(
		roomapi.New(roomHTTP, cache, cfg.RoomCacheTTL),
		reviewapi.New(reviewHTTP),
		geocoder,
		sessions,
	)

	h, err := server.NewHandlers(svc)
	if err != nil {
		log.Fatal().Err(err).Msg("templates")
	}
	// room details call both APIs in parallel, so one upstream budget covers a page
	srv := server.New(upstream.Budget(cfg.RequestTimeout) + 5*time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	if err := srv.MountHandlers(h, cfg.SessionTTL, cfg.CORSOrigins); err != nil {
		log.Fatal().Err(err).Msg("routes")
	}

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("room_api", cfg.RoomAPIURL).
		Str("review_api", cfg.ReviewAPIURL).
		Msg("web listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
