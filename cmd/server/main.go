// Command server runs the consular scheduling engine: availability
// computation, appointment booking and the service request workflow behind
// one HTTP API.
//
// Postgres, Redis and Kafka are all optional: an unset URL degrades to
// in-memory stores, no availability cache and log-only notifications, which
// keeps local development dependency-free.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"consular/internal/appointment"
	"consular/internal/appointment/daylock"
	apptservice "consular/internal/appointment/service"
	"consular/internal/availability"
	"consular/internal/jwtauth"
	"consular/internal/notify"
	"consular/internal/platform/config"
	"consular/internal/platform/httpserver"
	"consular/internal/platform/logger"
	"consular/internal/platform/metrics"
	"consular/internal/platform/postgres"
	platformredis "consular/internal/platform/redis"
	"consular/internal/profile"
	"consular/internal/request"
	reqservice "consular/internal/request/service"
	"consular/internal/schedule"
	httptransport "consular/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New()
	m := metrics.New()

	pool, err := postgres.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	scheduleStore, appointmentStore, requestStore, profileStore := buildStores(pool)
	if cfg.Availability.ScheduleCacheSize > 0 {
		cached, err := schedule.NewCaching(scheduleStore, cfg.Availability.ScheduleCacheSize)
		if err != nil {
			return fmt.Errorf("schedule cache: %w", err)
		}
		scheduleStore = cached
	}

	resolver, err := schedule.NewResolver(scheduleStore, schedule.WithLogger(log))
	if err != nil {
		return err
	}

	var notifier notify.Notifier = notify.NewLogging(log)
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer kafka.Close(context.Background())
		notifier = kafka
	}

	availabilityOpts := []availability.Option{
		availability.WithMetrics(m),
		availability.WithLogger(log),
	}
	if redisClient != nil {
		cache := availability.NewRedisCache(redisClient, cfg.Availability.CacheTTL, log)
		availabilityOpts = append(availabilityOpts, availability.WithCache(cache))
	}
	availabilitySvc, err := availability.New(resolver, appointmentStore, availabilityOpts...)
	if err != nil {
		return err
	}

	appointmentSvc, err := apptservice.New(appointmentStore, resolver, daylock.New(),
		apptservice.WithNotifier(notifier),
		apptservice.WithAvailabilityCache(availabilitySvc),
		apptservice.WithMetrics(m),
		apptservice.WithLogger(log),
	)
	if err != nil {
		return err
	}

	profileSvc, err := profile.NewService(profileStore, profile.WithLogger(log))
	if err != nil {
		return err
	}

	requestSvc, err := reqservice.New(requestStore, profileStore, appointmentStore,
		reqservice.WithNotifier(notifier),
		reqservice.WithMetrics(m),
		reqservice.WithLogger(log),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Metrics:        m,
		JWTValidator:   jwtauth.NewService(cfg.Auth.JWTSigningKey),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Availability:   httptransport.NewAvailabilityHandler(availabilitySvc),
		Schedules:      httptransport.NewScheduleHandler(scheduleStore),
		Appointments:   httptransport.NewAppointmentHandler(appointmentSvc),
		Requests:       httptransport.NewRequestHandler(requestSvc),
		Profiles:       httptransport.NewProfileHandler(profileSvc),
		Healthz:        healthCheck(pool, redisClient),
	})

	server := httpserver.New(cfg.HTTP.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTP.Addr,
			"postgres", pool != nil, "redis", redisClient != nil, "kafka", len(cfg.Kafka.Brokers) > 0)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// buildStores picks Postgres-backed stores when a pool is configured and
// in-memory stores otherwise.
func buildStores(pool *pgxpool.Pool) (schedule.Store, appointment.Store, request.Store, profile.Store) {
	if pool == nil {
		return schedule.NewInMemory(), appointment.NewInMemory(), request.NewInMemory(), profile.NewInMemory()
	}
	return schedule.NewPostgres(pool), appointment.NewPostgres(pool), request.NewPostgres(pool), profile.NewPostgres(pool)
}

func healthCheck(pool *pgxpool.Pool, redisClient *platformredis.Client) func() error {
	return func() error {
		ctx := context.Background()
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
