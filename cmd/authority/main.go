package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tabify/internal/config"
	"tabify/internal/db"
	"tabify/internal/events"
	"tabify/internal/httpserver"
	"tabify/internal/hub"
	"tabify/internal/logger"
	"tabify/internal/migrate"
	"tabify/internal/relay"
	menurepo "tabify/internal/repository/menu"
	orderrepo "tabify/internal/repository/order"
	menusvc "tabify/internal/service/menu"
	ordersvc "tabify/internal/service/order"
)

func main() {
	cfg := config.FromEnv()
	log, err := logger.New("authority", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]httpserver.Pinger{}
	var (
		orders orderrepo.Repository = orderrepo.NewMemory()
		menu   menurepo.Repository  = menurepo.NewStatic(menurepo.DefaultItems())
	)
	if cfg.DBConnString != "" {
		pool := connectDB(ctx, cfg.DBConnString, log)
		defer pool.Close()
		orders = orderrepo.NewPostgres(pool, log)
		menu = menurepo.NewPostgres(pool, log)
		checks["db"] = pool
	} else {
		log.Info("DB_DSN not set, keeping orders in memory")
	}

	orderService := ordersvc.New(orders, log)
	syncHub := hub.New(orderService, log, hub.Options{OriginPatterns: originHosts(cfg.CORSAllowOrigins)})

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		rel := relay.New(rdb, cfg.RedisChannel, log)
		sub, err := rel.Subscribe(ctx)
		if err != nil {
			log.Fatal("subscribe to order relay", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer sub.Close()
		go func() {
			if err := sub.Run(ctx, syncHub.Deliver); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("order relay stopped", zap.Error(err))
			}
		}()
		orderService.AddPublisher(rel)
		checks["redis"] = rel
		log.Info("relaying order events through redis", zap.String("channel", cfg.RedisChannel))
	} else {
		orderService.AddPublisher(syncHub)
	}

	if cfg.AMQPURL != "" {
		pub, conn, err := events.Dial(cfg.AMQPURL, log)
		if err != nil {
			log.Warn("integration events disabled", zap.Error(err))
		} else {
			defer conn.Close()
			defer pub.Close()
			orderService.AddPublisher(pub)
		}
	}

	srv := httpserver.New(cfg.HTTPAddr, log, httpserver.Deps{
		Orders:       orderService,
		Menu:         menusvc.New(menu),
		Sync:         syncHub,
		Checks:       checks,
		AllowOrigins: cfg.CORSAllowOrigins,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	syncHub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	} else {
		log.Info("server stopped")
	}
	cancel()
}

func connectDB(ctx context.Context, dsn string, log *zap.Logger) *pgxpool.Pool {
	pool, err := db.Connect(ctx, dsn, 30*time.Second, log)
	if err != nil {
		log.Fatal("connect to db", zap.Error(err))
	}
	version, err := migrate.Apply(ctx, pool)
	if err != nil {
		pool.Close()
		log.Fatal("apply migrations", zap.Error(err))
	}
	log.Info("database ready", zap.Uint("schema_version", version))
	return pool
}

// originHosts turns CORS origins into websocket origin host patterns.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			hosts = append(hosts, o)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
