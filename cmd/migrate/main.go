package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tabify/internal/config"
	"tabify/internal/db"
	"tabify/internal/logger"
	"tabify/internal/migrate"
)

func main() {
	cfg := config.FromEnv()
	log, err := logger.New("migrate", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if cfg.DBConnString == "" {
		log.Fatal("DB_DSN is required")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, 30*time.Second, log)
	if err != nil {
		log.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	version, err := migrate.Apply(ctx, pool)
	if err != nil {
		log.Fatal("apply migrations", zap.Error(err))
	}

	log.Info("migrations applied", zap.Uint("version", version))
}
