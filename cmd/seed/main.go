package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tabify/internal/config"
	"tabify/internal/db"
	"tabify/internal/logger"
	menurepo "tabify/internal/repository/menu"
	"tabify/internal/seed"
)

func main() {
	cfg := config.FromEnv()
	log, err := logger.New("seed", cfg.LogLevel)
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

	n, err := seed.Apply(ctx, menurepo.NewPostgres(pool, log))
	if err != nil {
		log.Fatal("seed apply", zap.Error(err))
	}

	log.Info("seed applied", zap.Int("menu_items", n))
}
