package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"tabify/internal/config"
	"tabify/internal/db"
	"tabify/internal/importer"
	"tabify/internal/logger"
	menurepo "tabify/internal/repository/menu"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to menu CSV (id,name,price,category,image)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	log, err := logger.New("importer", cfg.LogLevel)
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

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	start := time.Now()
	count, err := importer.NewCSVImporter(f, menurepo.NewPostgres(pool, log)).Run(ctx)
	if err != nil {
		log.Fatal("import failed", zap.Error(err))
	}

	fmt.Printf("Imported %d menu items in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
