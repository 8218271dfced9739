package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tabify/internal/client/api"
	"tabify/internal/client/cart"
	"tabify/internal/client/checkout"
	"tabify/internal/client/recovery"
	"tabify/internal/client/syncchan"
	"tabify/internal/config"
	"tabify/internal/logger"
)

func main() {
	cfg := config.ClientFromEnv()
	log, err := logger.New("customer", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient, err := api.New(cfg.APIBaseURL, nil)
	if err != nil {
		log.Fatal("api client", zap.Error(err))
	}
	active := recovery.NewFile(cfg.StateFile)
	channel := syncchan.New(syncchan.WebsocketDialer{URL: cfg.SyncURL}, active, log, syncchan.Options{})
	channel.Open(ctx)
	defer channel.Close()

	carts := cart.New()
	a := &app{
		ctx:       ctx,
		out:       os.Stdout,
		log:       log,
		cfg:       cfg,
		api:       apiClient,
		channel:   channel,
		cart:      carts,
		active:    active,
		submitter: checkout.New(carts, channel, active, log),
	}
	a.loadMenu()
	a.resume()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	a.help()
	a.prompt()
	for {
		select {
		case <-ctx.Done():
			a.stopTracking()
			return
		case line, ok := <-lines:
			if !ok || !a.exec(line) {
				a.stopTracking()
				return
			}
			a.prompt()
		}
	}
}
