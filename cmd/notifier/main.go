package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/config"
	"github.com/ariefcatur/go-storefront-checkout/internal/fulfillment"
	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	cfg.ServiceName += "-notifier"
	log := config.NewLogger(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var mailer fulfillment.Mailer = fulfillment.LogMailer{Log: log}
	if cfg.SMTP.Host != "" {
		mailer = fulfillment.NewSMTPMailer(cfg.SMTP)
	} else {
		log.Warn("SMTP_HOST not set, owner alerts are logged instead of sent")
	}

	h := &fulfillment.OwnerAlertHandler{
		Mailer:     mailer,
		Dedup:      redisx.NewDeduper(rdb, "notifier", cfg.DedupTTL),
		OwnerEmail: cfg.OwnerEmail,
		Log:        log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, purchases.TopicOwnerAlerts, cfg.NotifierWorkers, log)

	go func() {
		log.Info("notifier consumer started", "group", cfg.NotifierGroup, "topic", purchases.TopicOwnerAlerts, "workers", cfg.NotifierWorkers)
		if err := cons.Start(ctx, h.Handle); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
