package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/attribution"
	"github.com/ariefcatur/go-storefront-checkout/internal/catalog"
	"github.com/ariefcatur/go-storefront-checkout/internal/checkout"
	"github.com/ariefcatur/go-storefront-checkout/internal/config"
	"github.com/ariefcatur/go-storefront-checkout/internal/fulfillment"
	"github.com/ariefcatur/go-storefront-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/postgres"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/ariefcatur/go-storefront-checkout/internal/stripex"
	"github.com/ariefcatur/go-storefront-checkout/internal/webhook"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := config.NewLogger(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		log.Error("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required")
		os.Exit(1)
	}

	music, err := catalog.Load(cfg.MusicCatalogPath)
	if err != nil {
		log.Error("music catalog", "err", err)
		os.Exit(1)
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for owner alerts
	prod := kafkax.NewProducer(cfg.KafkaBrokers, purchases.TopicOwnerAlerts, 1024, log)
	prod.Start(ctx)

	repo := &purchases.Repo{DB: db}
	provider := stripex.NewProvider(cfg.StripeSecretKey)

	checkoutSvc := checkout.NewService(repo, provider, music, log, cfg.PublicBaseURL, cfg.Currency, cfg.SessionTTL)
	attributionSvc := attribution.NewService(&attribution.Repo{DB: db}, music, log)

	notifier := &fulfillment.Notifier{
		Mailer:    mailer(cfg, log),
		Alerts:    &fulfillment.KafkaOwnerAlerts{Producer: prod, ServiceName: cfg.ServiceName},
		Links:     links(ctx, cfg, log),
		Music:     music,
		SegmentID: cfg.FlodeskSegmentID,
		Log:       log,
	}
	if cfg.FlodeskAPIKey != "" {
		notifier.List = fulfillment.NewFlodesk(cfg.FlodeskBaseURL, cfg.FlodeskAPIKey)
	}

	processor := &webhook.Processor{
		Verifier:         stripex.NewVerifier(cfg.StripeWebhookSecret),
		Dedup:            redisx.NewDeduper(rdb, "stripe", cfg.DedupTTL),
		Store:            repo,
		Notifier:         notifier,
		Attributor:       attributionSvc,
		Log:              log,
		ReleaseOnExpired: cfg.ReleaseOnSessionExpired,
	}

	router := httpx.NewRouter()
	(&httpx.ReadyHandler{Checks: map[string]httpx.Check{
		"postgres": db.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}}).Register(router)
	(&httpx.CheckoutHandler{Service: checkoutSvc, Log: log}).Register(router)
	(&httpx.WebhookHandler{Processor: processor, Log: log}).Register(router)
	(&httpx.AnalyticsHandler{Service: attributionSvc, Log: log}).Register(router)
	(&httpx.IntentsHandler{Repo: repo, Redis: rdb, Log: log}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		// handlers still running get ErrProducerClosed from Publish
		log.Warn("http shutdown incomplete", "err", err)
	}
	prod.Close()      // close inbox: flush and close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}

func mailer(cfg config.Config, log *slog.Logger) fulfillment.Mailer {
	if cfg.SMTP.Host == "" {
		log.Warn("SMTP_HOST not set, emails are logged instead of sent")
		return fulfillment.LogMailer{Log: log}
	}
	return fulfillment.NewSMTPMailer(cfg.SMTP)
}

func links(ctx context.Context, cfg config.Config, log *slog.Logger) fulfillment.Links {
	if cfg.S3.Enabled() {
		l, err := fulfillment.NewS3Links(ctx, cfg.S3, cfg.DownloadLinkTTL)
		if err == nil {
			return l
		}
		log.Error("s3 presigner unavailable, using static download links", "err", err)
	}
	return fulfillment.StaticLinks{BaseURL: cfg.DownloadBaseURL}
}
