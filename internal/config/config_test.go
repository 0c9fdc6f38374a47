package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DEDUP_TTL", "")
	t.Setenv("PUBLIC_BASE_URL", "")

	cfg := Load()

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 72*time.Hour, cfg.DedupTTL)
	assert.Equal(t, "usd", cfg.Currency)
	assert.False(t, cfg.ReleaseOnSessionExpired)
	assert.False(t, cfg.S3.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("DEDUP_TTL", "24h")
	t.Setenv("CHECKOUT_SESSION_TTL", "45m")
	t.Setenv("RELEASE_ON_SESSION_EXPIRED", "true")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")
	t.Setenv("CHECKOUT_CURRENCY", "USD")
	t.Setenv("NOTIFIER_WORKERS", "nope")

	cfg := Load()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 24*time.Hour, cfg.DedupTTL)
	assert.Equal(t, 45*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.ReleaseOnSessionExpired)
	assert.Equal(t, "https://shop.example.com", cfg.PublicBaseURL)
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, 2, cfg.NotifierWorkers)
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	t.Setenv("DOWNLOAD_LINK_TTL", "forever")

	cfg := Load()

	assert.Equal(t, 7*24*time.Hour, cfg.DownloadLinkTTL)
}

func TestLoad_SessionTTLClamped(t *testing.T) {
	cases := map[string]time.Duration{
		"":    0,
		"5m":  MinSessionTTL,
		"45m": 45 * time.Minute,
		"48h": MaxSessionTTL,
		"-1h": 0,
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("CHECKOUT_SESSION_TTL", raw)
			assert.Equal(t, want, Load().SessionTTL)
		})
	}
}
