// Command migrate applies the embedded schema migrations.
//
//	migrate up | down | version
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ariefcatur/go-storefront-checkout/internal/config"
	"github.com/ariefcatur/go-storefront-checkout/internal/postgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := config.NewLogger(cfg)

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	m, err := postgres.NewMigrator(cfg.PostgresDSN)
	if err != nil {
		log.Error("migrator", "err", err)
		os.Exit(1)
	}
	defer m.Close()

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			err = verr
			break
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
	default:
		log.Error("unknown command", "cmd", cmd)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error("migrate "+cmd, "err", err)
		os.Exit(1)
	}
	log.Info("migrate done", "cmd", cmd)
}
