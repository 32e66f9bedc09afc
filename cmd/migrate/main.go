// migrate manages the database schema from embedded SQL.
//
//	go run ./cmd/migrate up          apply all pending migrations
//	go run ./cmd/migrate down 2      roll back two migrations
//	go run ./cmd/migrate version     print current schema version
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"identity-plane/internal/config"
	"identity-plane/internal/db/migrate"
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal("config:", err)
	}
	if cfg.DatabaseURL == "" {
		fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	switch cmd {
	case "up":
		err = migrate.Run(cfg.DatabaseURL, "up")
	case "down":
		if arg := flag.Arg(1); arg != "" {
			n, convErr := strconv.Atoi(arg)
			if convErr != nil || n <= 0 {
				fatal("down: step count must be a positive integer, got", arg)
			}
			err = migrate.Steps(cfg.DatabaseURL, -n)
		} else {
			err = migrate.Run(cfg.DatabaseURL, "down")
		}
	case "version":
		v, dirty, verErr := migrate.Version(cfg.DatabaseURL)
		if errors.Is(verErr, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if verErr != nil {
			fatal("version:", verErr)
		}
		if dirty {
			fmt.Printf("version %d (dirty)\n", v)
		} else {
			fmt.Printf("version %d\n", v)
		}
		return
	default:
		fatal("unknown command:", cmd, "(want up, down or version)")
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fatal("migrate:", err)
	}
}

func fatal(args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}
