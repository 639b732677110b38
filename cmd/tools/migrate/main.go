package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/noah-isme/autoparts-api/internal/obs"
	"github.com/noah-isme/autoparts-api/migrations"
)

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info").With().Str("component", "migrate").Logger()

	dsn := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	steps := flag.Int("steps", 1, "migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [flags] up|down|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *dsn == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		if err := migrations.Up(*dsn); err != nil {
			logger.Fatal().Err(err).Msg("migrate up")
		}
		logger.Info().Msg("schema up to date")
	case "down":
		if err := migrations.Down(*dsn, *steps); err != nil {
			logger.Fatal().Err(err).Msg("migrate down")
		}
		logger.Info().Int("steps", *steps).Msg("rolled back")
	case "version":
		v, dirty, err := migrations.Version(*dsn)
		if err != nil {
			logger.Fatal().Err(err).Msg("read version")
		}
		logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
	default:
		logger.Error().Str("command", cmd).Msg("unknown command")
		flag.Usage()
		os.Exit(2)
	}
}
