// Command migrate applies the assessment history schema.
//
//	migrate -direction up            apply every pending migration
//	migrate -direction down -steps 1 roll back one migration
//	migrate -direction force -steps N mark version N clean after a failed run
//	migrate -direction version       print the current version
package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/windfall/pronounce_service/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "up, down, force or version")
	steps := flag.Int("steps", 0, "migrations to apply or roll back (0 = all); the version for force")
	dbURL := flag.String("db", "", "database URL (default $DATABASE_URL)")
	dir := flag.String("path", "migrations", "directory holding the migration files")
	flag.Parse()

	_ = godotenv.Load()
	log := logger.Component(logger.New(os.Getenv("LOG_LEVEL"), "console"), "migrate")

	if *dbURL == "" {
		*dbURL = os.Getenv("DATABASE_URL")
	}
	if *dbURL == "" {
		log.Fatal().Msg("Database URL is required: pass -db or set DATABASE_URL")
	}

	m, err := migrate.New("file://"+*dir, *dbURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dir).Msg("Failed to open migrations")
	}
	defer m.Close()

	switch *direction {
	case "up":
		err = run(m.Up, m.Steps, *steps)
	case "down":
		err = run(m.Down, func(n int) error { return m.Steps(-n) }, *steps)
	case "force":
		if *steps <= 0 {
			log.Fatal().Msg("force needs -steps set to the version to force")
		}
		err = m.Force(*steps)
	case "version":
	default:
		log.Fatal().Str("direction", *direction).Msg("Unknown direction")
	}

	noChange := errors.Is(err, migrate.ErrNoChange)
	if err != nil && !noChange {
		log.Fatal().Err(err).Str("direction", *direction).Msg("Migration failed")
	}

	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		log.Info().Msg("No migrations applied")
	case verr != nil:
		log.Fatal().Err(verr).Msg("Failed to read schema version")
	case noChange:
		log.Info().Uint("version", version).Msg("Schema already up to date")
	default:
		log.Info().Uint("version", version).Bool("dirty", dirty).Str("direction", *direction).Msg("Schema version")
	}
}

// run applies all migrations when n is 0 and n steps otherwise.
func run(all func() error, stepped func(int) error, n int) error {
	if n > 0 {
		return stepped(n)
	}
	return all()
}
