package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/tipledger-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var Embedded embed.FS

// Source picks the migration files: the ones compiled into the binary, or
// dir on disk.
func Source(dir string, embedded bool) (fs.FS, error) {
	if embedded {
		return fs.Sub(Embedded, "migrations")
	}
	if dir == "" {
		return nil, errors.New("migrations dir is required")
	}
	return os.DirFS(dir), nil
}

// Execute runs one of up, down, status or version against db. version
// migrates up or down to target (YYYYMMDDHHMMSS).
func Execute(ctx context.Context, logg *logger.Logger, db *sql.DB, fsys fs.FS, command, target string) error {
	if db == nil {
		return errors.New("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		logResults(ctx, logg, results)
		return wrapGoose(command, err)
	case "down":
		result, err := provider.Down(ctx)
		if result != nil {
			logResults(ctx, logg, []*goose.MigrationResult{result})
		}
		return wrapGoose(command, err)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return wrapGoose(command, err)
		}
		for _, st := range statuses {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"version":    st.Source.Version,
				"path":       st.Source.Path,
				"state":      string(st.State),
				"applied_at": st.AppliedAt,
			}), "migration status")
		}
		return nil
	case "version":
		return migrateTo(ctx, logg, provider, target)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

func migrateTo(ctx context.Context, logg *logger.Logger, provider *goose.Provider, target string) error {
	if target == "" {
		return errors.New("target version is required")
	}
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == version:
		return nil
	case current < version:
		results, err = provider.UpTo(ctx, version)
	default:
		results, err = provider.DownTo(ctx, version)
	}
	logResults(ctx, logg, results)
	return wrapGoose(fmt.Sprintf("migrate to %d", version), err)
}

func logResults(ctx context.Context, logg *logger.Logger, results []*goose.MigrationResult) {
	if logg == nil {
		return
	}
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     r.Source.Version,
			"direction":   r.Direction,
			"duration_ms": r.Duration.Milliseconds(),
		}), "migration applied")
	}
}

func wrapGoose(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}
