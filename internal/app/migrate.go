package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bixapp/bix/internal/config"
	"github.com/bixapp/bix/internal/db"
)

const (
	migrationAttempts    = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

// Postgres codes worth another attempt: serialization_failure,
// deadlock_detected and lock_not_available.
var retryablePgErrorCodes = map[string]struct{}{
	"40001": {},
	"40P01": {},
	"55P03": {},
}

func runMigrations(ctx context.Context, args []string) error {
	command := "up"
	if len(args) > 0 && args[0] != "" {
		command = args[0]
	}
	switch command {
	case "up", "status":
	case "down":
		return errors.New("down migrations are not supported")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir, err := resolveDir(cfg.MigrationDir)
	if err != nil {
		return err
	}
	names, err := listMigrations(dir)
	if err != nil {
		return err
	}

	return withConn(ctx, cfg.DatabaseURL, func(conn *pgxpool.Conn) error {
		applied, err := appliedMigrations(ctx, conn)
		if err != nil {
			return err
		}

		if command == "status" {
			printStatus(os.Stdout, names, applied)
			return nil
		}

		pending := 0
		for _, name := range names {
			if _, ok := applied[name]; ok {
				continue
			}
			pending++

			contents, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("read migration %s: %w", name, err)
			}
			err = withRetry(ctx, migrationAttempts, func(int) error {
				return applyMigration(ctx, conn, name, string(contents))
			}, func(attempt int, err error) {
				fmt.Printf("transient error applying migration %s (attempt %d/%d): %v\n", name, attempt, migrationAttempts, err)
			})
			if err != nil {
				return err
			}
			fmt.Printf("applied migration %s\n", name)
		}
		if pending == 0 {
			fmt.Println("database is up to date")
		}
		return nil
	})
}

func runSeed(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir, err := resolveDir(cfg.SeedDir)
	if err != nil {
		return err
	}

	name := seedFileName(args[0])
	contents, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read seed %s: %w", name, err)
	}

	return withConn(ctx, cfg.DatabaseURL, func(conn *pgxpool.Conn) error {
		if _, err := conn.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply seed %s: %w", name, err)
		}
		fmt.Printf("applied seed %s\n", name)
		return nil
	})
}

func withConn(ctx context.Context, databaseURL string, fn func(*pgxpool.Conn) error) error {
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return fn(conn)
}

// resolveDir anchors a relative directory at the working directory.
func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return filepath.Join(wd, dir), nil
}

// listMigrations returns the .sql files in dir in apply order.
func listMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func seedFileName(name string) string {
	if strings.HasSuffix(name, ".sql") {
		return name
	}
	return name + "_seed.sql"
}

func printStatus(w io.Writer, names []string, applied map[string]struct{}) {
	for _, name := range names {
		mark := " "
		if _, ok := applied[name]; ok {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %s\n", mark, name)
	}
}

func appliedMigrations(ctx context.Context, conn *pgxpool.Conn) (map[string]struct{}, error) {
	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}
	return applied, nil
}

// applyMigration runs one file and records it in a single serializable transaction.
func applyMigration(ctx context.Context, conn *pgxpool.Conn, name, contents string) error {
	return pgx.BeginTxFunc(ctx, conn, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, contents); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		return nil
	})
}

// withRetry calls fn up to attempts times with exponential backoff, retrying
// only errors isRetryable accepts. onRetry is told about each failed attempt
// that will be retried.
func withRetry(ctx context.Context, attempts int, fn func(attempt int) error, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = fn(attempt)
		if err == nil || !isRetryable(err) {
			return err
		}
		if attempt < attempts && onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return fmt.Errorf("exceeded %d attempts: %w", attempts, err)
}

func backoff(retry int) time.Duration {
	d := migrationBaseBackoff << (retry - 1)
	if d > migrationMaxBackoff || d <= 0 {
		return migrationMaxBackoff
	}
	return d
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgErrorCodes[pgErr.Code]
		return ok
	}
	return false
}
