package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bixapp/bix/internal/client/api"
	"github.com/bixapp/bix/internal/session"
)

const (
	storageFile = "local.db"
	logFile     = "bixctl.log"
)

var errNotSignedIn = errors.New("not signed in: run `bixctl login` or `bixctl guest`")

// env carries what a single command invocation needs. It is opened lazily so
// commands like version never touch the data directory.
type env struct {
	serverURL string
	dataDir   string
	timeout   time.Duration
	verbose   bool

	logger  *slog.Logger
	logs    io.Closer
	storage *session.SQLiteStorage
	api     *api.Client
	auth    *api.AuthClient
	input   *bufio.Reader
}

func defaultDataDir() string {
	if v, ok := os.LookupEnv("BIX_DATA_DIR"); ok && v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bix"
	}
	return filepath.Join(home, ".bix")
}

// run wraps a command body with opening and closing the environment.
func (e *env) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := e.open(); err != nil {
			return err
		}
		defer e.close()

		e.logger.Info("running command", "command", cmd.CommandPath(), "server", e.serverURL)
		err := fn(cmd, args)
		if err != nil {
			e.logger.Warn("command failed", "command", cmd.Name(), "error", err)
		}
		return err
	}
}

func (e *env) open() error {
	if err := os.MkdirAll(e.dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	level := slog.LevelInfo
	if e.verbose {
		level = slog.LevelDebug
	}
	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(e.dataDir, logFile),
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     28,
	}
	e.logs = rotating
	e.logger = slog.New(slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: level}))

	storage, err := session.OpenSQLiteStorage(filepath.Join(e.dataDir, storageFile))
	if err != nil {
		_ = rotating.Close()
		return err
	}
	e.storage = storage
	e.api = api.New(e.serverURL, storage, api.WithLogger(e.logger))
	e.auth = api.NewAuthClient(e.api)
	return nil
}

func (e *env) close() {
	if e.storage != nil {
		if err := e.storage.Close(); err != nil {
			e.logger.Warn("close local storage", "error", err)
		}
		e.storage = nil
	}
	if e.logs != nil {
		_ = e.logs.Close()
		e.logs = nil
	}
}

func (e *env) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.timeout)
}

// resolve runs one resolution cycle and waits for its outcome. The caller
// closes the returned resolver.
func (e *env) resolve(ctx context.Context) (*session.Resolver, session.Identity, error) {
	resolver := session.NewResolver(e.storage, e.auth, session.WithLogger(e.logger))
	resolver.Start()

	id, err := resolver.Wait(ctx)
	if err != nil {
		resolver.Close()
		return nil, session.Identity{}, fmt.Errorf("session still resolving: %w", err)
	}
	e.logger.Debug("session resolved", "kind", id.Kind.String(), "id", id.ID)
	return resolver, id, nil
}

// requireIdentity resolves the session and fails unless someone is signed in.
// With account set, guests are rejected too.
func (e *env) requireIdentity(ctx context.Context, account bool) (session.Identity, error) {
	resolver, id, err := e.resolve(ctx)
	if err != nil {
		return session.Identity{}, err
	}
	resolver.Close()

	switch {
	case !id.SignedIn():
		return session.Identity{}, errNotSignedIn
	case account && id.Kind != session.KindAuthenticated:
		return session.Identity{}, errors.New("this needs an account: run `bixctl login` or `bixctl signup`")
	}
	return id, nil
}

// waitSignedIn blocks until the resolver holds a guest or an account.
func waitSignedIn(ctx context.Context, r *session.Resolver) (session.Identity, error) {
	ch := make(chan session.Identity, 1)
	unsubscribe := r.Subscribe(func(id session.Identity) {
		if id.SignedIn() {
			select {
			case ch <- id:
			default:
			}
		}
	})
	defer unsubscribe()

	if id := r.Current(); id.SignedIn() {
		return id, nil
	}
	select {
	case id := <-ch:
		return id, nil
	case <-ctx.Done():
		return r.Current(), ctx.Err()
	}
}

func (e *env) reader(cmd *cobra.Command) *bufio.Reader {
	if e.input == nil {
		e.input = bufio.NewReader(cmd.InOrStdin())
	}
	return e.input
}

func (e *env) prompt(cmd *cobra.Command, label string) (string, error) {
	cmd.Print(label)
	line, err := e.reader(cmd).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo from a terminal and falls back to a plain
// line for piped input.
func (e *env) promptPassword(cmd *cobra.Command, label string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.Print(label)
		pass, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pass), nil
	}
	return e.prompt(cmd, label)
}

func describe(id session.Identity) string {
	switch id.Kind {
	case session.KindAuthenticated:
		if id.Email != "" {
			return fmt.Sprintf("%s <%s>", id.DisplayName, id.Email)
		}
		return id.DisplayName
	case session.KindGuest:
		return fmt.Sprintf("%s (%s)", id.DisplayName, id.ID)
	default:
		return id.Kind.String()
	}
}
