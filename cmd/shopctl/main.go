// Command shopctl runs one-off administrative shop operations against the
// configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/byceps/byceps-sub001/internal/di"
	"github.com/byceps/byceps-sub001/internal/platform/config"
	"github.com/byceps/byceps-sub001/internal/platform/observability"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2

	downloadLinkTTL = 15 * time.Minute
)

var errUsage = errors.New("usage error")

// containerFactory opens the dependencies a command runs against. The
// returned function releases them.
type containerFactory func(ctx context.Context) (*di.Container, func(), error)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *cliEnv, args []string) error
}

type cliEnv struct {
	stdout    io.Writer
	stderr    io.Writer
	container containerFactory
}

var commands = map[string]command{
	"create-brand": {
		name:    "create-brand",
		summary: "create a brand with its email sender",
		run:     runCreateBrand,
	},
	"create-shop": {
		name:    "create-shop",
		summary: "create a shop with its number sequences and an optional storefront",
		run:     runCreateShop,
	},
	"remove-user-sessions": {
		name:    "remove-user-sessions",
		summary: "remove the sessions of one user, or of all users",
		run:     runRemoveUserSessions,
	},
	"export-order": {
		name:    "export-order",
		summary: "write the accounting XML export of an order, or upload it",
		run:     runExportOrder,
	},
	"generate-order-number": {
		name:    "generate-order-number",
		summary: "allocate the next order number from a sequence",
		run:     runGenerateOrderNumber,
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	env := &cliEnv{stdout: os.Stdout, stderr: os.Stderr, container: openContainer}
	code := run(ctx, env, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, env *cliEnv, args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(env.stderr)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(env.stderr, "shopctl: unknown command %q\n\n", args[0])
		printUsage(env.stderr)
		return exitUsage
	}
	err := cmd.run(ctx, env, args[1:])
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(env.stderr, "shopctl %s: %v\n", cmd.name, err)
		return exitUsage
	default:
		fmt.Fprintf(env.stderr, "shopctl %s: %v\n", cmd.name, err)
		return exitError
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: shopctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-22s %s\n", name, commands[name].summary)
	}
}

// parseFlags parses args and reports flag errors as usage errors.
func parseFlags(fs *flag.FlagSet, env *cliEnv, args []string) error {
	fs.SetOutput(env.stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %s", errUsage, strings.Join(fs.Args(), " "))
	}
	return nil
}

func requireFlags(values map[string]string) error {
	var missing []string
	for name, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: missing required flags %s", errUsage, strings.Join(missing, ", "))
}

func openContainer(ctx context.Context) (*di.Container, func(), error) {
	envValues, err := config.EnvironmentValues()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(envValues["LOG_LEVEL"])
	if err != nil {
		return nil, nil, err
	}
	logger = logger.Named("shopctl")
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	container, err := di.NewContainer(ctx, cfg, di.Options{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return container, release, nil
}
