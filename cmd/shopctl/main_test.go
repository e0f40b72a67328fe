package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/byceps/byceps-sub001/internal/di"
	"github.com/byceps/byceps-sub001/internal/platform/config"
)

func newTestEnv(t *testing.T) (*cliEnv, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	cfg, err := config.Load(ctx,
		config.WithEnvMap(map[string]string{"SHOP_AUTH_DISABLED": "true"}),
		config.WithoutSystemEnv(),
		config.WithEnvFile(""),
	)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	container, err := di.NewContainer(ctx, cfg, di.Options{})
	if err != nil {
		t.Fatalf("new container: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	env := &cliEnv{
		stdout: stdout,
		stderr: stderr,
		container: func(context.Context) (*di.Container, func(), error) {
			return container, func() {}, nil
		},
	}
	return env, stdout, stderr
}

func TestRunUsageErrors(t *testing.T) {
	env, _, stderr := newTestEnv(t)
	ctx := context.Background()

	if code := run(ctx, env, nil); code != exitUsage {
		t.Fatalf("expected usage exit without command, got %d", code)
	}
	if code := run(ctx, env, []string{"drop-shop"}); code != exitUsage {
		t.Fatalf("expected usage exit for unknown command, got %d", code)
	}
	if !strings.Contains(stderr.String(), `unknown command "drop-shop"`) {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}

	stderr.Reset()
	if code := run(ctx, env, []string{"create-shop", "--shop-id", "lanparty"}); code != exitUsage {
		t.Fatalf("expected usage exit for missing flags, got %d", code)
	}
	if !strings.Contains(stderr.String(), "--brand-id") {
		t.Fatalf("expected missing flags to be listed, got %q", stderr.String())
	}
	if code := run(ctx, env, []string{"export-order", "--bogus"}); code != exitUsage {
		t.Fatalf("expected usage exit for unknown flag, got %d", code)
	}
	if code := run(ctx, env, []string{"help"}); code != exitOK {
		t.Fatalf("expected help to succeed, got %d", code)
	}
}

func TestCreateShopAndGenerateOrderNumbers(t *testing.T) {
	env, stdout, stderr := newTestEnv(t)
	ctx := context.Background()

	code := run(ctx, env, []string{"create-brand", "--brand-id", "lan", "--title", "LAN Party", "--sender-name", "LAN Party", "--sender-address", "noreply@lanparty.test"})
	if code != exitOK {
		t.Fatalf("create-brand exit %d: %s", code, stderr.String())
	}
	code = run(ctx, env, []string{
		"create-shop",
		"--shop-id", "lanparty",
		"--brand-id", "lan",
		"--title", "LAN Party",
		"--currency", "EUR",
		"--order-prefix", "LP-O-",
		"--article-prefix", "LP-A-",
		"--storefront-id", "lanparty-main",
	})
	if code != exitOK {
		t.Fatalf("create-shop exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "storefront lanparty-main") {
		t.Fatalf("unexpected output %q", stdout.String())
	}

	container, _, _ := env.container(ctx)
	storefront, err := container.Services.Shops.GetStorefront(ctx, "lanparty-main")
	if err != nil {
		t.Fatalf("get storefront: %v", err)
	}

	for _, want := range []string{"LP-O-00001", "LP-O-00002"} {
		stdout.Reset()
		code = run(ctx, env, []string{"generate-order-number", "--sequence-id", storefront.OrderNumberSequenceID})
		if code != exitOK {
			t.Fatalf("generate-order-number exit %d: %s", code, stderr.String())
		}
		if got := strings.TrimSpace(stdout.String()); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}

	code = run(ctx, env, []string{"create-shop", "--shop-id", "lanparty", "--brand-id", "lan", "--title", "Again", "--currency", "EUR", "--order-prefix", "X-", "--article-prefix", "Y-"})
	if code != exitError {
		t.Fatalf("expected duplicate shop to fail with exit 1, got %d", code)
	}
}

func TestRemoveUserSessionsAndExportErrors(t *testing.T) {
	env, stdout, stderr := newTestEnv(t)
	ctx := context.Background()

	if code := run(ctx, env, []string{"remove-user-sessions"}); code != exitOK {
		t.Fatalf("remove-user-sessions exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "removed 0 session(s)") {
		t.Fatalf("unexpected output %q", stdout.String())
	}

	if code := run(ctx, env, []string{"export-order", "--order-id", "missing"}); code != exitError {
		t.Fatalf("expected unknown order to exit 1, got %d", code)
	}
	if code := run(ctx, env, []string{"export-order", "--order-id", "missing", "--upload"}); code != exitError {
		t.Fatalf("expected upload without bucket to exit 1, got %d", code)
	}
}
