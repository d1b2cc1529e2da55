package command

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/walrusdb/walrus/internal/server"
	"github.com/walrusdb/walrus/internal/store"
)

// startServer runs a walrus server on a random loopback port.
func startServer(t *testing.T) string {
	t.Helper()

	db := store.New()
	t.Cleanup(db.Close)

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.New(db, server.WithLogger(discard))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.Serve(context.Background(), ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return ln.Addr().String()
}

// runCLI executes the app with args and returns its stdout.
func runCLI(t *testing.T, addr string, args ...string) string {
	t.Helper()

	app := App()
	var out bytes.Buffer
	app.Writer = &out

	full := append([]string{"walrus-cli", "--server", addr}, args...)
	if err := app.Run(full); err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
	return out.String()
}

// ============================================================
// CLI Tests
// ============================================================

func TestCLI_Ping(t *testing.T) {
	addr := startServer(t)

	if got := runCLI(t, addr, "ping"); strings.TrimSpace(got) != "PONG" {
		t.Errorf("ping output = %q, want PONG", got)
	}
	if got := runCLI(t, addr, "ping", "echo-me"); strings.TrimSpace(got) != "echo-me" {
		t.Errorf("ping with message output = %q, want echo", got)
	}
}

func TestCLI_SetGet(t *testing.T) {
	addr := startServer(t)

	if got := runCLI(t, addr, "set", "greeting", "hello"); strings.TrimSpace(got) != "OK" {
		t.Errorf("set output = %q, want OK", got)
	}
	if got := runCLI(t, addr, "get", "greeting"); strings.TrimSpace(got) != "hello" {
		t.Errorf("get output = %q, want hello", got)
	}
	if got := runCLI(t, addr, "get", "absent"); strings.TrimSpace(got) != "(nil)" {
		t.Errorf("get absent output = %q, want (nil)", got)
	}
}

func TestCLI_SetWithTTL(t *testing.T) {
	addr := startServer(t)

	// Flags precede positional arguments; urfave stops flag parsing at the
	// first non-flag token.
	if got := runCLI(t, addr, "set", "--ttl", "40ms", "ephemeral", "x"); strings.TrimSpace(got) != "OK" {
		t.Fatalf("set with ttl output = %q, want OK", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.TrimSpace(runCLI(t, addr, "get", "ephemeral")) == "(nil)" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("key still readable long after its TTL")
}

func TestCLI_RPush(t *testing.T) {
	addr := startServer(t)

	if got := runCLI(t, addr, "rpush", "list", "a", "b"); strings.TrimSpace(got) != "2" {
		t.Errorf("rpush output = %q, want 2", got)
	}
	if got := runCLI(t, addr, "rpush", "list", "c"); strings.TrimSpace(got) != "3" {
		t.Errorf("second rpush output = %q, want 3", got)
	}
}

func TestCLI_ArgumentValidation(t *testing.T) {
	addr := startServer(t)

	tests := []struct {
		name string
		args []string
	}{
		{"get without key", []string{"get"}},
		{"set without value", []string{"set", "k"}},
		{"rpush without items", []string{"rpush", "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := App()
			app.Writer = io.Discard

			full := append([]string{"walrus-cli", "--server", addr}, tt.args...)
			if err := app.Run(full); err == nil {
				t.Error("Run() succeeded, want a usage error")
			}
		})
	}
}
