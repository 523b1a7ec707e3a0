package tor

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeControlPort answers control-protocol commands. Lines received are
// sent on the returned channel. AUTHENTICATE succeeds only for wantAuth.
func fakeControlPort(t *testing.T, wantAuth string) (string, <-chan string) {
	t.Helper()

	lines := make(chan string, 8)
	addr := serveOnce(t, func(conn net.Conn) {
		defer close(lines)
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			lines <- line

			switch {
			case strings.HasPrefix(line, "AUTHENTICATE"):
				if line != wantAuth {
					_, _ = conn.Write([]byte("515 Authentication failed: Password did not match\r\n"))
					return
				}
				_, _ = conn.Write([]byte("250 OK\r\n"))
			case line == "SIGNAL NEWNYM":
				_, _ = conn.Write([]byte("250 OK\r\n"))
			default:
				_, _ = conn.Write([]byte("510 Unrecognized command\r\n"))
			}
		}
	})
	return addr, lines
}

func collect(lines <-chan string) []string {
	var got []string
	for l := range lines {
		got = append(got, l)
	}
	return got
}

func TestControlPortNewIdentity(t *testing.T) {
	t.Parallel()

	t.Run("password authentication", func(t *testing.T) {
		t.Parallel()

		addr, lines := fakeControlPort(t, `AUTHENTICATE "s3cr\"t"`)
		port, err := newControlPort(ControlConfig{Address: addr, Password: `s3cr"t`, Timeout: time.Second})
		if err != nil {
			t.Fatalf("newControlPort: %v", err)
		}

		if err := port.NewIdentity(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := collect(lines)
		want := []string{`AUTHENTICATE "s3cr\"t"`, "SIGNAL NEWNYM"}
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("commands = %q, expected %q", got, want)
		}
	})

	t.Run("cookie authentication", func(t *testing.T) {
		t.Parallel()

		cookie := make([]byte, cookieLength)
		for i := range cookie {
			cookie[i] = byte(i)
		}
		path := filepath.Join(t.TempDir(), "control_auth_cookie")
		if err := os.WriteFile(path, cookie, 0o600); err != nil {
			t.Fatalf("write cookie: %v", err)
		}

		authLine := "AUTHENTICATE " + strings.ToUpper(hex.EncodeToString(cookie))
		addr, lines := fakeControlPort(t, authLine)
		port, err := newControlPort(ControlConfig{Address: addr, CookiePath: path})
		if err != nil {
			t.Fatalf("newControlPort: %v", err)
		}
		if err := port.NewIdentity(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := collect(lines); len(got) != 2 || got[0] != authLine || got[1] != "SIGNAL NEWNYM" {
			t.Errorf("commands = %q, expected cookie authentication then NEWNYM", got)
		}
	})

	t.Run("null authentication", func(t *testing.T) {
		t.Parallel()

		addr, lines := fakeControlPort(t, "AUTHENTICATE")
		port, err := newControlPort(ControlConfig{Address: addr})
		if err != nil {
			t.Fatalf("newControlPort: %v", err)
		}
		if err := port.NewIdentity(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		collect(lines)
	})

	t.Run("authentication failure", func(t *testing.T) {
		t.Parallel()

		addr, lines := fakeControlPort(t, `AUTHENTICATE "right"`)
		port, err := newControlPort(ControlConfig{Address: addr, Password: "wrong", Timeout: time.Second})
		if err != nil {
			t.Fatalf("newControlPort: %v", err)
		}

		err = port.NewIdentity(context.Background())
		var rotErr *RotationError
		if !errors.As(err, &rotErr) {
			t.Fatalf("expected *RotationError, got %v", err)
		}
		if rotErr.Op != "authenticate" {
			t.Errorf("Op = %q, expected authenticate", rotErr.Op)
		}
		if !strings.Contains(err.Error(), "515") {
			t.Errorf("expected reply code in error, got %v", err)
		}

		got := collect(lines)
		for _, l := range got {
			if l == "SIGNAL NEWNYM" {
				t.Error("NEWNYM sent after failed authentication")
			}
		}
	})

	t.Run("unreachable control port", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatalf("failed to reserve port: %v", err)
		}
		addr := listener.Addr().String()
		listener.Close()

		port, err := newControlPort(ControlConfig{Address: addr, Timeout: time.Second})
		if err != nil {
			t.Fatalf("newControlPort: %v", err)
		}

		var rotErr *RotationError
		if err := port.NewIdentity(context.Background()); !errors.As(err, &rotErr) || rotErr.Op != "connect" {
			t.Errorf("expected connect RotationError, got %v", err)
		}
	})

	t.Run("unreadable cookie", func(t *testing.T) {
		t.Parallel()

		port, err := newControlPort(ControlConfig{
			Address:    "127.0.0.1:9051",
			CookiePath: filepath.Join(t.TempDir(), "missing"),
		})
		if err != nil {
			t.Fatalf("newControlPort: %v", err)
		}

		var rotErr *RotationError
		if err := port.NewIdentity(context.Background()); !errors.As(err, &rotErr) || rotErr.Op != "authenticate" {
			t.Errorf("expected authenticate RotationError, got %v", err)
		}
	})

	t.Run("short cookie", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "control_auth_cookie")
		if err := os.WriteFile(path, []byte("short"), 0o600); err != nil {
			t.Fatalf("write cookie: %v", err)
		}
		port, err := newControlPort(ControlConfig{Address: "127.0.0.1:9051", CookiePath: path})
		if err != nil {
			t.Fatalf("newControlPort: %v", err)
		}
		var rotErr *RotationError
		if err := port.NewIdentity(context.Background()); !errors.As(err, &rotErr) || rotErr.Op != "authenticate" {
			t.Errorf("expected authenticate RotationError for short cookie, got %v", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		port, err := newControlPort(ControlConfig{Address: "127.0.0.1:9051"})
		if err != nil {
			t.Fatalf("newControlPort: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var rotErr *RotationError
		if err := port.NewIdentity(ctx); !errors.As(err, &rotErr) || !errors.Is(err, context.Canceled) {
			t.Errorf("expected RotationError wrapping context.Canceled, got %v", err)
		}
	})
}

func TestNewControlPort(t *testing.T) {
	t.Parallel()

	if _, err := newControlPort(ControlConfig{Address: "bad"}); !errors.Is(err, ErrInvalidProxyAddress) {
		t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
	}

	p, err := newControlPort(ControlConfig{Address: "127.0.0.1:9051"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.cfg.Timeout != defaultControlTimeout {
		t.Errorf("Timeout = %v, expected default %v", p.cfg.Timeout, defaultControlTimeout)
	}
}

func TestRotateIdentityExternalControlPort(t *testing.T) {
	t.Parallel()

	addr, lines := fakeControlPort(t, `AUTHENTICATE "s3cret"`)
	session := NewCircuitSession(&http.Client{},
		WithControl(ControlConfig{Address: addr, Password: "s3cret", Timeout: time.Second}),
		WithSettleDelay(0),
	)

	if err := session.RotateIdentity(context.Background()); err != nil {
		t.Fatalf("RotateIdentity() error = %v", err)
	}
	got := collect(lines)
	want := []string{`AUTHENTICATE "s3cret"`, "SIGNAL NEWNYM"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("commands = %q, expected %q", got, want)
	}
}
