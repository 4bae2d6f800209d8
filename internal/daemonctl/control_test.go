package daemonctl_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"bookclub/internal/daemonctl"
	"bookclub/internal/testsupport"
)

func TestClientStatusSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":{"kind":"Unauthorized","message":"invalid bearer token"}}`))
			return
		}
		if r.URL.Path != "/api/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"running":true,"pid":42,"groups":{"active":2}}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("tok"))
	cfg.Paths.APIBind = strings.TrimPrefix(srv.URL, "http://")

	status, err := daemonctl.NewClient(cfg).Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID != 42 || status.Groups["active"] != 2 {
		t.Fatalf("status = %+v", status)
	}

	cfg.Paths.APIToken = "wrong"
	_, err = daemonctl.NewClient(cfg).Status(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid bearer token") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestClientReportsNotRunning(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = addr
	if _, err := daemonctl.NewClient(cfg).Status(context.Background()); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestLockHeldAndPID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	held, err := daemonctl.LockHeld(cfg)
	if err != nil || held {
		t.Fatalf("LockHeld = %v, %v", held, err)
	}
	if _, err := daemonctl.StopAndTerminate(cfg, 0); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("StopAndTerminate err = %v", err)
	}

	lock := flock.New(cfg.LockPath())
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer lock.Unlock()
	if held, err := daemonctl.LockHeld(cfg); err != nil || !held {
		t.Fatalf("LockHeld while locked = %v, %v", held, err)
	}

	if pid, err := daemonctl.ReadPID(cfg); err != nil || pid != 0 {
		t.Fatalf("ReadPID without file = %d, %v", pid, err)
	}
	if err := os.WriteFile(cfg.PIDPath(), []byte("1234\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if pid, err := daemonctl.ReadPID(cfg); err != nil || pid != 1234 {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
}
