package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookclub/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckDirectoryAccess("test", f).Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckNtfy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"healthy":true}`))
	}))
	defer srv.Close()

	if result := CheckNtfy(context.Background(), srv.URL+"/"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckNtfy(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "bookclub.db")
	if result := CheckDatabaseFile(missing); !result.Passed {
		t.Fatalf("expected pass for missing database, got: %s", result.Detail)
	}
	if err := os.WriteFile(missing, make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDatabaseFile(missing); !result.Passed {
		t.Fatalf("expected pass for writable database, got: %s", result.Detail)
	}
	if CheckDatabaseFile(dir).Passed {
		t.Fatal("expected failure when the database path is a directory")
	}
}

func TestCheckNtfyReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL)
	if result.Passed {
		t.Fatal("expected failure for 503")
	}
	if !strings.Contains(result.Detail, "503") {
		t.Fatalf("expected status in detail, got %q", result.Detail)
	}
}

func TestRunAllSkipsNtfyWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 checks, got %d: %+v", len(results), results)
	}
	if failed, ok := FirstFailure(results); ok {
		t.Fatalf("unexpected failure: %+v", failed)
	}
}

func TestFirstFailureIgnoresOptionalChecks(t *testing.T) {
	results := []Result{
		{Name: "ntfy", Passed: false},
		{Name: "Data directory", Passed: false, Required: true},
	}
	failed, ok := FirstFailure(results)
	if !ok || failed.Name != "Data directory" {
		t.Fatalf("FirstFailure = %+v, %v", failed, ok)
	}
}
