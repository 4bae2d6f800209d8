package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bookclub/internal/api"
	"bookclub/internal/services"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "3-4 readers")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConfigShowRedactsToken(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("BOOKCLUB_API_TOKEN", "s3cret")

	out, _, err := runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "<redacted>")
	requireContains(t, out, env.dataDir)
}

func TestQueueFormsGroupThroughCLI(t *testing.T) {
	env := setupCLITestEnv(t)

	book := runJSON[api.Book](t, env, "book", "add", "Middlemarch", "--author", "George Eliot", "--genre", "classic")
	if book.Genre != "Classic" {
		t.Fatalf("genre = %q, want Classic", book.Genre)
	}

	var readers []api.Reader
	for _, name := range []string{"Ada", "Bo", "Cy"} {
		readers = append(readers, runJSON[api.Reader](t, env, "reader", "add", name))
	}

	first := runJSON[api.EnqueueResponse](t, env, "queue", "add", book.ID, "--reader", readers[0].ID)
	if first.GroupFormed || first.WaitingReaders != 1 {
		t.Fatalf("first enqueue = %+v", first)
	}
	runJSON[api.EnqueueResponse](t, env, "queue", "add", book.ID, "-r", readers[1].ID)
	third := runJSON[api.EnqueueResponse](t, env, "queue", "add", book.ID, "-r", readers[2].ID)
	if !third.GroupFormed || third.Group == nil {
		t.Fatalf("third enqueue did not form a group: %+v", third)
	}
	if third.Group.ActiveMembers != 3 || third.Group.MaxMembers != 4 {
		t.Fatalf("group members = %d/%d, want 3/4", third.Group.ActiveMembers, third.Group.MaxMembers)
	}

	current := runJSON[api.Group](t, env, "group", "current", "-r", readers[0].ID)
	if current.ID != third.Group.ID {
		t.Fatalf("current group = %q, want %q", current.ID, third.Group.ID)
	}

	queue := runJSON[[]api.QueueEntry](t, env, "queue", "list", "-r", readers[0].ID)
	if len(queue) != 0 {
		t.Fatalf("queue after formation = %+v, want empty", queue)
	}

	msg := runJSON[api.Message](t, env, "message", "post", current.ID, "hello", "club", "-r", readers[1].ID)
	if msg.Text != "hello club" {
		t.Fatalf("message text = %q", msg.Text)
	}
	messages := runJSON[api.MessageListResponse](t, env, "message", "list", current.ID)
	if messages.Total != 1 {
		t.Fatalf("message total = %d, want 1", messages.Total)
	}

	progress := runJSON[api.Progress](t, env, "progress", "set", current.ID, "--page", "42", "-r", readers[2].ID)
	if progress.CurrentPage != 42 {
		t.Fatalf("progress page = %d", progress.CurrentPage)
	}

	if current.Status != "active" {
		t.Fatalf("formed group status = %q, want active", current.Status)
	}
	if _, _, err := runCLI(t, env, "group", "activate", current.ID); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("activate on active group err = %v, want ErrInvalidTransition", err)
	}
	completed := runJSON[api.Group](t, env, "group", "complete", current.ID)
	if completed.Status != "completed" {
		t.Fatalf("status after complete = %q", completed.Status)
	}
	stats := runJSON[api.ReaderStats](t, env, "reader", "stats", readers[0].ID)
	if stats.CompletedBooks != 1 || stats.HasCurrentGroup {
		t.Fatalf("stats after completion = %+v", stats)
	}
}

func TestQueueRejectsDuplicate(t *testing.T) {
	env := setupCLITestEnv(t)
	book := runJSON[api.Book](t, env, "book", "add", "Emma", "--author", "Jane Austen", "--genre", "romance")
	reader := runJSON[api.Reader](t, env, "reader", "add", "Ada")

	runJSON[api.EnqueueResponse](t, env, "queue", "add", book.ID, "-r", reader.ID)
	_, _, err := runCLI(t, env, "queue", "add", book.ID, "-r", reader.ID)
	if !errors.Is(err, services.ErrAlreadyQueued) {
		t.Fatalf("duplicate enqueue err = %v, want ErrAlreadyQueued", err)
	}
}

func TestReaderFlagRequired(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "queue", "list"); err == nil {
		t.Fatal("expected missing --reader to fail")
	}
}

func TestBookListTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "book", "list")
	if err != nil {
		t.Fatalf("book list: %v", err)
	}
	requireContains(t, out, "No books found")

	runJSON[api.Book](t, env, "book", "add", "Dune", "--author", "Frank Herbert", "--genre", "science fiction")
	out, _, err = runCLI(t, env, "book", "list", "--sort", "title")
	if err != nil {
		t.Fatalf("book list: %v", err)
	}
	requireContains(t, out, "Dune")
	requireContains(t, out, "Frank Herbert")

	if _, _, err := runCLI(t, env, "book", "list", "--sort", "sideways"); err == nil {
		t.Fatal("expected unknown sort to fail")
	}
}

func TestStatusWhenDaemonNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon is not running")

	out, _, err = runCLI(t, env, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestNotifyTestWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	resp := runJSON[api.NotifyTestResponse](t, env, "notify", "test")
	if resp.Sent {
		t.Fatal("expected no notification without a topic")
	}
	if resp.Message != "ntfy topic not configured" {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestDBStatusListsMigrations(t *testing.T) {
	env := setupCLITestEnv(t)

	states := runJSON[[]api.MigrationStatus](t, env, "db", "status")
	if len(states) == 0 {
		t.Fatal("expected at least one migration")
	}
	for _, s := range states {
		if !s.Applied {
			t.Fatalf("migration %d not applied", s.Version)
		}
	}
}

func TestLogsShowsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.logDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "INFO daemon started\nWARN group formation failed\nINFO api request\n"
	if err := os.WriteFile(filepath.Join(env.logDir, "bookclub.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, env, "logs", "-n", "2", "--grep", "warn")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "WARN group formation failed\n" {
		t.Fatalf("logs output = %q", out)
	}
}
