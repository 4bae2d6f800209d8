package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bookclub/internal/notifications"
	"bookclub/internal/testsupport"
)

type capturedRequest struct {
	path     string
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- capturedRequest{
			path:     r.URL.Path,
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(cfg, nil)
	if err := svc.NotifyGroupFormed(context.Background(), notifications.GroupInfo{Name: "Dune Reading Group #1"}, "auto"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	group := notifications.GroupInfo{
		ID:        "g-1",
		Name:      "Dune Reading Group #1",
		BookTitle: "Dune",
		Members:   4,
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "group formed",
			send: func(s notifications.Service) error {
				return s.NotifyGroupFormed(context.Background(), group, "auto")
			},
			expectTitle:    "Bookclub - Group Formed",
			expectMessage:  "📚 Dune Reading Group #1 formed with 4 readers\nStarts: 2026-03-01",
			expectTags:     "bookclub,group,formed,auto",
			expectPriority: "high",
		},
		{
			name: "member left",
			send: func(s notifications.Service) error {
				return s.NotifyMemberLeft(context.Background(), group, "Ada")
			},
			expectTitle:   "Bookclub - Member Left",
			expectMessage: "Ada left Dune Reading Group #1 (4 active)",
			expectTags:    "bookclub,group,left",
		},
		{
			name: "discussion completed",
			send: func(s notifications.Service) error {
				return s.NotifyDiscussionCompleted(context.Background(), group, 2, "Character Development")
			},
			expectTitle:   "Bookclub - Discussion Complete",
			expectMessage: "✅ Week 2 discussion complete in Dune Reading Group #1\nTopic: Character Development",
			expectTags:    "bookclub,discussion,completed",
		},
		{
			name: "group disbanded",
			send: func(s notifications.Service) error {
				return s.NotifyGroupClosed(context.Background(), group, "disbanded")
			},
			expectTitle:   "Bookclub - Group Disbanded",
			expectMessage: "Dune Reading Group #1 was disbanded",
			expectTags:    "bookclub,group,disbanded",
		},
		{
			name:           "test",
			send:           func(s notifications.Service) error { return s.TestNotification(context.Background()) },
			expectTitle:    "Bookclub - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "bookclub,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, requests := newCaptureServer(t, http.StatusOK)
			cfg := testsupport.NewConfig(t, testsupport.WithNtfy(srv.URL, "club"))
			cfg.Notifications.MemberLeft = true
			cfg.Notifications.DiscussionCompleted = true
			cfg.Notifications.GroupClosed = true
			svc := notifications.NewService(cfg, nil)

			if err := tc.send(svc); err != nil {
				t.Fatalf("send: %v", err)
			}
			got := <-requests
			if got.path != "/club" {
				t.Fatalf("path = %q, want /club", got.path)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("body = %q, want %q", got.body, tc.expectMessage)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", got.priority, tc.expectPriority)
			}
		})
	}
}

func TestDisabledEventIsSkipped(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfy(srv.URL, "club"))
	cfg.Notifications.MemberLeft = false
	svc := notifications.NewService(cfg, nil)
	if err := svc.NotifyMemberLeft(context.Background(), notifications.GroupInfo{Name: "g"}, "Ada"); err != nil {
		t.Fatalf("expected nil for disabled event, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request for disabled event, got %d", hits.Load())
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfy(srv.URL, "club"))
	cfg.Notifications.BreakerFailures = 2
	cfg.Notifications.BreakerCooldown = 600
	svc := notifications.NewService(cfg, nil)

	for i := 0; i < 2; i++ {
		err := svc.TestNotification(context.Background())
		if err == nil || !strings.Contains(err.Error(), "ntfy returned 500") {
			t.Fatalf("attempt %d: expected ntfy 500 error, got %v", i, err)
		}
	}
	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "circuit open") {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected breaker to stop requests after 2 failures, got %d", hits.Load())
	}
}
