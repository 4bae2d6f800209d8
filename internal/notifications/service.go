package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"bookclub/internal/config"
	"bookclub/internal/logging"
	"bookclub/internal/metrics"
)

const userAgent = "bookclub/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventGroupFormed         Event = "group_formed"
	EventMemberLeft          Event = "member_left"
	EventDiscussionCompleted Event = "discussion_completed"
	EventGroupClosed         Event = "group_closed"
	EventTest                Event = "test"
)

// GroupInfo is the part of a group a notification talks about.
type GroupInfo struct {
	ID        string
	Name      string
	BookTitle string
	Members   int
	StartDate time.Time
}

// Service defines the notification surface used by group components.
type Service interface {
	NotifyGroupFormed(ctx context.Context, group GroupInfo, trigger string) error
	NotifyMemberLeft(ctx context.Context, group GroupInfo, readerName string) error
	NotifyDiscussionCompleted(ctx context.Context, group GroupInfo, week int, topic string) error
	NotifyGroupClosed(ctx context.Context, group GroupInfo, status string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if cfg == nil {
		return noopService{}
	}
	n := cfg.Notifications
	topic := strings.Trim(strings.TrimSpace(n.NtfyTopic), "/")
	if topic == "" {
		return noopService{}
	}

	endpoint := topic
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		endpoint = strings.TrimRight(n.BaseURL, "/") + "/" + topic
	}

	failures := n.BreakerFailures
	if failures <= 0 {
		failures = 5
	}
	cooldown := time.Duration(n.BreakerCooldown) * time.Second
	if cooldown <= 0 {
		cooldown = time.Minute
	}

	svc := &ntfyService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: cfg.NotifyTimeout()},
		logger:   logging.NewComponentLogger(logger, "notifications"),
		enabled: map[Event]bool{
			EventGroupFormed:         n.GroupFormed,
			EventMemberLeft:          n.MemberLeft,
			EventDiscussionCompleted: n.DiscussionCompleted,
			EventGroupClosed:         n.GroupClosed,
			EventTest:                true,
		},
	}
	svc.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "ntfy",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			svc.logger.Warn("notification circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
				logging.String(logging.FieldEventType, "breaker_state_change"),
			)
		},
	})
	metrics.CircuitBreakerState.WithLabelValues("ntfy").Set(0)
	return svc
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

type payload struct {
	event    Event
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[struct{}]
	enabled  map[Event]bool
	logger   *slog.Logger
}

func (n *ntfyService) NotifyGroupFormed(ctx context.Context, group GroupInfo, trigger string) error {
	message := fmt.Sprintf("📚 %s formed with %d readers", displayName(group), group.Members)
	if !group.StartDate.IsZero() {
		message = fmt.Sprintf("%s\nStarts: %s", message, group.StartDate.Format("2006-01-02"))
	}
	tags := []string{"bookclub", "group", "formed"}
	if trigger = strings.TrimSpace(trigger); trigger != "" {
		tags = append(tags, trigger)
	}
	return n.send(ctx, payload{
		event:    EventGroupFormed,
		title:    "Bookclub - Group Formed",
		message:  message,
		tags:     tags,
		priority: "high",
	})
}

func (n *ntfyService) NotifyMemberLeft(ctx context.Context, group GroupInfo, readerName string) error {
	readerName = strings.TrimSpace(readerName)
	if readerName == "" {
		readerName = "A reader"
	}
	return n.send(ctx, payload{
		event:   EventMemberLeft,
		title:   "Bookclub - Member Left",
		message: fmt.Sprintf("%s left %s (%d active)", readerName, displayName(group), group.Members),
		tags:    []string{"bookclub", "group", "left"},
	})
}

func (n *ntfyService) NotifyDiscussionCompleted(ctx context.Context, group GroupInfo, week int, topic string) error {
	message := fmt.Sprintf("✅ Week %d discussion complete in %s", week, displayName(group))
	if topic = strings.TrimSpace(topic); topic != "" {
		message = fmt.Sprintf("%s\nTopic: %s", message, topic)
	}
	return n.send(ctx, payload{
		event:   EventDiscussionCompleted,
		title:   "Bookclub - Discussion Complete",
		message: message,
		tags:    []string{"bookclub", "discussion", "completed"},
	})
}

func (n *ntfyService) NotifyGroupClosed(ctx context.Context, group GroupInfo, status string) error {
	status = strings.TrimSpace(status)
	title := "Bookclub - Group Completed"
	message := fmt.Sprintf("🎉 %s finished the book", displayName(group))
	if status != "completed" {
		title = "Bookclub - Group Disbanded"
		message = fmt.Sprintf("%s was disbanded", displayName(group))
	}
	return n.send(ctx, payload{
		event:   EventGroupClosed,
		title:   title,
		message: message,
		tags:    []string{"bookclub", "group", status},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		event:    EventTest,
		title:    "Bookclub - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"bookclub", "test"},
		priority: "low",
	})
}

func displayName(group GroupInfo) string {
	if name := strings.TrimSpace(group.Name); name != "" {
		return name
	}
	if title := strings.TrimSpace(group.BookTitle); title != "" {
		return title + " reading group"
	}
	return "Reading group " + group.ID
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if !n.enabled[data.event] {
		return nil
	}

	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, data)
	})
	switch {
	case err == nil:
		metrics.NotificationsSent.WithLabelValues(string(data.event), "sent").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.NotificationsSent.WithLabelValues(string(data.event), "rejected").Inc()
		return fmt.Errorf("ntfy circuit open: %w", err)
	default:
		metrics.NotificationsSent.WithLabelValues(string(data.event), "failed").Inc()
		return err
	}
}

func (n *ntfyService) post(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyGroupFormed(context.Context, GroupInfo, string) error              { return nil }
func (noopService) NotifyMemberLeft(context.Context, GroupInfo, string) error               { return nil }
func (noopService) NotifyDiscussionCompleted(context.Context, GroupInfo, int, string) error { return nil }
func (noopService) NotifyGroupClosed(context.Context, GroupInfo, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                                  { return nil }

// Noop returns a Service that discards every event.
func Noop() Service { return noopService{} }
