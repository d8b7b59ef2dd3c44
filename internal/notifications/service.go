package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"stagehand/internal/config"
)

const userAgent = "Stagehand/0.1.0"

// Event identifies a notification category emitted by the workflow.
type Event string

const (
	EventInstallCompleted Event = "install_completed"
	EventInstallFailed    Event = "install_failed"
	EventReviewRequired   Event = "review_required"
	EventQueueStarted     Event = "queue_started"
	EventQueueCompleted   Event = "queue_completed"
	EventError            Event = "error"
)

// Payload carries event-specific fields consumed by the message templates.
type Payload map[string]any

// Service is the push surface the workflow publishes events to.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService returns an ntfy-backed Service when a topic is configured,
// and a no-op Service otherwise.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return nopService{}
	}

	httpTimeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: httpTimeout},
		installs:    cfg.Notifications.Installs,
		errors:      cfg.Notifications.Errors,
		dedupWindow: time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		recent:      make(map[string]time.Time),
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	installs    bool
	errors      bool
	dedupWindow time.Duration

	mu     sync.Mutex
	recent map[string]time.Time
}

// Publish renders the event into an ntfy message and posts it. Events the
// configuration disables, and repeats inside the dedup window, are dropped
// without error.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, deliver := n.render(event, payload)
	if !deliver {
		return nil
	}
	if n.isDuplicate(event, msg.body) {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventInstallCompleted:
		if !n.installs {
			return message{}, false
		}
		body := fmt.Sprintf("Installed %s to %s", installLabel(payload), stringField(payload, "prefix"))
		if files, ok := intField(payload, "files"); ok {
			body = fmt.Sprintf("%s\n%d files, %s", body, files, byteField(payload, "bytes"))
		}
		return message{
			title: "Stagehand - Install Complete",
			body:  body,
			tags:  []string{"stagehand", "install", "completed"},
		}, true
	case EventInstallFailed:
		if !n.errors {
			return message{}, false
		}
		return message{
			title:    "Stagehand - Install Failed",
			body:     fmt.Sprintf("Install of %s failed: %s", installLabel(payload), stringField(payload, "error")),
			tags:     []string{"stagehand", "install", "failed"},
			priority: "high",
		}, true
	case EventReviewRequired:
		if !n.errors {
			return message{}, false
		}
		return message{
			title: "Stagehand - Review Needed",
			body:  fmt.Sprintf("Job #%s needs review: %s", stringField(payload, "job"), stringField(payload, "reason")),
			tags:  []string{"stagehand", "review"},
		}, true
	case EventQueueCompleted:
		if !n.installs {
			return message{}, false
		}
		return message{
			title: "Stagehand - Queue Drained",
			body:  queueSummary(payload),
			tags:  []string{"stagehand", "queue", "completed"},
		}, true
	case EventError:
		if !n.errors {
			return message{}, false
		}
		body := "Error"
		if label := stringField(payload, "context"); label != "" {
			body = fmt.Sprintf("%s with %s", body, label)
		}
		return message{
			title:    "Stagehand - Error",
			body:     fmt.Sprintf("%s: %s", body, stringField(payload, "error")),
			tags:     []string{"stagehand", "error", "alert"},
			priority: "high",
		}, true
	default:
		// Chatter like queue_started stays out of the push channel.
		return message{}, false
	}
}

func (n *ntfyService) isDuplicate(event Event, body string) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	key := string(event) + "\n" + body
	now := time.Now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.recent[key]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	n.recent[key] = now
	for k, at := range n.recent {
		if now.Sub(at) >= n.dedupWindow {
			delete(n.recent, k)
		}
	}
	return false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("prepare ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy rejected notification (%d): %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func installLabel(payload Payload) string {
	name := stringField(payload, "plan")
	if name == "" {
		name = "unknown plan"
	}
	if version := stringField(payload, "version"); version != "" {
		name = name + " " + version
	}
	if cfg := stringField(payload, "configuration"); cfg != "" {
		name = fmt.Sprintf("%s (%s)", name, cfg)
	}
	return name
}

func queueSummary(payload Payload) string {
	processed, _ := intField(payload, "processed")
	failed, _ := intField(payload, "failed")
	durationText := "0s"
	if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
		durationText = d.Round(time.Second).String()
	}
	if failed == 0 {
		return fmt.Sprintf("Processed %d jobs in %s", processed, durationText)
	}
	return fmt.Sprintf("Processed %d jobs, %d failed, in %s", processed, failed, durationText)
}

func stringField(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intField(payload Payload, key string) (int64, bool) {
	switch v := payload[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func byteField(payload Payload, key string) string {
	n, ok := intField(payload, key)
	if !ok || n < 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}

type nopService struct{}

func (nopService) Publish(context.Context, Event, Payload) error { return nil }
