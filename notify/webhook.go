package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/task"
)

// DefaultTimeout bounds each webhook POST.
const DefaultTimeout = 5 * time.Second

// RetryConfig configures exponential backoff for webhook delivery.
type RetryConfig struct {
	InitialInterval time.Duration // default 200ms
	MaxInterval     time.Duration // default 2s
	MaxElapsedTime  time.Duration // default 15s
	MaxRetries      uint64        // default 3
}

// DefaultRetryConfig returns the retry policy used when none is given.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  15 * time.Second,
		MaxRetries:      3,
	}
}

// WebhookConfig holds the webhook destinations. Empty URLs are skipped.
type WebhookConfig struct {
	// SlackTasks receives task events. Falls back to Slack when empty.
	SlackTasks string

	// SlackAgent receives agent breakdowns.
	SlackAgent string

	// Slack is the generic Slack webhook.
	Slack string

	// Discord receives task events.
	Discord string

	// Teams receives task events.
	Teams string

	// Client is the HTTP client. Defaults to one with DefaultTimeout.
	Client *http.Client

	// Retry is the delivery retry policy. Zero means DefaultRetryConfig.
	Retry RetryConfig

	// Logger is an optional logger.
	Logger code.Logger
}

// Webhooks posts notifications to chat webhooks. Each destination has its
// own circuit breaker so one dead endpoint does not slow the others.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: delivery errors are returned joined; callers on request paths
//   log and drop them.
type Webhooks struct {
	cfg WebhookConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewWebhooks returns a notifier for cfg.
func NewWebhooks(cfg WebhookConfig) *Webhooks {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.SlackTasks == "" {
		cfg.SlackTasks = cfg.Slack
	}
	return &Webhooks{cfg: cfg, breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

// Enabled reports whether any destination is configured.
func (w *Webhooks) Enabled() bool {
	return w.cfg.SlackTasks != "" || w.cfg.SlackAgent != "" || w.cfg.Discord != "" || w.cfg.Teams != ""
}

// Destinations reports which destinations are configured, by name.
func (w *Webhooks) Destinations() map[string]bool {
	return map[string]bool{
		"slack_tasks": w.cfg.SlackTasks != "",
		"slack_agent": w.cfg.SlackAgent != "",
		"discord":     w.cfg.Discord != "",
		"teams":       w.cfg.Teams != "",
	}
}

// TaskEventText formats a task event line, e.g. "[created] Task TASK1A2B3C: Title (assignee: me)".
func TaskEventText(event string, t task.Task) string {
	text := fmt.Sprintf("[%s] Task %s: %s", event, t.ID, t.Title)
	if t.Assignee != "" {
		text += fmt.Sprintf(" (assignee: %s)", t.Assignee)
	}
	return text
}

// NotifyTaskEvent sends a task event to Slack, Discord, and Teams.
func (w *Webhooks) NotifyTaskEvent(ctx context.Context, event string, t task.Task) error {
	text := TaskEventText(event, t)
	var errs []error
	if w.cfg.SlackTasks != "" {
		errs = append(errs, w.post(ctx, w.cfg.SlackTasks, map[string]any{"text": text}))
	}
	if w.cfg.Discord != "" {
		errs = append(errs, w.post(ctx, w.cfg.Discord, map[string]any{"content": text}))
	}
	if w.cfg.Teams != "" {
		errs = append(errs, w.post(ctx, w.cfg.Teams, map[string]any{"@type": "MessageCard", "text": text}))
	}
	return errors.Join(errs...)
}

// NotifyAgentBreakdown sends an agent summary to the agent channel. An empty
// title defaults to "Agent breakdown".
func (w *Webhooks) NotifyAgentBreakdown(ctx context.Context, title, message string) error {
	if w.cfg.SlackAgent == "" {
		return nil
	}
	if title == "" {
		title = "Agent breakdown"
	}
	return w.post(ctx, w.cfg.SlackAgent, map[string]any{"text": fmt.Sprintf("*%s*\n\n%s", title, message)})
}

// errStatus is a non-2xx webhook response.
type errStatus struct {
	code int
}

func (e errStatus) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.code)
}

func (w *Webhooks) post(ctx context.Context, url string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	cb := w.breaker(url)

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		_, err := cb.Execute(func() (any, error) {
			return nil, w.send(ctx, url, body)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		var status errStatus
		if errors.As(err, &status) && status.code < 500 && status.code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.cfg.Retry.InitialInterval
	policy.MaxInterval = w.cfg.Retry.MaxInterval
	policy.MaxElapsedTime = w.cfg.Retry.MaxElapsedTime
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, w.cfg.Retry.MaxRetries), ctx)

	if err := backoff.Retry(operation, retry); err != nil {
		w.logf("webhook delivery failed: %v", err)
		return fmt.Errorf("webhook delivery: %w", err)
	}
	return nil
}

func (w *Webhooks) send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.cfg.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errStatus{code: resp.StatusCode}
	}
	return nil
}

func (w *Webhooks) breaker(url string) *gobreaker.CircuitBreaker {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cb, ok := w.breakers[url]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			w.logf("webhook circuit %s -> %s", from, to)
		},
		IsSuccessful: func(err error) bool {
			var status errStatus
			if errors.As(err, &status) && status.code < 500 {
				return true
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	w.breakers[url] = cb
	return cb
}

func (w *Webhooks) logf(format string, args ...any) {
	if w.cfg.Logger != nil {
		w.cfg.Logger.Logf(format, args...)
	}
}
