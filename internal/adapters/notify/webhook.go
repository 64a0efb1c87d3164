// Package notify delivers reload notifications to external listeners.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	defaultTimeout         = 10 * time.Second
	defaultInitialInterval = 200 * time.Millisecond
)

var (
	_ ports.ReloadNotifier = (*Webhook)(nil)
	_ ports.ReloadNotifier = Multi(nil)
)

// Payload is the JSON body posted to a webhook.
type Payload struct {
	Paths []string  `json:"paths"`
	Time  time.Time `json:"time"`
}

// Webhook posts changed outputs to a URL, retrying with exponential backoff.
type Webhook struct {
	url     string
	retries uint64
	client  *http.Client

	// InitialInterval is the first retry delay.
	InitialInterval time.Duration
}

// NewWebhook creates a Webhook for url retried up to retries times.
func NewWebhook(url string, retries uint64) *Webhook {
	return &Webhook{
		url:             url,
		retries:         retries,
		client:          &http.Client{Timeout: defaultTimeout},
		InitialInterval: defaultInitialInterval,
	}
}

// Notify implements ports.ReloadNotifier. Client errors (4xx) are not retried.
func (w *Webhook) Notify(ctx context.Context, changed []domain.FileRecord) error {
	payload := Payload{Paths: make([]string, 0, len(changed)), Time: time.Now().UTC()}
	for _, rec := range changed {
		payload.Paths = append(payload.Paths, rec.Path)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	attempts := 0
	operation := func() error {
		attempts++
		return w.post(ctx, body)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.InitialInterval
	b := backoff.WithMaxRetries(eb, w.retries)
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return zerr.With(zerr.With(err, "webhook", w.url), "attempts", attempts)
	}
	return nil
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(zerr.New("webhook rejected notification: " + strconv.Itoa(resp.StatusCode)))
	default:
		return zerr.New("webhook failed: " + strconv.Itoa(resp.StatusCode))
	}
}

// Multi fans a notification out to every notifier. All are tried; failures are joined.
type Multi []ports.ReloadNotifier

// Notify implements ports.ReloadNotifier.
func (m Multi) Notify(ctx context.Context, changed []domain.FileRecord) error {
	var errs error
	for _, n := range m {
		if err := n.Notify(ctx, changed); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
