package notifier

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

type Notifier interface {
	Notify(ctx context.Context, content string) error
}

// New returns a Discord notifier for webhookURL, or a no-op when it is empty.
func New(webhookURL string, httpClient *http.Client) Notifier {
	if webhookURL == "" {
		return Nop{}
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &DiscordNotifier{
		WebhookURL: webhookURL,
		rc:         resty.NewWithClient(httpClient),
	}
}

type DiscordNotifier struct {
	WebhookURL string
	rc         *resty.Client
}

func (d *DiscordNotifier) Notify(ctx context.Context, content string) error {
	if d.WebhookURL == "" {
		return fmt.Errorf("webhook URL is not set")
	}

	resp, err := d.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"content": content}).
		Post(d.WebhookURL)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook failed with status %d", resp.StatusCode())
	}

	return nil
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }
