// Package notify pushes operator notifications through ntfy.sh.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier delivers a titled message to the operator. Delivery is best
// effort; callers log failures and move on.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

type Ntfy struct {
	http  *resty.Client
	topic string
}

func NewNtfy(topic string) *Ntfy {
	client := resty.New()
	client.SetBaseURL("https://ntfy.sh")
	client.SetTimeout(10 * time.Second)
	return &Ntfy{http: client, topic: topic}
}

func (n *Ntfy) Notify(ctx context.Context, title, body string) error {
	resp, err := n.http.R().
		SetContext(ctx).
		SetHeader("Title", title).
		SetBody(body).
		Post("/" + n.topic)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("ntfy: status %d", resp.StatusCode())
	}
	return nil
}

// Nop discards notifications; used when no topic is configured.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }
