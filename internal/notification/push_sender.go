package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-clinic-scheduling/internal/domain/entity"

	webpush "github.com/SherClockHolmes/webpush-go"
)

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
	HTTPClient      *http.Client
}

// PushSender delivers Web Push notifications signed with the service's VAPID keys.
// Target fields: endpoint, p256dh, auth.
type PushSender struct {
	cfg PushConfig
}

const defaultPushTimeout = 5 * time.Second

func NewPushSender(cfg PushConfig) *PushSender {
	if cfg.TTL <= 0 {
		cfg.TTL = 3600
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultPushTimeout}
	}
	return &PushSender{cfg: cfg}
}

func (s *PushSender) Send(ctx context.Context, target entity.NotificationSubscription, msg Message) error {
	sub := &webpush.Subscription{
		Endpoint: target.TargetString("endpoint"),
		Keys: webpush.Keys{
			P256dh: target.TargetString("p256dh"),
			Auth:   target.TargetString("auth"),
		},
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return Permanent(errors.New("push subscription is missing endpoint or keys"))
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return Permanent(err)
	}

	opts := &webpush.Options{
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
		HTTPClient:      s.cfg.HTTPClient,
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, opts)
	if err != nil {
		return fmt.Errorf("push send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return classifyStatus("push endpoint", resp.StatusCode)
}

// classifyStatus turns an HTTP status into nil, a transient error, or a permanent one.
// 404/410 mean the target is gone; other 4xx except 408/429 will not succeed on retry.
func classifyStatus(what string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return Permanent(fmt.Errorf("%s gone: status %d", what, code))
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%s unavailable: status %d", what, code)
	default:
		return Permanent(fmt.Errorf("%s rejected notification: status %d", what, code))
	}
}
