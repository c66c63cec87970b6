package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go-clinic-scheduling/internal/domain/entity"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// messagingPayload is what messaging providers receive: a phone number and text
type messagingPayload struct {
	UserID    string            `json:"user_id"`
	To        string            `json:"to"`
	EventType string            `json:"event_type"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
}

func newMessagingPayload(target entity.NotificationSubscription, msg Message) (messagingPayload, error) {
	phone := strings.TrimSpace(target.TargetString("phone"))
	if phone == "" {
		return messagingPayload{}, Permanent(errors.New("messaging subscription has no phone"))
	}
	return messagingPayload{
		UserID:    target.UserID.String(),
		To:        phone,
		EventType: msg.EventType,
		Body:      inAppText(msg),
		Data:      msg.Data,
	}, nil
}

// MessageWriter is the subset of *kafka.Writer the sender needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaMessagingSender hands messaging notifications to the SMS/WhatsApp gateway
// through a Kafka topic, keyed by user id so one user's messages stay ordered.
type KafkaMessagingSender struct {
	writer MessageWriter
	topic  string
}

func NewKafkaMessagingSender(writer MessageWriter, topic string) *KafkaMessagingSender {
	return &KafkaMessagingSender{writer: writer, topic: topic}
}

// NewKafkaWriter builds the writer used by KafkaMessagingSender
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Balancer: &kafka.Hash{},
	})
}

func (s *KafkaMessagingSender) Send(ctx context.Context, target entity.NotificationSubscription, msg Message) error {
	payload, err := newMessagingPayload(target, msg)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Permanent(err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(msg.EventType)},
		{Key: "channel", Value: []byte(entity.ChannelMessaging)},
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Topic:   s.topic,
		Key:     []byte(target.UserID.String()),
		Value:   raw,
		Headers: headers,
	})
}

// WebhookMessagingSender posts messaging notifications to an HTTP gateway
type WebhookMessagingSender struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookMessagingSender(url string, token string) *WebhookMessagingSender {
	return &WebhookMessagingSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *WebhookMessagingSender) Send(ctx context.Context, target entity.NotificationSubscription, msg Message) error {
	if s.url == "" {
		return Permanent(errors.New("messaging webhook url not configured"))
	}
	payload, err := newMessagingPayload(target, msg)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return classifyStatus("messaging webhook", resp.StatusCode)
}

// NoopSender accepts everything; used when a provider is configured as noop
type NoopSender struct {
	log *logrus.Logger
}

func NewNoopSender(log *logrus.Logger) *NoopSender {
	return &NoopSender{log: log}
}

func (s *NoopSender) Send(_ context.Context, target entity.NotificationSubscription, msg Message) error {
	if s.log != nil {
		s.log.Debugf("noop sender: %s for user %s on %s", msg.EventType, target.UserID, target.Channel)
	}
	return nil
}
