package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/domain/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("go-clinic-scheduling/internal/notification")

// Sender delivers a message to one external target of a channel
type Sender interface {
	Send(ctx context.Context, target entity.NotificationSubscription, msg Message) error
}

// Config bounds retries and fan-out
type Config struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	BulkConcurrency int
}

// Dispatcher fans a message out to a set of channels and reports a per-channel
// outcome. Errors never escape it; they become Failed outcomes.
type Dispatcher struct {
	log              *logrus.Logger
	cfg              Config
	notificationRepo repository.NotificationRepository
	subscriptionRepo repository.SubscriptionRepository
	senders          map[entity.Channel]Sender
}

func NewDispatcher(
	log *logrus.Logger,
	cfg Config,
	notificationRepo repository.NotificationRepository,
	subscriptionRepo repository.SubscriptionRepository,
	senders map[entity.Channel]Sender,
) *Dispatcher {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}
	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = 8
	}
	if senders == nil {
		senders = map[entity.Channel]Sender{}
	}
	return &Dispatcher{
		log:              log,
		cfg:              cfg,
		notificationRepo: notificationRepo,
		subscriptionRepo: subscriptionRepo,
		senders:          senders,
	}
}

// Supports reports whether the channel can produce anything but Skipped
func (d *Dispatcher) Supports(ch entity.Channel) bool {
	if ch == entity.ChannelInApp {
		return true
	}
	_, ok := d.senders[ch]
	return ok
}

// Dispatch delivers msg to userID on each channel. The in-app record is always
// written when in_app is requested, whatever happens on the other channels.
func (d *Dispatcher) Dispatch(ctx context.Context, userID uuid.UUID, msg Message, channels []entity.Channel) Outcomes {
	ctx, span := tracer.Start(ctx, "notification.Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("notification.user_id", userID.String()),
		attribute.String("notification.event_type", msg.EventType),
	)

	outcomes := make(Outcomes, len(channels))
	for _, ch := range channels {
		if _, done := outcomes[ch]; done {
			continue
		}
		outcome := d.dispatchChannel(ctx, userID, msg, ch)
		outcomes[ch] = outcome
		span.SetAttributes(attribute.String("notification.outcome."+string(ch), string(outcome.Status)))

		if outcome.Status == StatusFailed {
			d.log.Warnf("Notification %s to user %s on %s failed: %s", msg.EventType, userID, ch, outcome.Reason)
		}
	}
	return outcomes
}

func (d *Dispatcher) dispatchChannel(ctx context.Context, userID uuid.UUID, msg Message, ch entity.Channel) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("Panic while dispatching %s to user %s: %v", ch, userID, r)
			outcome = Failed(fmt.Sprintf("panic: %v", r), 0)
		}
	}()

	if ch == entity.ChannelInApp {
		return d.dispatchInApp(ctx, userID, msg)
	}

	sender, ok := d.senders[ch]
	if !ok {
		return Skipped(ReasonChannelDisabled)
	}

	var subs []entity.NotificationSubscription
	_, err := d.retry(ctx, func() error {
		var err error
		subs, err = d.subscriptionRepo.FindByUserAndChannel(ctx, userID, ch)
		return err
	})
	if err != nil {
		return d.failure(ctx, fmt.Sprintf("subscription lookup: %v", err), 0)
	}
	if len(subs) == 0 {
		return Failed(ReasonNoSubscription, 0)
	}

	var attempts int
	var lastErr error
	for _, sub := range subs {
		n, err := d.retry(ctx, func() error {
			return sender.Send(ctx, sub, msg)
		})
		attempts += n
		if err == nil {
			return Delivered(attempts)
		}
		lastErr = err
		d.log.Debugf("Delivery to %s target %s of user %s failed: %+v", ch, sub.ID, userID, err)
	}
	return d.failure(ctx, fmt.Sprintf("%v: %v", entity.ErrDelivery, lastErr), attempts)
}

func (d *Dispatcher) dispatchInApp(ctx context.Context, userID uuid.UUID, msg Message) Outcome {
	// The id is fixed before the first attempt so a retry after an ambiguous
	// failure hits the same row instead of adding a second one.
	record := &entity.NotificationRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Message:   inAppText(msg),
		EventType: msg.EventType,
	}
	attempts, err := d.retry(ctx, func() error {
		return d.notificationRepo.Create(ctx, record)
	})
	if err != nil {
		return d.failure(ctx, fmt.Sprintf("store in-app notification: %v", err), attempts)
	}
	return Delivered(attempts)
}

// failure reports Cancelled instead of the error when ctx ended mid-dispatch,
// so callers can tell an interrupted attempt from a terminal one.
func (d *Dispatcher) failure(ctx context.Context, reason string, attempts int) Outcome {
	if ctx.Err() != nil {
		return Failed(ReasonCancelled, attempts)
	}
	return Failed(reason, attempts)
}

// retry runs op with bounded exponential backoff. Permanent errors and context
// cancellation stop it early. Returns the number of attempts made.
func (d *Dispatcher) retry(ctx context.Context, op func() error) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialInterval
	b.MaxInterval = d.cfg.MaxInterval
	b.MaxElapsedTime = 0

	var attempts int
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if IsPermanent(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.cfg.MaxRetries)), ctx), func(err error, wait time.Duration) {
		d.log.Debugf("Retrying notification operation in %v: %+v", wait, err)
	})
	return attempts, err
}

type userOutcomes struct {
	userID   uuid.UUID
	outcomes Outcomes
}

// BulkDispatch de-duplicates userIDs and dispatches to each with bounded
// concurrency. A failure or panic for one user never affects the others.
func (d *Dispatcher) BulkDispatch(ctx context.Context, userIDs []uuid.UUID, msg Message, channels []entity.Channel) map[uuid.UUID]Outcomes {
	seen := make(map[uuid.UUID]bool, len(userIDs))
	p := pool.NewWithResults[userOutcomes]().WithMaxGoroutines(d.cfg.BulkConcurrency)

	for _, id := range userIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		userID := id
		p.Go(func() (res userOutcomes) {
			res.userID = userID
			defer func() {
				if r := recover(); r != nil {
					d.log.Errorf("Panic while dispatching to user %s: %v", userID, r)
					res.outcomes = make(Outcomes, len(channels))
					for _, ch := range channels {
						res.outcomes[ch] = Failed(fmt.Sprintf("panic: %v", r), 0)
					}
				}
			}()
			res.outcomes = d.Dispatch(ctx, userID, msg, channels)
			return res
		})
	}

	results := make(map[uuid.UUID]Outcomes, len(seen))
	for _, r := range p.Wait() {
		results[r.userID] = r.outcomes
	}
	return results
}

func inAppText(msg Message) string {
	if msg.Title == "" {
		return msg.Body
	}
	if msg.Body == "" {
		return msg.Title
	}
	return msg.Title + ": " + msg.Body
}
