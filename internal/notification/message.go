package notification

import (
	"errors"

	"go-clinic-scheduling/internal/domain/entity"
)

// Message is the channel-independent content of a notification
type Message struct {
	EventType string            `json:"event_type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
}

// Status is the tag of a per-channel Outcome
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome reasons
const (
	ReasonNoSubscription  = "NoSubscription"
	ReasonChannelDisabled = "ChannelDisabled"
	ReasonCancelled       = "Cancelled"
)

// Outcome is the result of one channel: Delivered, Failed(reason) or Skipped(reason).
type Outcome struct {
	Status   Status `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Attempts int    `json:"attempts"`
}

func Delivered(attempts int) Outcome {
	return Outcome{Status: StatusDelivered, Attempts: attempts}
}

func Failed(reason string, attempts int) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Attempts: attempts}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

// Attempted reports whether a dispatch attempt reached a final answer for the
// channel, delivered or terminally failed.
func (o Outcome) Attempted() bool {
	return o.Status == StatusDelivered || (o.Status == StatusFailed && o.Reason != ReasonCancelled)
}

// Outcomes maps each requested channel to its result
type Outcomes map[entity.Channel]Outcome

// Delivered lists the channels that were delivered
func (o Outcomes) Delivered() []entity.Channel {
	var out []entity.Channel
	for _, ch := range entity.AllChannels {
		if res, ok := o[ch]; ok && res.Status == StatusDelivered {
			out = append(out, ch)
		}
	}
	return out
}

// permanentError marks a send failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the dispatcher stops retrying it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
