package notification

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, target entity.NotificationSubscription, msg Message) error {
	args := m.Called(ctx, target, msg)
	return args.Error(0)
}

type panicSender struct{}

func (panicSender) Send(context.Context, entity.NotificationSubscription, Message) error {
	panic("provider sdk blew up")
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig() Config {
	return Config{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, BulkConcurrency: 4}
}

var reminder = Message{EventType: entity.EventAppointmentReminder, Title: "Appointment reminder", Body: "Your appointment starts at 10:00"}

func TestDispatch_InAppAlwaysWritesRecord(t *testing.T) {
	records := memory.NewNotificationRepository()
	d := NewDispatcher(quietLogger(), testConfig(), records, memory.NewSubscriptionRepository(), nil)
	userID := uuid.New()

	outcomes := d.Dispatch(context.Background(), userID, reminder, []entity.Channel{entity.ChannelInApp, entity.ChannelPush})

	assert.Equal(t, StatusDelivered, outcomes[entity.ChannelInApp].Status)
	assert.Equal(t, Skipped(ReasonChannelDisabled), outcomes[entity.ChannelPush])

	stored := records.Records()
	require.Len(t, stored, 1)
	assert.Equal(t, userID, stored[0].UserID)
	assert.Equal(t, entity.EventAppointmentReminder, stored[0].EventType)
	assert.Equal(t, "Appointment reminder: Your appointment starts at 10:00", stored[0].Message)
}

// lostAckRepository stores the first record and then reports a failure, like a
// commit whose acknowledgement never arrived.
type lostAckRepository struct {
	*memory.NotificationRepository
	calls atomic.Int32
}

func (r *lostAckRepository) Create(ctx context.Context, record *entity.NotificationRecord) error {
	err := r.NotificationRepository.Create(ctx, record)
	if r.calls.Add(1) == 1 {
		return errors.New("connection reset after commit")
	}
	return err
}

func TestDispatch_InAppRetryWritesOneRecord(t *testing.T) {
	records := &lostAckRepository{NotificationRepository: memory.NewNotificationRepository()}
	d := NewDispatcher(quietLogger(), testConfig(), records, memory.NewSubscriptionRepository(), nil)

	outcomes := d.Dispatch(context.Background(), uuid.New(), reminder, []entity.Channel{entity.ChannelInApp})

	assert.Equal(t, Delivered(2), outcomes[entity.ChannelInApp])
	assert.Len(t, records.Records(), 1)
}

func TestDispatch_NoSubscriptionIsNotRetried(t *testing.T) {
	sender := new(mockSender)
	d := NewDispatcher(quietLogger(), testConfig(), memory.NewNotificationRepository(), memory.NewSubscriptionRepository(),
		map[entity.Channel]Sender{entity.ChannelPush: sender})

	outcomes := d.Dispatch(context.Background(), uuid.New(), reminder, []entity.Channel{entity.ChannelPush})

	assert.Equal(t, Failed(ReasonNoSubscription, 0), outcomes[entity.ChannelPush])
	assert.True(t, outcomes[entity.ChannelPush].Attempted())
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_RetriesTransientFailures(t *testing.T) {
	subs := memory.NewSubscriptionRepository()
	userID := uuid.New()
	subs.Add(userID, entity.ChannelMessaging, entity.JSON{"phone": "+6281234567890"})

	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, reminder).Return(errors.New("provider timeout")).Twice()
	sender.On("Send", mock.Anything, mock.Anything, reminder).Return(nil).Once()

	d := NewDispatcher(quietLogger(), testConfig(), memory.NewNotificationRepository(), subs,
		map[entity.Channel]Sender{entity.ChannelMessaging: sender})

	outcomes := d.Dispatch(context.Background(), userID, reminder, []entity.Channel{entity.ChannelMessaging})

	assert.Equal(t, Delivered(3), outcomes[entity.ChannelMessaging])
	sender.AssertExpectations(t)
}

func TestDispatch_ExhaustedRetriesFail(t *testing.T) {
	subs := memory.NewSubscriptionRepository()
	userID := uuid.New()
	subs.Add(userID, entity.ChannelMessaging, entity.JSON{"phone": "+6281234567890"})

	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, reminder).Return(errors.New("provider timeout"))

	d := NewDispatcher(quietLogger(), testConfig(), memory.NewNotificationRepository(), subs,
		map[entity.Channel]Sender{entity.ChannelMessaging: sender})

	outcome := d.Dispatch(context.Background(), userID, reminder, []entity.Channel{entity.ChannelMessaging})[entity.ChannelMessaging]

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, 3, outcome.Attempts, "one attempt plus two retries")
	assert.Contains(t, outcome.Reason, "provider timeout")
	assert.True(t, outcome.Attempted())
	sender.AssertNumberOfCalls(t, "Send", 3)
}

func TestDispatch_PermanentErrorStopsRetries(t *testing.T) {
	subs := memory.NewSubscriptionRepository()
	userID := uuid.New()
	subs.Add(userID, entity.ChannelPush, entity.JSON{"endpoint": "https://push.example/old"})
	subs.Add(userID, entity.ChannelPush, entity.JSON{"endpoint": "https://push.example/new"})

	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(s entity.NotificationSubscription) bool {
		return s.TargetString("endpoint") == "https://push.example/old"
	}), reminder).Return(Permanent(errors.New("push endpoint gone: status 410")))
	sender.On("Send", mock.Anything, mock.MatchedBy(func(s entity.NotificationSubscription) bool {
		return s.TargetString("endpoint") == "https://push.example/new"
	}), reminder).Return(nil)

	d := NewDispatcher(quietLogger(), testConfig(), memory.NewNotificationRepository(), subs,
		map[entity.Channel]Sender{entity.ChannelPush: sender})

	outcome := d.Dispatch(context.Background(), userID, reminder, []entity.Channel{entity.ChannelPush})[entity.ChannelPush]

	assert.Equal(t, Delivered(2), outcome, "one attempt on the gone endpoint, one on the live one")
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestDispatch_PanickingSenderIsIsolated(t *testing.T) {
	subs := memory.NewSubscriptionRepository()
	userID := uuid.New()
	subs.Add(userID, entity.ChannelPush, entity.JSON{"endpoint": "https://push.example/x"})

	d := NewDispatcher(quietLogger(), testConfig(), memory.NewNotificationRepository(), subs,
		map[entity.Channel]Sender{entity.ChannelPush: panicSender{}})

	outcomes := d.Dispatch(context.Background(), userID, reminder, []entity.Channel{entity.ChannelPush, entity.ChannelInApp})

	assert.Equal(t, StatusFailed, outcomes[entity.ChannelPush].Status)
	assert.Equal(t, StatusDelivered, outcomes[entity.ChannelInApp].Status)
}

func TestDispatch_CancelledContextIsNotAttempted(t *testing.T) {
	subs := memory.NewSubscriptionRepository()
	userID := uuid.New()
	subs.Add(userID, entity.ChannelPush, entity.JSON{"endpoint": "https://push.example/x"})

	ctx, cancel := context.WithCancel(context.Background())
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything, reminder).Run(func(mock.Arguments) { cancel() }).Return(context.Canceled)

	d := NewDispatcher(quietLogger(), testConfig(), memory.NewNotificationRepository(), subs,
		map[entity.Channel]Sender{entity.ChannelPush: sender})

	outcome := d.Dispatch(ctx, userID, reminder, []entity.Channel{entity.ChannelPush})[entity.ChannelPush]

	assert.Equal(t, ReasonCancelled, outcome.Reason)
	assert.False(t, outcome.Attempted())
}

type countingSender struct {
	calls atomic.Int32
	fail  uuid.UUID
}

func (s *countingSender) Send(_ context.Context, target entity.NotificationSubscription, _ Message) error {
	s.calls.Add(1)
	if target.UserID == s.fail {
		panic("bad target")
	}
	return nil
}

func TestBulkDispatch_DeduplicatesAndIsolates(t *testing.T) {
	subs := memory.NewSubscriptionRepository()
	good1, good2, bad := uuid.New(), uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{good1, good2, bad} {
		subs.Add(id, entity.ChannelPush, entity.JSON{"endpoint": "https://push.example/" + id.String()})
	}
	sender := &countingSender{fail: bad}
	records := memory.NewNotificationRepository()

	d := NewDispatcher(quietLogger(), testConfig(), records, subs, map[entity.Channel]Sender{entity.ChannelPush: sender})

	results := d.BulkDispatch(context.Background(), []uuid.UUID{good1, good1, bad, good2, good1}, reminder,
		[]entity.Channel{entity.ChannelInApp, entity.ChannelPush})

	require.Len(t, results, 3)
	assert.Equal(t, int32(3), sender.calls.Load(), "each distinct user sent once")
	assert.Equal(t, StatusDelivered, results[good1][entity.ChannelPush].Status)
	assert.Equal(t, StatusDelivered, results[good2][entity.ChannelPush].Status)
	assert.Equal(t, StatusFailed, results[bad][entity.ChannelPush].Status)
	assert.Equal(t, StatusDelivered, results[bad][entity.ChannelInApp].Status)
	assert.Len(t, records.Records(), 3)
}

func TestSupports(t *testing.T) {
	d := NewDispatcher(quietLogger(), testConfig(), memory.NewNotificationRepository(), memory.NewSubscriptionRepository(),
		map[entity.Channel]Sender{entity.ChannelPush: new(mockSender)})

	assert.True(t, d.Supports(entity.ChannelInApp))
	assert.True(t, d.Supports(entity.ChannelPush))
	assert.False(t, d.Supports(entity.ChannelMessaging))
}
