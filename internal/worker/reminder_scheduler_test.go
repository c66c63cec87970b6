package worker

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/notification"
	"go-clinic-scheduling/internal/repository/memory"
	"go-clinic-scheduling/pkg/clock"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchCall struct {
	userID  uuid.UUID
	msg     notification.Message
	channel entity.Channel
}

type fakeDispatcher struct {
	mu        sync.Mutex
	calls     []dispatchCall
	supported map[entity.Channel]bool
	outcome   func(ctx context.Context, ch entity.Channel) notification.Outcome
}

func newFakeDispatcher(channels ...entity.Channel) *fakeDispatcher {
	d := &fakeDispatcher{supported: map[entity.Channel]bool{}}
	for _, ch := range channels {
		d.supported[ch] = true
	}
	return d
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, userID uuid.UUID, msg notification.Message, channels []entity.Channel) notification.Outcomes {
	d.mu.Lock()
	outcome := d.outcome
	for _, ch := range channels {
		d.calls = append(d.calls, dispatchCall{userID: userID, msg: msg, channel: ch})
	}
	d.mu.Unlock()

	out := notification.Outcomes{}
	for _, ch := range channels {
		if outcome != nil {
			out[ch] = outcome(ctx, ch)
		} else {
			out[ch] = notification.Delivered(1)
		}
	}
	return out
}

func (d *fakeDispatcher) setOutcome(fn func(ctx context.Context, ch entity.Channel) notification.Outcome) {
	d.mu.Lock()
	d.outcome = fn
	d.mu.Unlock()
}

func (d *fakeDispatcher) Supports(ch entity.Channel) bool {
	return d.supported[ch]
}

func (d *fakeDispatcher) Calls() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

var defaultWindows = []Window{
	NewWindow(24*time.Hour, []entity.Channel{entity.ChannelInApp, entity.ChannelPush}),
	NewWindow(30*time.Minute, []entity.Channel{entity.ChannelPush, entity.ChannelMessaging}),
}

type fixture struct {
	clock      *clock.Fake
	appts      *memory.AppointmentRepository
	claimer    *memory.ReminderClaimer
	dispatcher *fakeDispatcher
	scheduler  *ReminderScheduler
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		clock:      clock.NewFake(now),
		appts:      memory.NewAppointmentRepository(),
		dispatcher: newFakeDispatcher(entity.ChannelInApp, entity.ChannelPush),
	}
	f.claimer = memory.NewReminderClaimer(f.clock.Now)
	f.configure(ReminderConfig{
		Interval: time.Minute,
		ClaimTTL: time.Minute,
		Workers:  4,
		Windows:  defaultWindows,
	})
	return f
}

func (f *fixture) configure(cfg ReminderConfig) {
	f.scheduler = NewReminderScheduler(quietLogger(), cfg, f.clock, f.appts, f.claimer, f.dispatcher)
}

func (f *fixture) book(t *testing.T, start time.Time) *entity.Appointment {
	t.Helper()
	appt := &entity.Appointment{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Mode:      entity.AppointmentModeInPerson,
		Status:    entity.AppointmentStatusScheduled,
	}
	require.NoError(t, f.appts.Create(context.Background(), appt))
	return appt
}

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func TestWindowLabel(t *testing.T) {
	assert.Equal(t, "24h", WindowLabel(24*time.Hour))
	assert.Equal(t, "30m", WindowLabel(30*time.Minute))
	assert.Equal(t, "1h30m", WindowLabel(90*time.Minute))
	assert.Equal(t, "10s", WindowLabel(10*time.Second))
	assert.Equal(t, "30m:push", NewWindow(30*time.Minute, nil).Key(entity.ChannelPush))
}

func TestTick_SendsDueWindowOnce(t *testing.T) {
	f := newFixture(at(9, 31))
	appt := f.book(t, at(10, 0))

	report, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Due, "messaging is not supported, only 30m:push is due")
	assert.Equal(t, 1, report.Marked)
	calls := f.dispatcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, appt.PatientID, calls[0].userID)
	assert.Equal(t, entity.ChannelPush, calls[0].channel)
	assert.Equal(t, entity.EventAppointmentReminder, calls[0].msg.EventType)
	assert.Equal(t, "30m", calls[0].msg.Data["window"])

	stored, _ := f.appts.FindByID(context.Background(), appt.ID)
	assert.Equal(t, []string{"30m:push"}, []string(stored.ReminderSentChannels))

	f.clock.Set(at(9, 32))
	report, err = f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Due)
	assert.Len(t, f.dispatcher.Calls(), 1)
}

func TestTick_WindowBoundaryIsInclusive(t *testing.T) {
	f := newFixture(at(9, 29))
	f.book(t, at(10, 0))

	report, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Marked, "only the 24h window is open: in_app and push")

	f.clock.Set(at(9, 30))
	report, err = f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Marked, "30m window opens exactly at start - 30m")
}

func TestTick_NothingBeforeFirstWindow(t *testing.T) {
	f := newFixture(at(9, 0))
	f.book(t, at(9, 0).Add(25*time.Hour))

	report, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Due)
	assert.Empty(t, f.dispatcher.Calls())
}

func TestTick_ConcurrentTicksDispatchOnce(t *testing.T) {
	f := newFixture(at(9, 45))
	appt := f.book(t, at(10, 0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.scheduler.Tick(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.dispatcher.Calls(), 1)
	stored, _ := f.appts.FindByID(context.Background(), appt.ID)
	assert.Equal(t, []string{"30m:push"}, []string(stored.ReminderSentChannels))
}

func TestTick_SkipsKeyLeasedElsewhere(t *testing.T) {
	f := newFixture(at(9, 45))
	appt := f.book(t, at(10, 0))
	_, ok, err := f.claimer.Claim(context.Background(), appt.ID, "30m:push", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	report, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedLeased)
	assert.Empty(t, f.dispatcher.Calls())

	f.clock.Advance(2 * time.Minute)
	report, err = f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Marked, "expired lease is claimable again")
}

func TestTick_CancelledAppointmentGetsNothing(t *testing.T) {
	f := newFixture(at(9, 45))
	appt := f.book(t, at(10, 0))
	appt.Status = entity.AppointmentStatusCancelled
	_, err := f.appts.UpdateStatus(context.Background(), appt, entity.AppointmentStatusScheduled)
	require.NoError(t, err)

	report, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Due)
	assert.Empty(t, f.dispatcher.Calls())
}

func TestTick_TerminalFailureIsRecorded(t *testing.T) {
	f := newFixture(at(9, 45))
	appt := f.book(t, at(10, 0))
	f.dispatcher.setOutcome(func(context.Context, entity.Channel) notification.Outcome {
		return notification.Failed(notification.ReasonNoSubscription, 0)
	})

	report, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Marked)

	stored, _ := f.appts.FindByID(context.Background(), appt.ID)
	assert.True(t, stored.HasReminder("30m:push"))
}

func TestTick_InterruptedDispatchLeavesKeyUnset(t *testing.T) {
	f := newFixture(at(9, 45))
	appt := f.book(t, at(10, 0))
	f.dispatcher.setOutcome(func(context.Context, entity.Channel) notification.Outcome {
		return notification.Failed(notification.ReasonCancelled, 1)
	})

	report, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Interrupted)
	assert.Equal(t, 0, report.Marked)

	stored, _ := f.appts.FindByID(context.Background(), appt.ID)
	assert.Empty(t, stored.ReminderSentChannels)

	f.dispatcher.setOutcome(nil)
	report, err = f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Marked, "lease was released so the next tick retries")
}

func TestTick_RescheduleResendsForNewTime(t *testing.T) {
	f := newFixture(at(9, 45))
	appt := f.book(t, at(10, 0))

	_, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)

	rows, err := f.appts.UpdateTimes(context.Background(), appt.ID, at(11, 0), at(11, 30))
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	f.clock.Set(at(10, 40))
	report, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Marked)
	assert.Len(t, f.dispatcher.Calls(), 2)
}

func TestTick_PagesPastBatchSize(t *testing.T) {
	f := newFixture(at(9, 0))
	f.configure(ReminderConfig{ClaimTTL: time.Minute, BatchSize: 1, Workers: 2, Windows: defaultWindows})
	for i := 0; i < 5; i++ {
		f.book(t, at(12, 0).Add(time.Duration(i)*10*time.Minute))
	}

	report, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, report.Due, "24h window on in_app and push for all five")
	assert.Equal(t, 10, report.Marked)
}

func TestTick_BusyDayKeepsEveryWindow(t *testing.T) {
	f := newFixture(at(10, 20).Add(-24 * time.Hour))
	f.configure(ReminderConfig{ClaimTTL: time.Minute, BatchSize: 2, Workers: 2, Windows: defaultWindows})
	booked := []*entity.Appointment{f.book(t, at(10, 0)), f.book(t, at(10, 10)), f.book(t, at(10, 20))}

	for !f.clock.Now().After(at(10, 20)) {
		_, err := f.scheduler.Tick(context.Background())
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	for _, appt := range booked {
		stored, _ := f.appts.FindByID(context.Background(), appt.ID)
		assert.ElementsMatch(t, []string{"24h:in_app", "24h:push", "30m:push"}, []string(stored.ReminderSentChannels),
			"appointment at %s", appt.StartTime.Format("15:04"))
	}
	assert.Len(t, f.dispatcher.Calls(), 9)
}

func TestTick_DispatchStopsBeforeLeaseExpires(t *testing.T) {
	f := newFixture(at(9, 45))
	appt := f.book(t, at(10, 0))

	started := make(chan struct{}, 1)
	f.dispatcher.setOutcome(func(ctx context.Context, _ entity.Channel) notification.Outcome {
		started <- struct{}{}
		<-ctx.Done()
		return notification.Failed(notification.ReasonCancelled, 1)
	})

	first := make(chan TickReport, 1)
	go func() {
		report, err := f.scheduler.Tick(context.Background())
		assert.NoError(t, err)
		first <- report
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not start")
	}

	// Still inside the lease: an overlapping tick must leave the key alone
	f.clock.Advance(30 * time.Second)
	report, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedLeased)

	// Past the dispatch budget, which ends before the one minute lease does
	f.clock.Advance(30 * time.Second)
	select {
	case report = <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch was not cut off at the lease budget")
	}
	assert.Equal(t, 1, report.Interrupted)
	stored, _ := f.appts.FindByID(context.Background(), appt.ID)
	assert.Empty(t, stored.ReminderSentChannels)

	f.dispatcher.setOutcome(nil)
	report, err = f.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Marked)
	assert.Len(t, f.dispatcher.Calls(), 2, "the cut-off attempt and one delivery")
}

func TestDispatchBudget(t *testing.T) {
	s := NewReminderScheduler(quietLogger(), ReminderConfig{ClaimTTL: 5 * time.Minute}, clock.NewFake(at(9, 0)), nil, nil, nil)
	assert.Equal(t, 4*time.Minute, s.dispatchBudget())

	s = NewReminderScheduler(quietLogger(), ReminderConfig{ClaimTTL: 5 * time.Minute, DispatchTimeout: 30 * time.Second}, clock.NewFake(at(9, 0)), nil, nil, nil)
	assert.Equal(t, 30*time.Second, s.dispatchBudget())
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	f := newFixture(at(9, 45))
	f.book(t, at(10, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.scheduler.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		f.clock.Tick()
		return len(f.dispatcher.Calls()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Len(t, f.dispatcher.Calls(), 1)
}
