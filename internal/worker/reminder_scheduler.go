package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/domain/repository"
	"go-clinic-scheduling/internal/notification"
	"go-clinic-scheduling/pkg/clock"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("go-clinic-scheduling/internal/worker")

// Dispatcher is the part of notification.Dispatcher the scheduler uses
type Dispatcher interface {
	Dispatch(ctx context.Context, userID uuid.UUID, msg notification.Message, channels []entity.Channel) notification.Outcomes
	Supports(ch entity.Channel) bool
}

// ReminderClaimer hands out short leases so overlapping ticks, in this process
// or another, never work on the same reminder key at once.
type ReminderClaimer interface {
	Claim(ctx context.Context, appointmentID uuid.UUID, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, appointmentID uuid.UUID, key, token string) error
}

// Window is one "remind Offset before start on Channels" rule
type Window struct {
	Offset   time.Duration
	Channels []entity.Channel
	Label    string
}

func NewWindow(offset time.Duration, channels []entity.Channel) Window {
	return Window{Offset: offset, Channels: channels, Label: WindowLabel(offset)}
}

// WindowLabel renders an offset the way it is written in configuration: 24h, 30m, 1h30m.
func WindowLabel(offset time.Duration) string {
	s := offset.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}

// Key is the value stored in reminder_sent_channels for this window and channel
func (w Window) Key(ch entity.Channel) string {
	return w.Label + ":" + string(ch)
}

// dueAt reports whether the window is open at now for an appointment starting at start
func (w Window) dueAt(now, start time.Time) bool {
	return !start.Before(now) && !start.Add(-w.Offset).After(now)
}

type ReminderConfig struct {
	Interval time.Duration
	ClaimTTL time.Duration
	// DispatchTimeout caps one reminder dispatch. It is always kept below ClaimTTL
	// so the lease cannot expire while the dispatch is still in flight.
	DispatchTimeout time.Duration

	BatchSize           int
	Workers             int
	MaxOverlappingTicks int
	Windows             []Window
	Location            *time.Location
}

// TickReport summarizes one scan
type TickReport struct {
	Due           int
	Dispatched    int
	Marked        int
	SkippedLeased int
	SkippedStale  int
	Interrupted   int
	Failed        int
}

type ReminderScheduler struct {
	log             *logrus.Logger
	cfg             ReminderConfig
	clock           clock.Clock
	appointmentRepo repository.AppointmentRepository
	claimer         ReminderClaimer
	dispatcher      Dispatcher
	// windows ordered from the smallest offset to the widest
	byOffset []Window
}

func NewReminderScheduler(
	log *logrus.Logger,
	cfg ReminderConfig,
	clk clock.Clock,
	appointmentRepo repository.AppointmentRepository,
	claimer ReminderClaimer,
	dispatcher Dispatcher,
) *ReminderScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxOverlappingTicks <= 0 {
		cfg.MaxOverlappingTicks = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	byOffset := append([]Window(nil), cfg.Windows...)
	sort.Slice(byOffset, func(i, j int) bool { return byOffset[i].Offset < byOffset[j].Offset })

	return &ReminderScheduler{
		log:             log,
		cfg:             cfg,
		clock:           clk,
		appointmentRepo: appointmentRepo,
		claimer:         claimer,
		dispatcher:      dispatcher,
		byOffset:        byOffset,
	}
}

// Run ticks every Interval until ctx is done, then waits for in-flight ticks.
// At most MaxOverlappingTicks run at once; a tick that finds no free slot is skipped.
func (s *ReminderScheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slots := make(chan struct{}, s.cfg.MaxOverlappingTicks)
	wg := conc.NewWaitGroup()
	defer func() {
		if r := wg.WaitAndRecover(); r != nil {
			s.log.Errorf("Reminder tick panicked: %v", r.Value)
		}
	}()

	s.log.Infof("Reminder scheduler started: interval=%s windows=%d", s.cfg.Interval, len(s.cfg.Windows))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Reminder scheduler stopping, waiting for in-flight ticks")
			return
		case <-ticker.C():
			select {
			case slots <- struct{}{}:
			default:
				s.log.Warnf("Skipping reminder tick: %d ticks still running", s.cfg.MaxOverlappingTicks)
				continue
			}
			wg.Go(func() {
				defer func() { <-slots }()
				report, err := s.Tick(ctx)
				if err != nil {
					s.log.Warnf("Failed to run reminder tick: %+v", err)
					return
				}
				if report.Due > 0 {
					s.log.WithFields(logrus.Fields{
						"due":            report.Due,
						"dispatched":     report.Dispatched,
						"marked":         report.Marked,
						"skipped_leased": report.SkippedLeased,
						"skipped_stale":  report.SkippedStale,
						"interrupted":    report.Interrupted,
						"failed":         report.Failed,
					}).Info("Reminder tick finished")
				}
			})
		}
	}
}

type reminderJob struct {
	appointmentID uuid.UUID
	window        Window
	channel       entity.Channel
	key           string
}

type jobResult int

const (
	resultMarked jobResult = iota
	resultDispatchedNotMarked
	resultLeased
	resultStale
	resultInterrupted
	resultFailed
)

// Tick scans appointments once at the clock's current instant and sends every
// due reminder that has not been recorded yet. The scan pages through all
// pending appointments, BatchSize at a time, so a busy day cannot starve the
// later ones.
func (s *ReminderScheduler) Tick(ctx context.Context) (TickReport, error) {
	ctx, span := tracer.Start(ctx, "reminder.Tick")
	defer span.End()

	var report TickReport
	if len(s.cfg.Windows) == 0 {
		return report, nil
	}

	now := s.clock.Now()
	scan := entity.ReminderScan{Bands: s.bands(now), Limit: s.cfg.BatchSize}
	for {
		page, err := s.appointmentRepo.FindDueForReminder(ctx, scan)
		if err != nil {
			return report, fmt.Errorf("find appointments due for reminder: %w", err)
		}

		jobs := s.plan(now, page)
		report.Due += len(jobs)
		s.runJobs(ctx, now, jobs, &report)

		if len(page) < scan.Limit || ctx.Err() != nil {
			break
		}
		last := page[len(page)-1]
		scan.CursorStart, scan.CursorID = last.StartTime, last.ID
	}

	span.SetAttributes(attribute.Int("reminder.due", report.Due))
	return report, nil
}

// bands splits [now, now+widest offset] so each part maps to the one window that
// is current for appointments starting in it, with that window's sendable keys.
func (s *ReminderScheduler) bands(now time.Time) []entity.ReminderBand {
	bands := make([]entity.ReminderBand, 0, len(s.byOffset))
	after := now
	for i, w := range s.byOffset {
		band := entity.ReminderBand{After: after, Until: now.Add(w.Offset), IncludeAfter: i == 0}
		for _, ch := range w.Channels {
			if s.dispatcher.Supports(ch) {
				band.Keys = append(band.Keys, w.Key(ch))
			}
		}
		bands = append(bands, band)
		after = band.Until
	}
	return bands
}

func (s *ReminderScheduler) runJobs(ctx context.Context, now time.Time, jobs []reminderJob, report *TickReport) {
	if len(jobs) == 0 {
		return
	}

	p := pool.NewWithResults[jobResult]().WithMaxGoroutines(s.cfg.Workers)
	for _, job := range jobs {
		job := job
		p.Go(func() jobResult {
			return s.process(ctx, now, job)
		})
	}

	for _, res := range p.Wait() {
		switch res {
		case resultMarked:
			report.Dispatched++
			report.Marked++
		case resultDispatchedNotMarked:
			report.Dispatched++
		case resultLeased:
			report.SkippedLeased++
		case resultStale:
			report.SkippedStale++
		case resultInterrupted:
			report.Interrupted++
		case resultFailed:
			report.Failed++
		}
	}
}

// plan picks, per appointment, the most recently opened window (the due window
// with the smallest offset) so a late booking gets one reminder per channel, not
// one per window it skipped over.
func (s *ReminderScheduler) plan(now time.Time, appointments []entity.Appointment) []reminderJob {
	var jobs []reminderJob
	for i := range appointments {
		appt := &appointments[i]
		if !appt.IsScheduled() {
			continue
		}

		var current *Window
		for j := range s.cfg.Windows {
			w := &s.cfg.Windows[j]
			if w.dueAt(now, appt.StartTime) && (current == nil || w.Offset < current.Offset) {
				current = w
			}
		}
		if current == nil {
			continue
		}

		for _, ch := range current.Channels {
			if !s.dispatcher.Supports(ch) {
				continue
			}
			key := current.Key(ch)
			if appt.HasReminder(key) {
				continue
			}
			jobs = append(jobs, reminderJob{appointmentID: appt.ID, window: *current, channel: ch, key: key})
		}
	}
	return jobs
}

func (s *ReminderScheduler) process(ctx context.Context, now time.Time, job reminderJob) (res jobResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Panic while sending reminder %s for appointment %s: %v", job.key, job.appointmentID, r)
			res = resultFailed
		}
	}()

	token, ok, err := s.claimer.Claim(ctx, job.appointmentID, job.key, s.cfg.ClaimTTL)
	if err != nil {
		s.log.Warnf("Failed to claim reminder lease %s for appointment %s: %+v", job.key, job.appointmentID, err)
		return resultFailed
	}
	if !ok {
		return resultLeased
	}
	defer func() {
		if err := s.claimer.Release(context.WithoutCancel(ctx), job.appointmentID, job.key, token); err != nil {
			s.log.Warnf("Failed to release reminder lease %s for appointment %s: %+v", job.key, job.appointmentID, err)
		}
	}()

	// Work under the lease stops before the lease can expire
	leaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := s.clock.AfterFunc(s.dispatchBudget(), cancel)
	defer timer.Stop()

	appt, err := s.appointmentRepo.FindByID(leaseCtx, job.appointmentID)
	if err != nil {
		s.log.Warnf("Failed to reload appointment %s: %+v", job.appointmentID, err)
		return resultFailed
	}
	if appt == nil || !appt.IsScheduled() || appt.HasReminder(job.key) || !job.window.dueAt(now, appt.StartTime) {
		return resultStale
	}

	outcome := s.dispatcher.Dispatch(leaseCtx, appt.PatientID, s.message(appt, job.window), []entity.Channel{job.channel})[job.channel]
	if !outcome.Attempted() {
		return resultInterrupted
	}

	// A finished attempt is recorded even during shutdown, or it would be sent again
	marked, err := s.appointmentRepo.MarkReminderSent(context.WithoutCancel(ctx), appt.ID, job.key)
	if err != nil {
		s.log.Warnf("Failed to mark reminder %s sent for appointment %s: %+v", job.key, appt.ID, err)
		return resultFailed
	}
	if !marked {
		return resultDispatchedNotMarked
	}
	return resultMarked
}

// dispatchBudget is how long one job may work under its lease
func (s *ReminderScheduler) dispatchBudget() time.Duration {
	budget := s.cfg.ClaimTTL - s.cfg.ClaimTTL/5
	if s.cfg.DispatchTimeout > 0 && s.cfg.DispatchTimeout < budget {
		budget = s.cfg.DispatchTimeout
	}
	return budget
}

func (s *ReminderScheduler) message(appt *entity.Appointment, w Window) notification.Message {
	start := appt.StartTime.In(s.cfg.Location)
	return notification.Message{
		EventType: entity.EventAppointmentReminder,
		Title:     "Appointment reminder",
		Body:      fmt.Sprintf("Your %s appointment starts at %s", appt.Mode, start.Format("Mon, 02 Jan 2006 15:04 MST")),
		Data: map[string]string{
			"appointment_id": appt.ID.String(),
			"doctor_id":      appt.DoctorID.String(),
			"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
			"window":         w.Label,
		},
	}
}
