// Package reminder notifies audit assignees as an audit's due date approaches.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tally/internal/domain"
	"github.com/gosuda/tally/internal/notify"
	redisstore "github.com/gosuda/tally/internal/store/redis"
	"github.com/gosuda/tally/internal/telemetry"
)

const jobName = "audit-reminders"

// BatchSize is the number of audits loaded per page during a sweep.
const BatchSize = 200

// Notifier delivers a message to a user. *notify.Notifier satisfies this interface.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) (notify.Delivery, error)
}

// Locker elects one sweeping instance. *redis.PubSub satisfies this interface.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Sweeper struct {
	sessions domain.AuditSessionRepository
	notifier Notifier
	locker   Locker
	lockTTL  time.Duration
	cron     *cron.Cron
}

// New creates a sweeper. locker may be nil for single-instance deployments.
func New(sessions domain.AuditSessionRepository, notifier Notifier, locker Locker, lockTTL time.Duration) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		notifier: notifier,
		locker:   locker,
		lockTTL:  lockTTL,
		cron:     cron.New(),
	}
}

// Start schedules Sweep on spec (standard cron or a descriptor such as
// "@every 5m") and starts the scheduler. Runs stop when ctx is done.
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("reminder sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("reminder.Start: schedule %q: %w", spec, err)
	}

	s.cron.Start()
	log.Info().Str("schedule", spec).Msg("reminder sweeper started")

	return nil
}

// Stop halts the scheduler and returns a context that is done once a
// running sweep has finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep sends all reminders that are due now and returns how many audits were reminded.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	return s.SweepAt(ctx, time.Now())
}

// SweepAt is Sweep with an explicit clock.
func (s *Sweeper) SweepAt(ctx context.Context, now time.Time) (int, error) {
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, redisstore.LockKey(jobName), s.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("reminder.Sweep: %w", err)
		}
		if !ok {
			log.Debug().Msg("reminder sweep held by another instance")
			return 0, nil
		}
	}

	// Every reminded audit leaves the result set, so each page starts over
	// from the first audit still owed a reminder.
	sent := 0
	for {
		due, err := s.sessions.ListDueForReminder(ctx, now, BatchSize)
		if err != nil {
			return sent, fmt.Errorf("reminder.Sweep: %w", err)
		}

		n, err := s.remind(ctx, due, now)
		sent += n
		if err != nil {
			return sent, err
		}
		if len(due) < BatchSize || n == 0 {
			return sent, nil
		}
	}
}

func (s *Sweeper) remind(ctx context.Context, due []*domain.AuditSession, now time.Time) (int, error) {
	sent := 0
	for _, session := range due {
		if !session.Status.IsOpen() || session.DueDate == nil {
			continue
		}

		stage := domain.DueReminderStage(*session.DueDate, now)
		if stage <= session.ReminderStage {
			continue
		}

		// Claim the stage first so a crash never repeats a reminder.
		err := s.sessions.SetReminderStage(ctx, session.OrganizationID, session.ID, stage)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return sent, fmt.Errorf("reminder.Sweep: %w", err)
		}

		s.notifyAssignees(ctx, session, stage, now)
		sent++
	}

	return sent, nil
}

func (s *Sweeper) notifyAssignees(ctx context.Context, session *domain.AuditSession, stage domain.ReminderStage, now time.Time) {
	msg := Message(session, stage, now)

	for _, a := range session.Assignments {
		delivery, err := s.notifier.Notify(ctx, a.UserID, msg)
		if err != nil {
			log.Warn().Err(err).
				Str("audit_id", session.ID.String()).
				Str("user_id", a.UserID.String()).
				Msg("reminder: notify failed")
		}
		telemetry.AuditRemindersTotal.WithLabelValues(stage.String(), string(delivery)).Inc()
	}

	log.Info().
		Str("audit_id", session.ID.String()).
		Str("org_id", session.OrganizationID.String()).
		Str("stage", stage.String()).
		Int("recipients", len(session.Assignments)).
		Msg("audit reminder sent")
}

// Message renders the reminder text for a stage.
func Message(session *domain.AuditSession, stage domain.ReminderStage, now time.Time) string {
	if stage == domain.ReminderOverdue {
		return fmt.Sprintf("Audit %q is overdue. It was due %s ago.",
			session.Name, now.Sub(*session.DueDate).Round(time.Minute))
	}

	return fmt.Sprintf("Reminder: audit %q is due in less than %s (%s).",
		session.Name, stage, session.DueDate.UTC().Format(time.RFC1123))
}
