package domain

import "time"

// ReminderStage records the latest due-date reminder sent for an audit.
// Stages only ever increase.
type ReminderStage int

const (
	ReminderNone ReminderStage = iota
	Reminder24h
	Reminder4h
	Reminder1h
	ReminderOverdue
)

func (r ReminderStage) String() string {
	switch r {
	case Reminder24h:
		return "24 hours"
	case Reminder4h:
		return "4 hours"
	case Reminder1h:
		return "1 hour"
	case ReminderOverdue:
		return "overdue"
	default:
		return "none"
	}
}

// DueReminderStage returns the stage that applies at now for an audit due at due.
func DueReminderStage(due, now time.Time) ReminderStage {
	left := due.Sub(now)
	switch {
	case left <= 0:
		return ReminderOverdue
	case left <= time.Hour:
		return Reminder1h
	case left <= 4*time.Hour:
		return Reminder4h
	case left <= 24*time.Hour:
		return Reminder24h
	default:
		return ReminderNone
	}
}
