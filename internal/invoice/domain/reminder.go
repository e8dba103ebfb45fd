package domain

import "time"

const day = 24 * time.Hour

// ReminderPolicy holds the number of full days past the due date after
// which each tier becomes due.
type ReminderPolicy struct {
	FirstAfterDays  int
	SecondAfterDays int
	FinalAfterDays  int
}

func DefaultReminderPolicy() ReminderPolicy {
	return ReminderPolicy{FirstAfterDays: 7, SecondAfterDays: 14, FinalAfterDays: 30}
}

func (p ReminderPolicy) Validate() error {
	if p.FirstAfterDays <= 0 || p.SecondAfterDays <= p.FirstAfterDays || p.FinalAfterDays <= p.SecondAfterDays {
		return ErrInvalidReminderPolicy
	}
	return nil
}

// TierAt returns the most severe tier whose threshold has elapsed after
// daysOverdue days.
func (p ReminderPolicy) TierAt(daysOverdue int) (ReminderTier, bool) {
	switch {
	case daysOverdue >= p.FinalAfterDays:
		return ReminderTierFinal, true
	case daysOverdue >= p.SecondAfterDays:
		return ReminderTierSecond, true
	case daysOverdue >= p.FirstAfterDays:
		return ReminderTierFirst, true
	default:
		return "", false
	}
}

// DaysOverdue counts full days elapsed since the due date, or 0 when not past due.
func DaysOverdue(dueDate, now time.Time) int {
	if !now.After(dueDate) {
		return 0
	}
	return int(now.Sub(dueDate) / day)
}

// DueReminderTier recommends the next tier to send. It never sends anything.
// No tier is due when the invoice is not overdue, when no threshold has been
// reached yet, or when a tier at least as severe was already sent.
func DueReminderTier(inv *Invoice, now time.Time, policy ReminderPolicy) (ReminderTier, bool) {
	if inv == nil || !inv.IsOverdue(now) {
		return "", false
	}
	tier, ok := policy.TierAt(DaysOverdue(inv.DueDate, now))
	if !ok {
		return "", false
	}
	if last, sent := inv.LastReminderTier(); sent && last.Severity() >= tier.Severity() {
		return "", false
	}
	return tier, true
}
