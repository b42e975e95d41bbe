package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"crosspost/internal/domain"
)

// recurrenceHorizon caps the day-by-day weekly scan so a malformed pattern
// cannot loop forever.
const recurrenceHorizon = 366 * 20

// NextRun returns the time of occurrence n (0-based; occurrence 0 is the
// schedule's own ScheduledTime). It is a pure function of the inputs, so a
// schedule's next run is always deterministic. The second return is false
// once n exceeds MaxOccurrences.
func NextRun(start time.Time, p domain.RecurringPattern, n int) (time.Time, bool) {
	if n < 0 {
		return time.Time{}, false
	}
	if p.MaxOccurrences > 0 && n >= p.MaxOccurrences {
		return time.Time{}, false
	}
	if n == 0 {
		return start, true
	}

	interval := p.Interval
	if interval <= 0 {
		interval = 1
	}

	switch p.Type {
	case domain.RecurrenceDaily:
		return start.AddDate(0, 0, interval*n), true
	case domain.RecurrenceMonthly:
		return start.AddDate(0, interval*n, 0), true
	case domain.RecurrenceWeekly:
		if len(p.DaysOfWeek) == 0 {
			return start.AddDate(0, 0, 7*interval*n), true
		}
		return nthWeeklyRun(start, p.DaysOfWeek, interval, n)
	case domain.RecurrenceCron:
		sched, err := cron.ParseStandard(p.CronExpr)
		if err != nil {
			return time.Time{}, false
		}
		t := start
		for i := 0; i < n; i++ {
			t = sched.Next(t)
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// nthWeeklyRun walks forward day by day counting runs that fall on an
// allowed weekday within an eligible week. Occurrence 0 is the first
// eligible day at or after start.
func nthWeeklyRun(start time.Time, days []time.Weekday, interval, n int) (time.Time, bool) {
	allowed := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		allowed[d] = true
	}

	weekAnchor := startOfWeek(start)
	count := 0
	for offset := 0; offset < recurrenceHorizon; offset++ {
		t := start.AddDate(0, 0, offset)
		if !allowed[t.Weekday()] {
			continue
		}
		weeks := int(startOfWeek(t).Sub(weekAnchor).Hours()) / (24 * 7)
		if weeks%interval != 0 {
			continue
		}
		if count == n {
			return t, true
		}
		count++
	}
	return time.Time{}, false
}

// startOfWeek truncates t to the Monday of its week at midnight.
func startOfWeek(t time.Time) time.Time {
	day := t
	for day.Weekday() != time.Monday {
		day = day.AddDate(0, 0, -1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}

// validateRecurrence rejects inconsistent patterns at schedule creation.
func validateRecurrence(p *domain.RecurringPattern) error {
	if p == nil {
		return nil
	}

	switch p.Type {
	case domain.RecurrenceDaily, domain.RecurrenceMonthly:
		if p.Interval <= 0 {
			return fmt.Errorf("recurrence interval must be positive")
		}
		if len(p.DaysOfWeek) > 0 {
			return fmt.Errorf("days of week are only meaningful for weekly recurrence")
		}
	case domain.RecurrenceWeekly:
		if p.Interval <= 0 {
			return fmt.Errorf("recurrence interval must be positive")
		}
		for _, d := range p.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("invalid weekday %d", d)
			}
		}
	case domain.RecurrenceCron:
		if _, err := cron.ParseStandard(p.CronExpr); err != nil {
			return fmt.Errorf("parse cron expression: %w", err)
		}
	default:
		return fmt.Errorf("unknown recurrence type %q", p.Type)
	}

	if p.MaxOccurrences < 0 {
		return fmt.Errorf("max occurrences cannot be negative")
	}
	return nil
}
