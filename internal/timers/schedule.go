package timers

import "time"

// NextFire returns when a periodic timer anchored at first with the given
// interval fires next, as seen at now. Before first it is first; afterwards it
// is the nearest slot first+k*interval at or after now.
func NextFire(now, first time.Time, interval time.Duration) time.Time {
	if now.Before(first) {
		return first
	}
	if interval <= 0 {
		return now
	}
	rem := now.Sub(first) % interval
	if rem == 0 {
		return now
	}
	return now.Add(interval - rem)
}

// nextAfter is NextFire restricted to slots strictly after now, used to re-arm
// a periodic handle from inside its own fire.
func nextAfter(now, first time.Time, interval time.Duration) time.Time {
	next := NextFire(now, first, interval)
	if !next.After(now) {
		next = next.Add(interval)
	}
	return next
}

// Next reports when rec fires next as seen at now. ok is false for a one-shot
// whose due time has passed.
func Next(rec Record, now time.Time) (time.Time, bool) {
	switch rec.Kind {
	case KindOneShot:
		if rec.DueAt == nil || !rec.DueAt.After(now) {
			return time.Time{}, false
		}
		return *rec.DueAt, true
	case KindPeriodic:
		if rec.FirstDueAt == nil || rec.IntervalSeconds <= 0 {
			return time.Time{}, false
		}
		return NextFire(now, *rec.FirstDueAt, rec.Interval()), true
	default:
		return time.Time{}, false
	}
}
