package quota

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"deepsight/api/internal/tier"
)

// Identity is the caller key for quota accounting: a verified user id
// when authenticated, otherwise the client IP.
type Identity struct {
	UserID   *string
	ClientIP string
}

func (id Identity) Authenticated() bool {
	return id.UserID != nil && *id.UserID != ""
}

// Admission is the answer to a quota check.
type Admission struct {
	Allowed      bool `json:"allowed"`
	CurrentCount int  `json:"currentCount"`
	MaxAllowed   int  `json:"maxAllowed"`
	Remaining    int  `json:"remaining"`
}

// CounterStore holds day-keyed anonymous usage counters. Increment must
// be an atomic increment-or-insert at the storage layer.
type CounterStore interface {
	GetDailyCount(ctx context.Context, clientIP, date string) (int, error)
	IncrementDailyCount(ctx context.Context, clientIP, date string) error
}

// ReportCounter counts persisted reports, which double as the usage
// record for authenticated callers.
type ReportCounter interface {
	CountByUserOnDate(ctx context.Context, userID, date string) (int, error)
}

type Ledger struct {
	counters CounterStore
	reports  ReportCounter
	now      func() time.Time
	log      zerolog.Logger
}

func NewLedger(counters CounterStore, reports ReportCounter, log zerolog.Logger) *Ledger {
	return &Ledger{
		counters: counters,
		reports:  reports,
		now:      time.Now,
		log:      log,
	}
}

// WithClock overrides the ledger clock; used by tests to pin the day.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) today() string {
	return l.now().UTC().Format("2006-01-02")
}

// CheckAdmission answers whether the caller may run another analysis
// today. Unlimited tiers are admitted without touching storage. On a
// storage failure the ledger fails open: availability is preferred over
// strict quota enforcement, so an indeterminate count grants access.
func (l *Ledger) CheckAdmission(ctx context.Context, id Identity, d tier.Descriptor) Admission {
	if d.Unlimited() {
		return Admission{Allowed: true, CurrentCount: 0, MaxAllowed: tier.Unlimited, Remaining: tier.Unlimited}
	}

	today := l.today()
	var (
		count int
		err   error
	)
	if id.Authenticated() {
		count, err = l.reports.CountByUserOnDate(ctx, *id.UserID, today)
	} else {
		count, err = l.counters.GetDailyCount(ctx, id.ClientIP, today)
	}
	if err != nil {
		l.log.Error().Err(err).Str("client_ip", id.ClientIP).Msg("quota lookup failed, failing open")
		return Admission{Allowed: true, CurrentCount: 0, MaxAllowed: d.MaxAnalysesPerDay, Remaining: d.MaxAnalysesPerDay}
	}

	remaining := d.MaxAnalysesPerDay - count
	if remaining < 0 {
		// A fail-open overshoot can push the count past the limit.
		remaining = 0
	}
	return Admission{
		Allowed:      count < d.MaxAnalysesPerDay,
		CurrentCount: count,
		MaxAllowed:   d.MaxAnalysesPerDay,
		Remaining:    remaining,
	}
}

// RecordConsumption bumps today's counter for anonymous callers.
// Authenticated consumption is inferred from the persisted report count
// and is not tracked separately. Failures are logged and swallowed: this
// is best-effort accounting and must never fail the response.
func (l *Ledger) RecordConsumption(ctx context.Context, id Identity) {
	if id.Authenticated() {
		return
	}
	if err := l.counters.IncrementDailyCount(ctx, id.ClientIP, l.today()); err != nil {
		l.log.Warn().Err(err).Str("client_ip", id.ClientIP).Msg("quota increment failed")
	}
}
