// Package proration computes invoice line amounts for full and partial
// billing periods. It is deliberately pure: no clock, no persistence, so the
// same inputs always yield the same line, which keeps re-billing and audits
// deterministic.
package proration

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
)

type BillingPeriod string

const (
	Monthly   BillingPeriod = "MONTHLY"
	Quarterly BillingPeriod = "QUARTERLY"
	Annual    BillingPeriod = "ANNUAL"
)

var (
	ErrInvalidBillingPeriod = errors.New("invalid billing period")
	ErrInvalidQuantity      = errors.New("quantity must not be negative")
	ErrInvalidInterval      = errors.New("interval must satisfy period_start <= from <= to <= period_end")
)

func ParseBillingPeriod(value string) (BillingPeriod, error) {
	switch BillingPeriod(value) {
	case Monthly, Quarterly, Annual:
		return BillingPeriod(value), nil
	default:
		return "", ErrInvalidBillingPeriod
	}
}

func (p BillingPeriod) Months() int {
	switch p {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Annual:
		return 12
	default:
		return 0
	}
}

// PeriodEnd returns the exclusive end of the committed period starting at
// start. Month arithmetic is calendar-accurate (Jan 31 + 1 month clamps the
// way time.AddDate does).
func PeriodEnd(start time.Time, p BillingPeriod) time.Time {
	return start.AddDate(0, p.Months(), 0)
}

// Line is one priced entry on an invoice. Period bounds are half-open
// [From, To) and carried through verbatim for audit and idempotent
// recomputation. ComponentID links the line back to the subscription
// component it prices; ad hoc lines leave it zero and are never refreshed.
type Line struct {
	Name           string       `json:"name"`
	Code           string       `json:"code"`
	ComponentID    snowflake.ID `json:"component_id,omitempty"`
	Quantity       *int64       `json:"quantity,omitempty"`
	UnitPriceCents int64        `json:"unit_price_cents"`
	TotalCents     int64        `json:"total_cents"`
	PeriodFrom     time.Time    `json:"period_from"`
	PeriodTo       time.Time    `json:"period_to"`
}

type LineParams struct {
	Name        string
	ComponentID snowflake.ID
	RateCents   int64
	Quantity    int64
	PeriodStart time.Time
	Period      BillingPeriod
	From        time.Time
	To          time.Time
}

// ComputeLine prices the sub-interval [From, To) of the committed period.
// A full committed period is billed at the nominal rate with no proration,
// whatever its calendar length. A partial interval is prorated by calendar
// day count, rounding half-up to the nearest cent. A zero quantity
// suppresses the line (returns nil); a zero-length interval still emits a
// zero-amount line so the period audit trail stays complete.
func ComputeLine(p LineParams) (*Line, error) {
	if p.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if p.Period.Months() == 0 {
		return nil, ErrInvalidBillingPeriod
	}

	periodEnd := PeriodEnd(p.PeriodStart, p.Period)
	if p.From.Before(p.PeriodStart) || p.To.Before(p.From) || p.To.After(periodEnd) {
		return nil, ErrInvalidInterval
	}

	if p.Quantity == 0 {
		return nil, nil
	}

	var unit int64
	switch {
	case p.From.Equal(p.PeriodStart) && p.To.Equal(periodEnd):
		unit = p.RateCents
	default:
		unit = prorate(p.RateCents, daysBetween(p.From, p.To), daysBetween(p.PeriodStart, periodEnd))
	}

	qty := p.Quantity
	return &Line{
		Name:           p.Name,
		Code:           slug.Make(p.Name),
		ComponentID:    p.ComponentID,
		Quantity:       &qty,
		UnitPriceCents: unit,
		TotalCents:     unit * qty,
		PeriodFrom:     p.From,
		PeriodTo:       p.To,
	}, nil
}

// prorate scales rate by days/periodDays, rounded half-up. Integer arithmetic
// avoids float drift: round(n/d) = (2n + d) / 2d for n, d >= 0.
func prorate(rate int64, days, periodDays int) int64 {
	if days <= 0 || periodDays <= 0 {
		return 0
	}
	n := rate * int64(days)
	d := int64(periodDays)
	return (2*n + d) / (2 * d)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
