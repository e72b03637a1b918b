package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFirstPeriodEnd(t *testing.T) {
	tests := []struct {
		name       string
		start      time.Time
		billingDay int
		want       time.Time
	}{
		{
			name:       "start on billing day rolls a full month",
			start:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			billingDay: 1,
			want:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "mid month start ends on next billing day",
			start:      time.Date(2026, 1, 22, 10, 30, 0, 0, time.UTC),
			billingDay: 1,
			want:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "billing day later in the same month",
			start:      time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			billingDay: 15,
			want:       time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "billing day 31 clamps to the end of february",
			start:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			billingDay: 31,
			want:       time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "start past the clamped day moves to next month",
			start:      time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
			billingDay: 31,
			want:       time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "month end start does not skip february",
			start:      time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
			billingDay: 1,
			want:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "month end start before a short month",
			start:      time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
			billingDay: 1,
			want:       time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "month end start with clamped billing day",
			start:      time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC),
			billingDay: 29,
			want:       time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "december start wraps the year",
			start:      time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			billingDay: 15,
			want:       time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "leap year february",
			start:      time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC),
			billingDay: 30,
			want:       time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sub := Subscription{BillingStart: tc.start, BillingDay: tc.billingDay}
			assert.Equal(t, tc.want, sub.FirstPeriodEnd())
		})
	}
}

func TestComponentSeatBased(t *testing.T) {
	assert.True(t, (&Component{FeeType: FeeTypeSlot}).SeatBased())
	assert.False(t, (&Component{FeeType: FeeTypeRate}).SeatBased())
}
