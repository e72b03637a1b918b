package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/metron/internal/proration"
	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive              SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPendingCancellation SubscriptionStatus = "PENDING_CANCELLATION"
	SubscriptionStatusCanceled            SubscriptionStatus = "CANCELED"
)

type ComponentFeeType string

const (
	// FeeTypeRate bills a fixed quantity at the component rate.
	FeeTypeRate ComponentFeeType = "RATE"
	// FeeTypeSlot bills the seat count tracked by the slot ledger.
	FeeTypeSlot ComponentFeeType = "SLOT"
)

// Subscription is one recurring billing agreement. CurrentPeriodStart and
// CurrentPeriodEnd track the committed period currently being billed; they
// only move forward, by whole committed periods.
type Subscription struct {
	ID                 snowflake.ID            `gorm:"primaryKey"`
	OrgID              snowflake.ID            `gorm:"index:idx_subscriptions_org"`
	CustomerID         snowflake.ID            `gorm:"index:idx_subscriptions_customer"`
	PlanName           string                  `gorm:"size:255"`
	Status             SubscriptionStatus      `gorm:"size:32"`
	Currency           string                  `gorm:"size:3"`
	BillingPeriod      proration.BillingPeriod `gorm:"size:16"`
	BillingDay         int
	NetTermsDays       int
	BillingStart       time.Time
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAt           *time.Time
	CanceledAt         *time.Time
	Metadata           datatypes.JSONMap
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Component is one priced element of a subscription. SLOT components read
// their quantity from the slot ledger; RATE components bill Quantity as
// committed.
type Component struct {
	ID             snowflake.ID     `gorm:"primaryKey"`
	OrgID          snowflake.ID     `gorm:"index:idx_subscription_components_org"`
	SubscriptionID snowflake.ID     `gorm:"index:idx_subscription_components_subscription"`
	Name           string           `gorm:"size:255"`
	FeeType        ComponentFeeType `gorm:"size:16"`
	RateCents      int64
	Quantity       int64
	CreatedAt      time.Time
}

func (Component) TableName() string {
	return "subscription_components"
}

func (c *Component) SeatBased() bool {
	return c.FeeType == FeeTypeSlot
}

// FirstPeriodEnd returns the end of the opening period: the first occurrence
// of the billing day strictly after billing start. A billing day past the
// end of a short month lands on its last day.
func (s *Subscription) FirstPeriodEnd() time.Time {
	// Months are stepped by index, not AddDate: adding a month to a
	// month-end date overflows into the month after next (Jan 31 -> Mar 3)
	// and would skip a candidate.
	year, month, _ := s.BillingStart.Date()
	loc := s.BillingStart.Location()

	if candidate := billingDayIn(year, month, s.BillingDay, loc); candidate.After(s.BillingStart) {
		return candidate
	}
	return billingDayIn(year, month+1, s.BillingDay, loc)
}

func billingDayIn(year int, month time.Month, day int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
