package proration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFullPeriodNeverProrated(t *testing.T) {
	start := date(2023, time.January, 1)

	for _, period := range []BillingPeriod{Monthly, Quarterly, Annual} {
		line, err := ComputeLine(LineParams{
			Name:        "Subscription Rate",
			RateCents:   3500,
			Quantity:    1,
			PeriodStart: start,
			Period:      period,
			From:        start,
			To:          PeriodEnd(start, period),
		})
		require.NoError(t, err)
		require.NotNil(t, line)
		assert.Equal(t, int64(3500), line.UnitPriceCents, "period %s", period)
		assert.Equal(t, int64(3500), line.TotalCents, "period %s", period)
	}
}

func TestFullPeriodExactTotal(t *testing.T) {
	start := date(2023, time.February, 1)

	line, err := ComputeLine(LineParams{
		Name:        "Seats",
		RateCents:   999,
		Quantity:    17,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          PeriodEnd(start, Monthly),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(999), line.UnitPriceCents)
	assert.Equal(t, int64(999*17), line.TotalCents)
}

func TestProratedJanuaryInterval(t *testing.T) {
	// 9 days of a 31-day January at a monthly rate of 1000:
	// round(1000 * 9 / 31) = 290.
	start := date(2023, time.January, 1)

	line, err := ComputeLine(LineParams{
		Name:        "Subscription Rate",
		RateCents:   1000,
		Quantity:    1,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          date(2023, time.January, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(290), line.UnitPriceCents)
	assert.Equal(t, int64(290), line.TotalCents)
}

func TestProratedUnitMultipliedByQuantity(t *testing.T) {
	start := date(2023, time.January, 1)

	line, err := ComputeLine(LineParams{
		Name:        "Seats",
		RateCents:   1000,
		Quantity:    15,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          date(2023, time.January, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(290), line.UnitPriceCents)
	assert.Equal(t, int64(290*15), line.TotalCents)
}

func TestProrationRespectsCalendarLength(t *testing.T) {
	// February 2023 has 28 days; the same 9-day interval prices differently.
	start := date(2023, time.February, 1)

	line, err := ComputeLine(LineParams{
		Name:        "Subscription Rate",
		RateCents:   1000,
		Quantity:    1,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          date(2023, time.February, 10),
	})
	require.NoError(t, err)
	// round(1000 * 9 / 28) = 321
	assert.Equal(t, int64(321), line.UnitPriceCents)

	// Leap February.
	start = date(2024, time.February, 1)
	line, err = ComputeLine(LineParams{
		Name:        "Subscription Rate",
		RateCents:   1000,
		Quantity:    1,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          date(2024, time.February, 10),
	})
	require.NoError(t, err)
	// round(1000 * 9 / 29) = 310
	assert.Equal(t, int64(310), line.UnitPriceCents)
}

func TestRoundHalfUp(t *testing.T) {
	start := date(2023, time.April, 1) // 30 days
	line, err := ComputeLine(LineParams{
		Name:        "Subscription Rate",
		RateCents:   100,
		Quantity:    1,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          date(2023, time.April, 16),
	})
	require.NoError(t, err)
	// 100 * 15 / 30 = 50 exactly
	assert.Equal(t, int64(50), line.UnitPriceCents)

	line, err = ComputeLine(LineParams{
		Name:        "Subscription Rate",
		RateCents:   101,
		Quantity:    1,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          date(2023, time.April, 16),
	})
	require.NoError(t, err)
	// 101 * 15 / 30 = 50.5 -> 51
	assert.Equal(t, int64(51), line.UnitPriceCents)
}

func TestZeroLengthIntervalEmitsZeroAmountLine(t *testing.T) {
	start := date(2023, time.January, 1)
	at := date(2023, time.January, 15)

	line, err := ComputeLine(LineParams{
		Name:        "Seats",
		RateCents:   1000,
		Quantity:    3,
		PeriodStart: start,
		Period:      Monthly,
		From:        at,
		To:          at,
	})
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, int64(0), line.UnitPriceCents)
	assert.Equal(t, int64(0), line.TotalCents)
	assert.Equal(t, at, line.PeriodFrom)
	assert.Equal(t, at, line.PeriodTo)
}

func TestZeroQuantitySuppressesLine(t *testing.T) {
	start := date(2023, time.January, 1)

	line, err := ComputeLine(LineParams{
		Name:        "Seats",
		RateCents:   1000,
		Quantity:    0,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          PeriodEnd(start, Monthly),
	})
	require.NoError(t, err)
	assert.Nil(t, line)
}

func TestNegativeQuantityRejected(t *testing.T) {
	start := date(2023, time.January, 1)

	_, err := ComputeLine(LineParams{
		Name:        "Seats",
		RateCents:   1000,
		Quantity:    -1,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          PeriodEnd(start, Monthly),
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestIntervalOutsidePeriodRejected(t *testing.T) {
	start := date(2023, time.January, 1)

	_, err := ComputeLine(LineParams{
		Name:        "Seats",
		RateCents:   1000,
		Quantity:    1,
		PeriodStart: start,
		Period:      Monthly,
		From:        date(2022, time.December, 20),
		To:          date(2023, time.January, 10),
	})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = ComputeLine(LineParams{
		Name:        "Seats",
		RateCents:   1000,
		Quantity:    1,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          date(2023, time.March, 1),
	})
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestDeterministicRecomputation(t *testing.T) {
	params := LineParams{
		Name:        "Organization Slots",
		RateCents:   2500,
		Quantity:    3,
		PeriodStart: date(2023, time.January, 1),
		Period:      Monthly,
		From:        date(2023, time.January, 1),
		To:          date(2023, time.January, 10),
	}

	first, err := ComputeLine(params)
	require.NoError(t, err)
	second, err := ComputeLine(params)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// round(2500 * 9 / 31) = 726
	assert.Equal(t, int64(726), first.UnitPriceCents)
	assert.Equal(t, int64(726*3), first.TotalCents)
}

func TestLineCodeSlug(t *testing.T) {
	start := date(2023, time.January, 1)
	line, err := ComputeLine(LineParams{
		Name:        "Organization Slots",
		RateCents:   2500,
		Quantity:    3,
		PeriodStart: start,
		Period:      Monthly,
		From:        start,
		To:          PeriodEnd(start, Monthly),
	})
	require.NoError(t, err)
	assert.Equal(t, "organization-slots", line.Code)
}
