package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/subscriptions/repository"
)

// occurrencesPerYear maps a billing cycle to how many times it charges per
// year for annualized-cost approximation. Unknown cycles count as monthly.
var occurrencesPerYear = map[repository.BillingCycle]int64{
	repository.CycleDaily:     365,
	repository.CycleWeekly:    52,
	repository.CycleMonthly:   12,
	repository.CycleQuarterly: 4,
	repository.CycleYearly:    1,
	repository.CycleCustom:    12,
}

// OccurrencesPerYear returns the approximate charge count per year for a cycle.
func OccurrencesPerYear(cycle repository.BillingCycle) int64 {
	if n, ok := occurrencesPerYear[cycle]; ok {
		return n
	}
	return 12
}

// ComputeNextChargeDate returns the charge date following from for the given
// cycle and interval count. Pure and deterministic.
//
// Month-based cycles (monthly, quarterly, custom, and the fallback) use
// end-of-month clamping: when the target month is shorter than the source
// day-of-month the result clamps to the target month's last day, so
// 2024-01-31 plus one month is 2024-02-29, never March.
func ComputeNextChargeDate(from time.Time, cycle repository.BillingCycle, count int) time.Time {
	if count < 1 {
		count = 1
	}

	switch cycle {
	case repository.CycleDaily:
		return from.AddDate(0, 0, count)
	case repository.CycleWeekly:
		return from.AddDate(0, 0, 7*count)
	case repository.CycleMonthly, repository.CycleCustom:
		return addMonthsClamped(from, count)
	case repository.CycleQuarterly:
		return addMonthsClamped(from, 3*count)
	case repository.CycleYearly:
		return addMonthsClamped(from, 12*count)
	default:
		// Unrecognized cycles fall back to monthly, matching stored data that
		// predates cycle validation.
		return addMonthsClamped(from, count)
	}
}

// addMonthsClamped adds months with end-of-month clamping instead of the
// rollover normalization time.AddDate performs.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	total := year*12 + int(month) - 1 + months
	targetYear := total / 12
	targetMonth := time.Month(total%12 + 1)

	if last := daysInMonth(targetYear, targetMonth); day > last {
		day = last
	}

	return time.Date(targetYear, targetMonth, day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AnnualCostMinor approximates the yearly cost of a subscription in its own
// currency: amount x (occurrencesPerYear / intervalCount).
func AnnualCostMinor(sub *repository.Subscription) int64 {
	if sub == nil {
		return 0
	}
	count := sub.IntervalCount
	if count < 1 {
		count = 1
	}

	perYear := decimal.NewFromInt(OccurrencesPerYear(sub.BillingCycle))
	factor := perYear.Div(decimal.NewFromInt(int64(count)))

	return decimal.NewFromInt(sub.AmountMinor).Mul(factor).Round(0).IntPart()
}

// cycleDescriptions are the human-readable cycle labels used in notifications.
var cycleDescriptions = map[repository.BillingCycle]string{
	repository.CycleDaily:     "daily",
	repository.CycleWeekly:    "weekly",
	repository.CycleMonthly:   "monthly",
	repository.CycleQuarterly: "quarterly",
	repository.CycleYearly:    "yearly",
	repository.CycleCustom:    "custom interval",
}

// DescribeCycle returns a label for the billing cycle, e.g. "monthly".
func DescribeCycle(cycle repository.BillingCycle) string {
	if d, ok := cycleDescriptions[cycle]; ok {
		return d
	}
	return "monthly"
}
