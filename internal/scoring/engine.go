// Package scoring turns a business's transaction history into a credit score.
// The engine is a pure function of its input and the injected clock.
package scoring

import (
	"math"
	"time"

	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/shopspring/decimal"
)

const (
	// Version tags every score produced by the current rule set. Any change to
	// thresholds or sub-score values must mint a new tag.
	Version = "v1-basic-rules"
	// NoDataVersion tags the sentinel returned for an empty history.
	NoDataVersion = "no-data"

	frequencyWindowDays = 90
	minStabilitySamples = 5
)

var growthThreshold = decimal.New(2, -1) // 0.20

// Result is one evaluation of the rule set.
type Result struct {
	Score     int
	RiskTier  domain.RiskTier
	Version   string
	Revenue   int
	Frequency int
	Stability int
}

// Engine evaluates histories against the rule set.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an engine using now as its clock. A nil now uses time.Now.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Score evaluates history. An empty history yields the no-data sentinel.
func (e *Engine) Score(history []domain.HistoryRecord) Result {
	if len(history) == 0 {
		return Result{Score: 0, RiskTier: domain.RiskHigh, Version: NoDataVersion}
	}

	revenue := RevenueTrendScore(history)
	frequency := FrequencyScore(history, e.now())
	stability := StabilityScore(history)

	score := (revenue + frequency + stability) / 3
	return Result{
		Score:     score,
		RiskTier:  TierFor(score),
		Version:   Version,
		Revenue:   revenue,
		Frequency: frequency,
		Stability: stability,
	}
}

// RevenueTrendScore rates average month-over-month growth of credit totals.
// Pairs whose earlier month sums to zero are skipped; with no qualifying pair
// the average is taken as zero.
func RevenueTrendScore(history []domain.HistoryRecord) int {
	months := treemap.NewWithStringComparator()
	for _, r := range history {
		if r.Type != domain.Credit {
			continue
		}
		key := r.Date.Format("2006-01")
		total := decimal.Zero
		if v, found := months.Get(key); found {
			total = v.(decimal.Decimal)
		}
		months.Put(key, total.Add(r.Amount))
	}

	if months.Size() < 2 {
		return 500
	}

	totals := months.Values()
	sum := decimal.Zero
	pairs := 0
	for i := 1; i < len(totals); i++ {
		prev := totals[i-1].(decimal.Decimal)
		curr := totals[i].(decimal.Decimal)
		if !prev.IsPositive() {
			continue
		}
		sum = sum.Add(curr.Sub(prev).Div(prev))
		pairs++
	}

	avg := decimal.Zero
	if pairs > 0 {
		avg = sum.Div(decimal.NewFromInt(int64(pairs)))
	}

	switch {
	case avg.GreaterThanOrEqual(growthThreshold):
		return 850
	case !avg.IsNegative():
		return 650
	default:
		return 400
	}
}

// FrequencyScore rates how many transactions fall on or after the day
// ninety days before now.
func FrequencyScore(history []domain.HistoryRecord, now time.Time) int {
	cutoff := domain.CalendarDate(now.UTC()).AddDate(0, 0, -frequencyWindowDays)

	recent := 0
	for _, r := range history {
		if !domain.CalendarDate(r.Date).Before(cutoff) {
			recent++
		}
	}

	switch {
	case recent >= 90:
		return 850
	case recent >= 30:
		return 650
	case recent > 0:
		return 400
	default:
		return 250
	}
}

// StabilityScore rates the coefficient of variation of reported balances.
func StabilityScore(history []domain.HistoryRecord) int {
	balances := make([]float64, 0, len(history))
	for _, r := range history {
		if r.Balance != nil {
			balances = append(balances, r.Balance.InexactFloat64())
		}
	}

	if len(balances) < minStabilitySamples {
		return 500
	}

	mean := 0.0
	for _, b := range balances {
		mean += b
	}
	mean /= float64(len(balances))

	if mean == 0 {
		return 300
	}

	// CV keeps the sign of the mean; a negative mean lands in the < 0.2 band.
	cv := sampleStdDev(balances, mean) / mean
	switch {
	case cv < 0.2:
		return 900
	case cv < 0.5:
		return 700
	default:
		return 450
	}
}

func sampleStdDev(values []float64, mean float64) float64 {
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// TierFor maps a score onto its risk tier.
func TierFor(score int) domain.RiskTier {
	switch {
	case score <= 400:
		return domain.RiskHigh
	case score <= 700:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
