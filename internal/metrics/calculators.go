package metrics

import (
	"math"

	"finboard/internal/aggregate"
	"finboard/internal/core"
)

// Health bands by score.
const (
	BandExcellent = "excellent"
	BandGood      = "good"
	BandFair      = "fair"
	BandPoor      = "poor"

	ThresholdExcellent = 80
	ThresholdGood      = 60
	ThresholdFair      = 40
)

// Reference points of the default health score.
const (
	targetSavingsPercent = 20.0
	targetEmergencyMonth = 6.0
)

type HealthScore struct {
	Score           int     `json:"score"`
	Band            string  `json:"band"`
	SavingsPercent  float64 `json:"savings_percent"`
	EmergencyMonths float64 `json:"emergency_months"`
	WithinIncome    bool    `json:"within_income"`
}

type SavingsRate struct {
	SavingsRate  float64 `json:"savings_rate"`
	Goal         float64 `json:"goal"`
	AmountToGoal float64 `json:"amount_to_goal"`
}

type DailyBudget struct {
	DailyBudget   float64 `json:"daily_budget"`
	DaysRemaining int     `json:"days_remaining"`
}

// Calculators are the metric formulas. Each is a pure function and can be swapped.
type Calculators struct {
	HealthScore func(current aggregate.Bucket, assets []core.Asset, avgMonthlyExpense float64) HealthScore
	SavingsRate func(current aggregate.Bucket, goalPercent float64) SavingsRate
	DailyBudget func(current aggregate.Bucket, daysRemaining int, goalPercent float64) DailyBudget
}

func DefaultCalculators() Calculators {
	return Calculators{
		HealthScore: DefaultHealthScore,
		SavingsRate: DefaultSavingsRate,
		DailyBudget: DefaultDailyBudget,
	}
}

// Band maps a score onto its qualitative band.
func Band(score int) string {
	switch {
	case score >= ThresholdExcellent:
		return BandExcellent
	case score >= ThresholdGood:
		return BandGood
	case score >= ThresholdFair:
		return BandFair
	default:
		return BandPoor
	}
}

// DefaultHealthScore weighs savings (40 points), emergency reserve (40) and spending within income (20).
func DefaultHealthScore(current aggregate.Bucket, assets []core.Asset, avgMonthlyExpense float64) HealthScore {
	h := HealthScore{WithinIncome: current.Expense <= current.Income}

	if current.Income > 0 {
		h.SavingsPercent = (current.Income - current.Expense) / current.Income * 100
	}
	total := aggregate.TotalAssets(assets)
	switch {
	case avgMonthlyExpense > 0:
		h.EmergencyMonths = total / avgMonthlyExpense
	case total > 0:
		h.EmergencyMonths = targetEmergencyMonth
	}

	score := clamp01(h.SavingsPercent/targetSavingsPercent)*40 +
		clamp01(h.EmergencyMonths/targetEmergencyMonth)*40
	if h.WithinIncome && current.Income > 0 {
		score += 20
	}
	h.Score = int(math.Round(score))
	h.Band = Band(h.Score)
	return h
}

// DefaultSavingsRate treats whatever income is not spent as saved. Investments count as saved.
func DefaultSavingsRate(current aggregate.Bucket, goalPercent float64) SavingsRate {
	s := SavingsRate{Goal: goalPercent}
	if current.Income <= 0 {
		return s
	}
	saved := current.Income - current.Expense
	s.SavingsRate = round2(saved / current.Income * 100)
	s.AmountToGoal = round2(math.Max(0, current.Income*goalPercent/100-saved))
	return s
}

// DefaultDailyBudget spreads what is left after expenses and the savings goal over the remaining days.
func DefaultDailyBudget(current aggregate.Bucket, daysRemaining int, goalPercent float64) DailyBudget {
	d := DailyBudget{DaysRemaining: daysRemaining}
	if daysRemaining <= 0 {
		return d
	}
	available := current.Income - current.Expense - current.Income*goalPercent/100
	d.DailyBudget = round2(math.Max(0, available) / float64(daysRemaining))
	return d
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
