// Package metrics assembles the dashboard metrics from aggregation results.
//
// The adapter owns date arithmetic and the income comparison; every scoring
// formula lives in Calculators.
package metrics

import (
	"time"

	"finboard/internal/aggregate"
	"finboard/internal/core"
)

type Metrics struct {
	Month             aggregate.MonthKey `json:"month"`
	Current           aggregate.Bucket   `json:"current"`
	Previous          aggregate.Bucket   `json:"previous"`
	Balance           float64            `json:"balance"`
	TotalAssets       float64            `json:"total_assets"`
	AvgMonthlyExpense float64            `json:"avg_monthly_expense"`
	IncomeChange      float64            `json:"income_change_percent"`
	DaysRemaining     int                `json:"days_remaining"`
	Health            HealthScore        `json:"health"`
	Savings           SavingsRate        `json:"savings"`
	Daily             DailyBudget        `json:"daily"`
}

// DaysRemaining counts the days left in now's month, today included.
func DaysRemaining(now time.Time) int {
	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	return lastDay - now.Day() + 1
}

// IncomeChange is the month-over-month income change in percent. No previous income means no change.
func IncomeChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

type Adapter struct {
	calc Calculators
}

// NewAdapter uses the default calculators for any nil field of calc.
func NewAdapter(calc Calculators) *Adapter {
	def := DefaultCalculators()
	if calc.HealthScore == nil {
		calc.HealthScore = def.HealthScore
	}
	if calc.SavingsRate == nil {
		calc.SavingsRate = def.SavingsRate
	}
	if calc.DailyBudget == nil {
		calc.DailyBudget = def.DailyBudget
	}
	return &Adapter{calc: calc}
}

func (a *Adapter) Build(res aggregate.Result, assets []core.Asset, goalPercent float64, now time.Time) Metrics {
	days := DaysRemaining(now)
	return Metrics{
		Month:             res.CurrentMonth,
		Current:           res.Current,
		Previous:          res.Previous,
		Balance:           res.Current.Balance(),
		TotalAssets:       res.TotalAssets,
		AvgMonthlyExpense: res.AvgMonthlyExpense,
		IncomeChange:      IncomeChange(res.Current.Income, res.Previous.Income),
		DaysRemaining:     days,
		Health:            a.calc.HealthScore(res.Current, assets, res.AvgMonthlyExpense),
		Savings:           a.calc.SavingsRate(res.Current, goalPercent),
		Daily:             a.calc.DailyBudget(res.Current, days, goalPercent),
	}
}
