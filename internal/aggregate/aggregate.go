// Package aggregate folds raw transactions into month buckets, chart windows and category breakdowns.
//
// Compute is pure: it always rebuilds everything from the full input and keeps
// no state between calls.
package aggregate

import (
	"sort"

	"finboard/internal/core"
)

// Default look for categories without metadata.
const (
	UncategorizedName = "Uncategorized"

	DefaultIncomeColor     = "#22c55e"
	DefaultExpenseColor    = "#ef4444"
	DefaultInvestmentColor = "#3b82f6"

	DefaultIncomeIcon     = "trending-up"
	DefaultExpenseIcon    = "trending-down"
	DefaultInvestmentIcon = "piggy-bank"
)

// Bucket holds the per-kind totals of one month. Amounts are magnitudes.
type Bucket struct {
	Income     float64 `json:"income"`
	Expense    float64 `json:"expense"`
	Investment float64 `json:"investment"`
}

// Balance is income minus expense and investment.
func (b Bucket) Balance() float64 {
	return b.Income - b.Expense - b.Investment
}

func (b *Bucket) add(kind core.Kind, v float64) bool {
	switch kind {
	case core.KindIncome:
		b.Income += v
	case core.KindExpense:
		b.Expense += v
	case core.KindInvestment:
		b.Investment += v
	default:
		return false
	}
	return true
}

type BreakdownEntry struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
	Icon  string  `json:"icon"`
}

type Breakdown struct {
	Income     []BreakdownEntry `json:"income"`
	Expense    []BreakdownEntry `json:"expense"`
	Investment []BreakdownEntry `json:"investment"`
}

// Counts are the number of current-month transactions per kind.
type Counts struct {
	Income     int `json:"income"`
	Expense    int `json:"expense"`
	Investment int `json:"investment"`
	Total      int `json:"total"`
}

type Input struct {
	Transactions []core.Transaction
	Categories   []core.Category
	Assets       []core.Asset
	CurrentMonth MonthKey
	// HiddenCategoryIDs are left out of breakdowns. Their amounts still count in buckets.
	HiddenCategoryIDs []string
}

type Result struct {
	Buckets             map[MonthKey]Bucket `json:"buckets"`
	CurrentMonth        MonthKey            `json:"current_month"`
	Current             Bucket              `json:"current"`
	Previous            Bucket              `json:"previous"`
	CurrentTransactions []core.Transaction  `json:"-"`
	Counts              Counts              `json:"counts"`
	Breakdown           Breakdown           `json:"breakdown"`
	TotalAssets         float64             `json:"total_assets"`
	AvgMonthlyExpense   float64             `json:"avg_monthly_expense"`
}

// Bucket returns the totals of a month, zero-filled when absent.
func (r Result) Bucket(k MonthKey) Bucket {
	return r.Buckets[k]
}

func Compute(in Input) Result {
	cats := make(map[string]core.Category, len(in.Categories))
	for _, c := range in.Categories {
		cats[c.ID] = c
	}
	hidden := make(map[string]bool, len(in.HiddenCategoryIDs))
	for _, id := range in.HiddenCategoryIDs {
		hidden[id] = true
	}

	res := Result{
		Buckets:             make(map[MonthKey]Bucket),
		CurrentMonth:        in.CurrentMonth,
		CurrentTransactions: make([]core.Transaction, 0),
	}
	breakdown := map[core.Kind]map[string]*BreakdownEntry{
		core.KindIncome:     {},
		core.KindExpense:    {},
		core.KindInvestment: {},
	}

	for _, tx := range in.Transactions {
		month, ok := ParseMonth(tx.EffectiveDate())
		if !ok {
			continue
		}
		amount := tx.Amount.Abs()

		b := res.Buckets[month]
		if b.add(tx.Type, amount) {
			res.Buckets[month] = b
		}

		if month != in.CurrentMonth {
			continue
		}
		res.CurrentTransactions = append(res.CurrentTransactions, tx)
		res.Counts.Total++
		switch tx.Type {
		case core.KindIncome:
			res.Counts.Income++
		case core.KindExpense:
			res.Counts.Expense++
		case core.KindInvestment:
			res.Counts.Investment++
		}

		byName, ok := breakdown[tx.Type]
		if !ok || hidden[tx.CategoryID] {
			continue
		}
		entry := categoryEntry(tx, cats)
		if e, ok := byName[entry.Name]; ok {
			e.Value += amount
		} else {
			entry.Value = amount
			byName[entry.Name] = &entry
		}
	}

	res.Current = res.Buckets[in.CurrentMonth]
	res.Previous = res.Buckets[in.CurrentMonth.Add(-1)]
	res.Breakdown = Breakdown{
		Income:     sortedEntries(breakdown[core.KindIncome]),
		Expense:    sortedEntries(breakdown[core.KindExpense]),
		Investment: sortedEntries(breakdown[core.KindInvestment]),
	}
	res.TotalAssets = TotalAssets(in.Assets)
	res.AvgMonthlyExpense = TrailingAverageExpense(res.Buckets, in.CurrentMonth)
	return res
}

func categoryEntry(tx core.Transaction, cats map[string]core.Category) BreakdownEntry {
	color, icon := kindDefaults(tx.Type)
	entry := BreakdownEntry{Name: tx.CategoryID, Color: color, Icon: icon}
	if c, ok := cats[tx.CategoryID]; ok {
		entry.Name = c.Name
		if c.Color != "" {
			entry.Color = c.Color
		}
		if c.Icon != "" {
			entry.Icon = c.Icon
		}
	}
	if entry.Name == "" {
		entry.Name = UncategorizedName
	}
	return entry
}

func kindDefaults(k core.Kind) (color, icon string) {
	switch k {
	case core.KindIncome:
		return DefaultIncomeColor, DefaultIncomeIcon
	case core.KindInvestment:
		return DefaultInvestmentColor, DefaultInvestmentIcon
	default:
		return DefaultExpenseColor, DefaultExpenseIcon
	}
}

// sortedEntries orders by value descending, then name, so repeated runs are identical.
func sortedEntries(m map[string]*BreakdownEntry) []BreakdownEntry {
	out := make([]BreakdownEntry, 0, len(m))
	for _, e := range m {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TotalAssets sums the values of non-deleted assets.
func TotalAssets(assets []core.Asset) float64 {
	var total float64
	for _, a := range assets {
		if !a.Deleted {
			total += float64(a.Value)
		}
	}
	return total
}

// TrailingAverageExpense averages the non-zero expense totals of the current and two preceding
// months. With no qualifying month it returns the current month's expense.
func TrailingAverageExpense(buckets map[MonthKey]Bucket, current MonthKey) float64 {
	var sum float64
	n := 0
	for i := 0; i < 3; i++ {
		if v := buckets[current.Add(-i)].Expense; v != 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return buckets[current].Expense
	}
	return sum / float64(n)
}
