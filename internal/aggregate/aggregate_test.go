package aggregate

import (
	"reflect"
	"testing"

	"finboard/internal/core"
)

func exampleInput() Input {
	return Input{
		Transactions: []core.Transaction{
			{ID: "1", Date: "2024-03-05", Amount: -120, Type: core.KindExpense, CategoryID: "Food"},
			{ID: "2", Date: "2024-03-20", Amount: 2000, Type: core.KindIncome},
			{ID: "3", Date: "2024-02-01", Amount: -80, Type: core.KindExpense},
		},
		CurrentMonth: "2024-03",
	}
}

func TestComputeWorkedExample(t *testing.T) {
	res := Compute(exampleInput())

	if got := res.Bucket("2024-03"); got != (Bucket{Income: 2000, Expense: 120}) {
		t.Fatalf("march bucket %+v", got)
	}
	if got := res.Bucket("2024-02"); got != (Bucket{Expense: 80}) {
		t.Fatalf("february bucket %+v", got)
	}

	exp := res.Breakdown.Expense
	if len(exp) != 1 || exp[0].Name != "Food" || exp[0].Value != 120 {
		t.Fatalf("unexpected expense breakdown %+v", exp)
	}
	if exp[0].Color != DefaultExpenseColor || exp[0].Icon != DefaultExpenseIcon {
		t.Fatalf("missing metadata must fall back to kind defaults, got %+v", exp[0])
	}
	if inc := res.Breakdown.Income; len(inc) != 1 || inc[0].Name != UncategorizedName {
		t.Fatalf("unexpected income breakdown %+v", inc)
	}

	series := res.Window(Monthly, "en")
	if len(series) != 6 {
		t.Fatalf("expected 6 points, got %d", len(series))
	}
	last := series[5]
	if last.Month != "2024-03" || last.Income != 2000 || last.Expense != 120 || last.Investment != 0 {
		t.Fatalf("unexpected last point %+v", last)
	}
	if series[4].Month != "2024-02" || series[4].Expense != 80 {
		t.Fatalf("unexpected february point %+v", series[4])
	}
	if series[0].Month != "2023-10" || series[0].Date != "Oct" {
		t.Fatalf("unexpected first point %+v", series[0])
	}

	if res.Counts != (Counts{Income: 1, Expense: 1, Total: 2}) {
		t.Fatalf("unexpected counts %+v", res.Counts)
	}
	if res.Previous.Expense != 80 {
		t.Fatalf("previous month expense %v", res.Previous.Expense)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	in := exampleInput()
	in.Transactions = append(in.Transactions,
		core.Transaction{Date: "2024-03-02", Amount: 50, Type: core.KindInvestment, CategoryID: "etf"},
		core.Transaction{Date: "2024-03-03", Amount: -30, Type: core.KindExpense, CategoryID: "Food"},
		core.Transaction{Date: "2024-03-04", Amount: -30, Type: core.KindExpense, CategoryID: "Rent"},
	)
	in.Categories = []core.Category{{ID: "etf", Name: "ETF", Type: core.KindInvestment, Color: "#000"}}

	a := Compute(in)
	b := Compute(in)
	if !reflect.DeepEqual(a.Buckets, b.Buckets) || !reflect.DeepEqual(a.Breakdown, b.Breakdown) {
		t.Fatal("two runs over the same input differ")
	}
	if a.Breakdown.Expense[0].Name != "Food" || a.Breakdown.Expense[0].Value != 150 {
		t.Fatalf("expected Food first with 150, got %+v", a.Breakdown.Expense)
	}
	if inv := a.Breakdown.Investment; inv[0].Name != "ETF" || inv[0].Color != "#000" || inv[0].Icon != DefaultInvestmentIcon {
		t.Fatalf("unexpected investment entry %+v", inv)
	}
}

func TestComputeSkipsUndatedAndUnknownKinds(t *testing.T) {
	res := Compute(Input{
		Transactions: []core.Transaction{
			{Amount: 10, Type: core.KindExpense},
			{Date: "bad", Amount: 10, Type: core.KindExpense},
			{PaymentDate: "2024-03-09", Amount: 10, Type: core.KindExpense},
			{Date: "2024-03-09", Amount: 99, Type: core.KindTransfer},
		},
		CurrentMonth: "2024-03",
	})
	if got := res.Bucket("2024-03"); got != (Bucket{Expense: 10}) {
		t.Fatalf("unexpected bucket %+v", got)
	}
	if res.Counts.Total != 2 {
		t.Fatalf("transfers still count as current-month transactions, got %d", res.Counts.Total)
	}
}

func TestHiddenCategoriesLeaveBreakdownOnly(t *testing.T) {
	in := exampleInput()
	in.HiddenCategoryIDs = []string{"Food"}
	res := Compute(in)
	if len(res.Breakdown.Expense) != 0 {
		t.Fatalf("hidden category must not appear, got %+v", res.Breakdown.Expense)
	}
	if res.Current.Expense != 120 {
		t.Fatalf("hidden category must still count in totals, got %v", res.Current.Expense)
	}
}

func TestTotalAssets(t *testing.T) {
	assets := []core.Asset{{Value: 100}, {Value: 50.5}, {Value: 1000, Deleted: true}}
	if got := TotalAssets(assets); got != 150.5 {
		t.Fatalf("expected 150.5, got %v", got)
	}
}

func TestTrailingAverageExpense(t *testing.T) {
	cases := []struct {
		name    string
		buckets map[MonthKey]Bucket
		want    float64
	}{
		{"three months", map[MonthKey]Bucket{"2024-03": {Expense: 300}, "2024-02": {Expense: 200}, "2024-01": {Expense: 100}}, 200},
		{"skips zero months", map[MonthKey]Bucket{"2024-03": {Expense: 300}, "2024-01": {Expense: 100}}, 200},
		{"ignores older months", map[MonthKey]Bucket{"2024-03": {Expense: 90}, "2023-12": {Expense: 1000}}, 90},
		{"crosses year", map[MonthKey]Bucket{"2024-01": {Expense: 10}, "2023-12": {Expense: 20}, "2023-11": {Expense: 30}}, 20},
		{"nothing", map[MonthKey]Bucket{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			current := MonthKey("2024-03")
			if tc.name == "crosses year" {
				current = "2024-01"
			}
			if got := TrailingAverageExpense(tc.buckets, current); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
