package aggregate

import "fmt"

// WindowKind selects the months shown on the dashboard chart.
type WindowKind string

const (
	Monthly   WindowKind = "monthly"
	Quarterly WindowKind = "quarterly"
	Semester  WindowKind = "semester"
	Yearly    WindowKind = "yearly"
)

// ParseWindowKind accepts the four window names; "" means Monthly.
func ParseWindowKind(s string) (WindowKind, error) {
	switch WindowKind(s) {
	case "":
		return Monthly, nil
	case Monthly, Quarterly, Semester, Yearly:
		return WindowKind(s), nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Len is the fixed number of points of the window.
func (k WindowKind) Len() int {
	switch k {
	case Quarterly:
		return 3
	case Yearly:
		return 12
	default:
		return 6
	}
}

// SeriesPoint is one month of a chart window.
type SeriesPoint struct {
	Date       string   `json:"date"`
	Month      MonthKey `json:"month"`
	Income     float64  `json:"income"`
	Expense    float64  `json:"expense"`
	Investment float64  `json:"investment"`
}

// Months lists the months of a window, oldest first. Only calendar arithmetic is involved.
func Months(kind WindowKind, current MonthKey) []MonthKey {
	year, month := current.Year(), int(current.Month())

	var first MonthKey
	switch kind {
	case Quarterly:
		first = monthKey(year, (month-1)/3*3+1)
	case Semester:
		if month <= 6 {
			first = monthKey(year, 1)
		} else {
			first = monthKey(year, 7)
		}
	case Yearly:
		first = monthKey(year, 1)
	default:
		first = current.Add(-(Monthly.Len() - 1))
	}

	out := make([]MonthKey, kind.Len())
	for i := range out {
		out[i] = first.Add(i)
	}
	return out
}

func monthKey(year, month int) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month))
}

// Series projects buckets onto a window, zero-filling missing months.
func Series(buckets map[MonthKey]Bucket, kind WindowKind, current MonthKey, locale string) []SeriesPoint {
	months := Months(kind, current)
	out := make([]SeriesPoint, len(months))
	for i, m := range months {
		b := buckets[m]
		out[i] = SeriesPoint{
			Date:       m.Label(locale),
			Month:      m,
			Income:     b.Income,
			Expense:    b.Expense,
			Investment: b.Investment,
		}
	}
	return out
}

// Window is Series over the result's own buckets and current month.
func (r Result) Window(kind WindowKind, locale string) []SeriesPoint {
	return Series(r.Buckets, kind, r.CurrentMonth, locale)
}
