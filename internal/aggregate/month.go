package aggregate

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

func KeyOf(t time.Time) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// ParseMonth extracts the month key from an ISO date or month string.
func ParseMonth(s string) (MonthKey, bool) {
	if len(s) < 7 {
		return "", false
	}
	t, err := time.Parse("2006-01", s[:7])
	if err != nil {
		return "", false
	}
	return KeyOf(t), true
}

func (k MonthKey) Time() time.Time {
	t, err := time.Parse("2006-01", string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (k MonthKey) Year() int          { return k.Time().Year() }
func (k MonthKey) Month() time.Month  { return k.Time().Month() }
func (k MonthKey) Add(n int) MonthKey { return KeyOf(k.Time().AddDate(0, n, 0)) }

var supportedLocales = []language.Tag{
	language.English,
	language.Italian,
	language.Portuguese,
	language.Spanish,
	language.French,
	language.German,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// shortMonths is indexed like supportedLocales.
var shortMonths = [][12]string{
	{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	{"gen", "feb", "mar", "apr", "mag", "giu", "lug", "ago", "set", "ott", "nov", "dic"},
	{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"},
	{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."},
	{"Jan.", "Feb.", "März", "Apr.", "Mai", "Juni", "Juli", "Aug.", "Sept.", "Okt.", "Nov.", "Dez."},
}

// Label returns the localized short month name. Unknown locales fall back to English.
func (k MonthKey) Label(locale string) string {
	t := k.Time()
	if t.IsZero() {
		return string(k)
	}
	idx := 0
	if tag, err := language.Parse(locale); err == nil {
		_, idx, _ = localeMatcher.Match(tag)
	}
	return shortMonths[idx][t.Month()-1]
}
