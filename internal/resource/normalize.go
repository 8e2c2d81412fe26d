package resource

import "finboard/internal/core"

// DefaultCategoryIcon is shown for categories saved without an icon.
const DefaultCategoryIcon = "tag"

func NormalizeTransactions(in []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(in))
	for i, t := range in {
		if t.Date == "" {
			t.Date = t.PaymentDate
		}
		out[i] = t
	}
	return out
}

func NormalizeAssets(in []core.Asset) []core.Asset {
	out := make([]core.Asset, len(in))
	for i, a := range in {
		if a.Color == "" {
			a.Color = core.BrandColor
		}
		out[i] = a
	}
	return out
}

func NormalizeBanks(in []core.Bank) []core.Bank {
	out := make([]core.Bank, len(in))
	for i, b := range in {
		if b.Color == "" {
			b.Color = core.BrandColor
		}
		out[i] = b
	}
	return out
}

func NormalizeCards(in []core.Card) []core.Card {
	out := make([]core.Card, len(in))
	for i, c := range in {
		if c.Color == "" {
			c.Color = core.BrandColor
		}
		out[i] = c
	}
	return out
}

func NormalizeCategories(in []core.Category) []core.Category {
	out := make([]core.Category, len(in))
	for i, c := range in {
		if c.Color == "" {
			c.Color = core.BrandColor
		}
		if c.Icon == "" {
			c.Icon = DefaultCategoryIcon
		}
		out[i] = c
	}
	return out
}

// NormalizeSettings guarantees a non-nil hidden list and a goal within range.
func NormalizeSettings(s core.Settings) core.Settings {
	if s.HiddenCategoryIDs == nil {
		s.HiddenCategoryIDs = []string{}
	}
	if s.Currency == "" {
		s.Currency = core.DefaultSettings().Currency
	}
	if s.Locale == "" {
		s.Locale = core.DefaultSettings().Locale
	}
	return s
}
