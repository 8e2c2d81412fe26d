package store

import (
	"sort"

	"finboard/internal/core"
)

func sortStrings(s []string) { sort.Strings(s) }

// MonthOf returns the "YYYY-MM" part of an ISO date, or "" when the date is too short.
func MonthOf(date string) string {
	if len(date) < 7 {
		return ""
	}
	return date[:7]
}

var TransactionSchema = Schema[core.Transaction]{
	Name: ResourceTransactions,
	Fields: map[string]func(core.Transaction) string{
		"month":       func(t core.Transaction) string { return MonthOf(t.EffectiveDate()) },
		"type":        func(t core.Transaction) string { return string(t.Type) },
		"category_id": func(t core.Transaction) string { return t.CategoryID },
		"bank_id":     func(t core.Transaction) string { return t.BankID },
		"card_id":     func(t core.Transaction) string { return t.CardID },
	},
	WithID:   func(t core.Transaction, id string) core.Transaction { t.ID = id; return t },
	Validate: core.Transaction.Validate,
}

var AssetSchema = Schema[core.Asset]{
	Name: ResourceAssets,
	Fields: map[string]func(core.Asset) string{
		"type": func(a core.Asset) string { return a.Type },
	},
	WithID:   func(a core.Asset, id string) core.Asset { a.ID = id; return a },
	Validate: core.Asset.Validate,
}

var BankSchema = Schema[core.Bank]{
	Name:     ResourceBanks,
	Fields:   map[string]func(core.Bank) string{},
	WithID:   func(b core.Bank, id string) core.Bank { b.ID = id; return b },
	Validate: core.Bank.Validate,
}

var CardSchema = Schema[core.Card]{
	Name: ResourceCards,
	Fields: map[string]func(core.Card) string{
		"bank_id": func(c core.Card) string { return c.BankID },
	},
	WithID:   func(c core.Card, id string) core.Card { c.ID = id; return c },
	Validate: core.Card.Validate,
}

var CategorySchema = Schema[core.Category]{
	Name: ResourceCategories,
	Fields: map[string]func(core.Category) string{
		"type": func(c core.Category) string { return string(c.Type) },
	},
	WithID:   func(c core.Category, id string) core.Category { c.ID = id; return c },
	Validate: core.Category.Validate,
}

var BudgetSchema = Schema[core.Budget]{
	Name: ResourceBudgets,
	Fields: map[string]func(core.Budget) string{
		"month":       func(b core.Budget) string { return b.Month },
		"category_id": func(b core.Budget) string { return b.CategoryID },
	},
	WithID:   func(b core.Budget, id string) core.Budget { b.ID = id; return b },
	Validate: core.Budget.Validate,
}
