package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a transaction or a category.
type Kind string

const (
	KindIncome     Kind = "income"
	KindExpense    Kind = "expense"
	KindInvestment Kind = "investment"
	KindTransfer   Kind = "transfer"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// BrandColor is used when a colored record has no color of its own.
const BrandColor = "#6366f1"

type (
	Transaction struct {
		ID          string `json:"id"`
		Date        string `json:"date,omitempty"`
		PaymentDate string `json:"payment_date,omitempty"`
		Amount      Amount `json:"amount"`
		Type        Kind   `json:"type"`
		CategoryID  string `json:"category_id,omitempty"`
		BankID      string `json:"bank_id,omitempty"`
		CardID      string `json:"card_id,omitempty"`
		Description string `json:"description,omitempty"`
		CreatedAt   string `json:"created_at,omitempty"`
	}

	Asset struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Type      string `json:"type,omitempty"`
		Value     Amount `json:"value"`
		Color     string `json:"color,omitempty"`
		Deleted   bool   `json:"deleted,omitempty"`
		UpdatedAt string `json:"updated_at,omitempty"`
	}

	Bank struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color,omitempty"`
	}

	Card struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		BankID     string `json:"bank_id,omitempty"`
		Limit      Amount `json:"limit,omitempty"`
		ClosingDay int    `json:"closing_day,omitempty"`
		DueDay     int    `json:"due_day,omitempty"`
		Color      string `json:"color,omitempty"`
	}

	Category struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Type  Kind   `json:"type"`
		Color string `json:"color,omitempty"`
		Icon  string `json:"icon,omitempty"`
	}

	Budget struct {
		ID         string `json:"id"`
		CategoryID string `json:"category_id"`
		Month      string `json:"month"`
		Limit      Amount `json:"limit"`
		Spent      Amount `json:"spent,omitempty"`
	}

	// Settings is a per-user singleton record.
	Settings struct {
		Currency           string   `json:"currency"`
		Locale             string   `json:"locale"`
		SavingsGoalPercent float64  `json:"savings_goal_percent"`
		HiddenCategoryIDs  []string `json:"hidden_category_ids"`
	}

	Currency struct {
		Code   string `json:"code"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidKind     = errors.New("invalid type")
	ErrEmptyName       = errors.New("empty name")
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonthKey = errors.New("invalid month")
	ErrInvalidPercent  = errors.New("invalid percentage")
)

func (t Transaction) RecordID() string { return t.ID }
func (a Asset) RecordID() string       { return a.ID }
func (b Bank) RecordID() string        { return b.ID }
func (c Card) RecordID() string        { return c.ID }
func (c Category) RecordID() string    { return c.ID }
func (b Budget) RecordID() string      { return b.ID }
func (c Currency) RecordID() string    { return c.Code }

func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindInvestment, KindTransfer:
		return true
	}
	return false
}

// EffectiveDate returns the date a transaction is bucketed under, falling back to the payment date.
func (t Transaction) EffectiveDate() string {
	if t.Date != "" {
		return t.Date
	}
	return t.PaymentDate
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, t.Type)
	}
	if d := t.EffectiveDate(); d != "" {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, d)
		}
	}
	if t.Amount == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (a Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (b Bank) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.ClosingDay < 0 || c.ClosingDay > 31 || c.DueDay < 0 || c.DueDay > 31 {
		return ErrInvalidDay
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, c.Type)
	}
	return nil
}

func (b Budget) Validate() error {
	if _, err := time.Parse("2006-01", b.Month); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMonthKey, b.Month)
	}
	if b.Limit < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (s Settings) Validate() error {
	if s.SavingsGoalPercent < 0 || s.SavingsGoalPercent > 100 {
		return ErrInvalidPercent
	}
	return nil
}

// IsHidden reports whether a category is excluded from the dashboard.
func (s Settings) IsHidden(categoryID string) bool {
	for _, id := range s.HiddenCategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// DefaultSettings are returned for users that never saved any.
func DefaultSettings() Settings {
	return Settings{
		Currency:           "EUR",
		Locale:             "en",
		SavingsGoalPercent: 20,
		HiddenCategoryIDs:  []string{},
	}
}
