// Package dashboard loads the raw inputs of the dashboard in one fan-out and turns them into a view.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/aggregate"
	"finboard/internal/core"
	"finboard/internal/metrics"
	"finboard/internal/resource"
	"finboard/internal/store"
)

// Data is what the dashboard resource caches: the raw records, not derived numbers.
type Data struct {
	Transactions []core.Transaction `json:"transactions"`
	Categories   []core.Category    `json:"categories"`
	Assets       []core.Asset       `json:"assets"`
	Settings     core.Settings      `json:"settings"`
}

func Empty() Data {
	return Data{
		Transactions: []core.Transaction{},
		Categories:   []core.Category{},
		Assets:       []core.Asset{},
		Settings:     core.DefaultSettings(),
	}
}

// Fetch loads transactions, categories, assets and settings concurrently.
// The first failure cancels the others and is returned.
func Fetch(rs store.RecordStore) func(ctx context.Context) (Data, error) {
	return func(ctx context.Context) (Data, error) {
		var d Data
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			var err error
			d.Transactions, err = rs.Transactions.List(gctx, nil)
			if err != nil {
				return fmt.Errorf("list transactions: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			d.Categories, err = rs.Categories.List(gctx, nil)
			if err != nil {
				return fmt.Errorf("list categories: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			d.Assets, err = rs.Assets.List(gctx, nil)
			if err != nil {
				return fmt.Errorf("list assets: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			d.Settings, err = rs.Settings.GetSettings(gctx)
			if err != nil {
				return fmt.Errorf("get settings: %w", err)
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return Data{}, err
		}
		return d, nil
	}
}

// Normalize applies the per-resource fallbacks to every part.
func Normalize(d Data) Data {
	d.Transactions = resource.NormalizeTransactions(d.Transactions)
	d.Categories = resource.NormalizeCategories(d.Categories)
	d.Assets = resource.NormalizeAssets(d.Assets)
	d.Settings = resource.NormalizeSettings(d.Settings)
	return d
}

// View is the computed dashboard for one period.
type View struct {
	Period    aggregate.WindowKind    `json:"period"`
	Month     aggregate.MonthKey      `json:"month"`
	Series    []aggregate.SeriesPoint `json:"series"`
	Breakdown aggregate.Breakdown     `json:"breakdown"`
	Counts    aggregate.Counts        `json:"counts"`
	Metrics   metrics.Metrics         `json:"metrics"`
	Recent    []core.Transaction      `json:"recent"`
}

// Builder derives views from Data.
type Builder struct {
	adapter *metrics.Adapter
	now     func() time.Time
}

func NewBuilder(calc metrics.Calculators, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{adapter: metrics.NewAdapter(calc), now: now}
}

// Build aggregates d for the current month and projects the requested window.
func (b *Builder) Build(d Data, period aggregate.WindowKind) View {
	now := b.now()
	res := aggregate.Compute(aggregate.Input{
		Transactions:      d.Transactions,
		Categories:        d.Categories,
		Assets:            d.Assets,
		CurrentMonth:      aggregate.KeyOf(now),
		HiddenCategoryIDs: d.Settings.HiddenCategoryIDs,
	})

	return View{
		Period:    period,
		Month:     res.CurrentMonth,
		Series:    res.Window(period, d.Settings.Locale),
		Breakdown: res.Breakdown,
		Counts:    res.Counts,
		Metrics:   b.adapter.Build(res, d.Assets, d.Settings.SavingsGoalPercent, now),
		Recent:    res.CurrentTransactions,
	}
}
