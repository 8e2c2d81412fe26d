package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"finboard/internal/aggregate"
	"finboard/internal/auth"
	"finboard/internal/backend"
	"finboard/internal/config"
	"finboard/internal/dashboard"
	"finboard/internal/log"
	"finboard/internal/metrics"
	"finboard/internal/store"
)

// StoreOpener returns the record store for a report run and a function that releases it.
type StoreOpener func(ctx context.Context) (store.RecordStore, func() error, error)

// OpenConfiguredStore opens the backend described by the environment.
// Change events are never published from a report run.
func OpenConfiguredStore(logger *log.Logger) StoreOpener {
	return func(ctx context.Context) (store.RecordStore, func() error, error) {
		cfg, err := config.Load()
		if err != nil {
			return store.RecordStore{}, nil, fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return store.RecordStore{}, nil, fmt.Errorf("validate config: %w", err)
		}
		cfg.AMQPURL = ""

		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return store.RecordStore{}, nil, fmt.Errorf("backend config: %w", err)
		}
		be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
		if err != nil {
			return store.RecordStore{}, nil, fmt.Errorf("open backend: %w", err)
		}
		return be.Store, be.Close, nil
	}
}

type reportOptions struct {
	user    string
	period  string
	asJSON  bool
	timeout time.Duration
}

// NewReportCmd builds the command that prints one user's dashboard.
func NewReportCmd(open StoreOpener, now func() time.Time) *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "finboard-report",
		Short: "Print the dashboard of a user",
		Long: `Loads transactions, categories, assets and settings for one user
and prints the same totals, chart series and metrics the dashboard endpoint serves.`,
		Example: `  finboard-report --user alice
  finboard-report --user alice --period quarterly
  finboard-report --user alice --period yearly --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, open, now, opts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "user whose records are reported (required)")
	cmd.Flags().StringVar(&opts.period, "period", string(aggregate.Monthly), "chart window: monthly, quarterly, semester or yearly")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the view as JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "maximum time spent loading records")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runReport(cmd *cobra.Command, open StoreOpener, now func() time.Time, opts reportOptions) error {
	user := strings.TrimSpace(opts.user)
	if user == "" {
		return fmt.Errorf("--user must not be empty")
	}
	period, err := aggregate.ParseWindowKind(opts.period)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	rs, closeStore, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	data, err := dashboard.Fetch(rs)(auth.WithUser(ctx, auth.User{ID: user}))
	if err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}
	view := dashboard.NewBuilder(metrics.DefaultCalculators(), now).Build(dashboard.Normalize(data), period)

	if opts.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	return renderReport(cmd.OutOrStdout(), user, view, data.Settings.Locale)
}

func money(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

func renderReport(w io.Writer, user string, v dashboard.View, locale string) error {
	m := v.Metrics
	var b strings.Builder

	fmt.Fprintf(&b, "Dashboard for %s, %s (%s)\n\n", user, v.Month.Label(locale), v.Period)

	fmt.Fprintf(&b, "%-12s %14s %14s\n", "", "this month", "last month")
	fmt.Fprintf(&b, "%-12s %14s %14s\n", "Income", money(m.Current.Income), money(m.Previous.Income))
	fmt.Fprintf(&b, "%-12s %14s %14s\n", "Expense", money(m.Current.Expense), money(m.Previous.Expense))
	fmt.Fprintf(&b, "%-12s %14s %14s\n", "Investment", money(m.Current.Investment), money(m.Previous.Investment))
	fmt.Fprintf(&b, "%-12s %14s\n\n", "Balance", money(m.Balance))

	fmt.Fprintf(&b, "Transactions: %s (%s income, %s expense, %s investment)\n",
		humanize.Comma(int64(v.Counts.Total)),
		humanize.Comma(int64(v.Counts.Income)),
		humanize.Comma(int64(v.Counts.Expense)),
		humanize.Comma(int64(v.Counts.Investment)))
	fmt.Fprintf(&b, "Total assets: %s\n", money(m.TotalAssets))
	fmt.Fprintf(&b, "Income change: %s%%\n", humanize.FormatFloat("#.#", m.IncomeChange))
	fmt.Fprintf(&b, "Health: %d (%s)\n", m.Health.Score, m.Health.Band)
	fmt.Fprintf(&b, "Savings rate: %s%% of %s%% goal, %s to go\n",
		humanize.FormatFloat("#.#", m.Savings.SavingsRate),
		humanize.FormatFloat("#.#", m.Savings.Goal),
		money(m.Savings.AmountToGoal))
	fmt.Fprintf(&b, "Daily budget: %s for %d days\n", money(m.Daily.DailyBudget), m.Daily.DaysRemaining)

	if len(v.Breakdown.Expense) > 0 {
		b.WriteString("\nExpenses by category\n")
		for _, e := range v.Breakdown.Expense {
			fmt.Fprintf(&b, "  %-20s %14s\n", e.Name, money(e.Value))
		}
	}

	b.WriteString("\nSeries\n")
	for _, p := range v.Series {
		fmt.Fprintf(&b, "  %-10s %14s %14s %14s\n", p.Month, money(p.Income), money(p.Expense), money(p.Investment))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// ExecuteReport runs the report command against the configured backend and exits on failure.
func ExecuteReport() {
	LoadEnvFile()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(envOr("LOG_LEVEL", "warn")),
		Component: log.ComponentApp,
		Output:    os.Stderr,
	})
	if err := NewReportCmd(OpenConfiguredStore(logger), nil).Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
