package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"dmastore/internal/analysis"
	"dmastore/internal/engine"
	"dmastore/internal/ui"
)

const dateLayout = "2006-01-02"

// scopeFlags are the store slice flags shared by series and outliers
type scopeFlags struct {
	ds     string
	mover  bool
	start  string
	end    string
	asJSON bool
}

func (s *scopeFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("store", "", "store root (defaults to build.output_path)")
	bindFlag(f, "store", "analysis.store_path")
	f.StringVar(&s.ds, "ds", "", "data source partition")
	f.BoolVar(&s.mover, "mover", false, "read the mover partition")
	f.StringVar(&s.start, "start", "", "first date (YYYY-MM-DD)")
	f.StringVar(&s.end, "end", "", "last date (YYYY-MM-DD)")
	f.BoolVar(&s.asJSON, "json", false, "print rows as JSON")
	_ = cmd.MarkFlagRequired("ds")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
}

func (s *scopeFlags) scope(a *app) analysis.Scope {
	return analysis.Scope{
		Store: a.cfg.Analysis.StorePath,
		DS:    s.ds,
		Mover: s.mover,
		Start: s.start,
		End:   s.end,
	}
}

// withEngine opens an engine for the duration of fn
func withEngine(ctx context.Context, a *app, fn func(eng *engine.Service) error) error {
	connect, err := newConnector(a.cfg.Engine, a.logger)
	if err != nil {
		return err
	}
	eng, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			a.logger.Warnf("failed to close engine: %v", cerr)
		}
	}()
	return fn(eng)
}

func printJSON(a *app, v interface{}) error {
	enc := json.NewEncoder(a.printer.Writer())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSeriesCmd(a *app) *cobra.Command {
	var (
		flags    scopeFlags
		carriers []string
	)

	cmd := &cobra.Command{
		Use:   "series",
		Short: "National daily win share per carrier",
		Long: `Read the store for one ds and mover slice and print each winner's daily
wins and its share of all wins that day. Shares are computed before the
--carriers filter, so they stay comparable across carrier sets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := analysis.SeriesQuery{Scope: flags.scope(a), Carriers: carriers}
			return withEngine(cmd.Context(), a, func(eng *engine.Service) error {
				rows, err := analysis.NationalSeries(cmd.Context(), eng, q, a.cfg.Schema.Facts)
				if err != nil {
					return err
				}
				if flags.asJSON {
					return printJSON(a, rows)
				}
				showSeries(a.printer, rows)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringSliceVar(&carriers, "carriers", nil, "winners to include (default all)")
	return cmd
}

func showSeries(p *ui.Printer, rows []analysis.SeriesRow) {
	if len(rows) == 0 {
		p.Warning("No rows in the selected range")
		return
	}
	t := ui.NewTable("the_date", "winner", "wins", "total_wins", "win_share").AlignRight(2, 3, 4)
	for _, r := range rows {
		t.Append(
			r.Date.Format(dateLayout),
			r.Winner,
			fmt.Sprintf("%.2f", r.Wins),
			fmt.Sprintf("%.2f", r.TotalWins),
			fmt.Sprintf("%.4f", r.WinShare),
		)
	}
	t.Render(p.Writer())
}

func newOutliersCmd(a *app) *cobra.Command {
	var flags scopeFlags

	cmd := &cobra.Command{
		Use:   "outliers",
		Short: "Daily wins that deviate from their trailing window",
		Long: `Compare each winner's daily wins with the mean and standard deviation of
the preceding --window days and print the days whose |z| reaches --z.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := analysis.OutlierQuery{
				Scope:      flags.scope(a),
				Window:     a.cfg.Analysis.Window,
				ZThreshold: a.cfg.Analysis.ZThreshold,
			}
			return withEngine(cmd.Context(), a, func(eng *engine.Service) error {
				rows, err := analysis.ScanOutliers(cmd.Context(), eng, q, a.cfg.Schema.Facts)
				if err != nil {
					return err
				}
				if flags.asJSON {
					return printJSON(a, rows)
				}
				showOutliers(a.printer, rows)
				return nil
			})
		},
	}

	flags.register(cmd)
	f := cmd.Flags()
	f.Int("window", 28, "trailing window in days")
	bindFlag(f, "window", "analysis.window")
	f.Float64("z", 3.0, "minimum absolute z-score")
	bindFlag(f, "z", "analysis.z_threshold")
	return cmd
}

func showOutliers(p *ui.Printer, rows []analysis.OutlierRow) {
	if len(rows) == 0 {
		p.Info("No outliers in the selected range")
		return
	}
	t := ui.NewTable("the_date", "winner", "wins", "mean", "stddev", "z_score").AlignRight(2, 3, 4, 5)
	for _, r := range rows {
		t.Append(
			r.Date.Format(dateLayout),
			r.Winner,
			fmt.Sprintf("%.2f", r.Wins),
			fmt.Sprintf("%.2f", r.Mean),
			fmt.Sprintf("%.2f", r.StdDev),
			fmt.Sprintf("%+.2f", r.ZScore),
		)
	}
	t.Render(p.Writer())
}
