package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dmastore/internal/history"
	"dmastore/internal/storage"
	"dmastore/internal/suppression"
	"dmastore/internal/ui"
	"dmastore/pkg/errors"
)

func newSuppressCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "suppress",
		Short: "Compute census block suppression impact for one date",
		Long: `Count the unique census blocks flagged for suppression per DMA and state,
compare them with every block present in the four directional cubes, and
report the retention rate of each market.

A date without candidates produces an empty report and a warning; pass
--require-candidates to treat it as a failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuppress(cmd.Context(), a, date)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&date, "date", "d", "", "target date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("date")
	f.String("candidates", "", "suppression candidates (csv or parquet)")
	bindFlag(f, "candidates", "suppression.candidates_path")
	f.String("win-mover", "", "win mover cube")
	bindFlag(f, "win-mover", "cubes.win_mover")
	f.String("loss-mover", "", "loss mover cube")
	bindFlag(f, "loss-mover", "cubes.loss_mover")
	f.String("win-non-mover", "", "win non-mover cube")
	bindFlag(f, "win-non-mover", "cubes.win_non_mover")
	f.String("loss-non-mover", "", "loss non-mover cube")
	bindFlag(f, "loss-non-mover", "cubes.loss_non_mover")
	f.String("out", "", "report destination (.csv, .xlsx or .json; local or s3://)")
	bindFlag(f, "out", "suppression.output_path")
	f.Int("top", 10, "rows in each ranking")
	bindFlag(f, "top", "suppression.top_n")
	f.Bool("require-candidates", false, "fail when the date has no candidates")
	bindFlag(f, "require-candidates", "suppression.require_candidates")

	return cmd
}

func runSuppress(ctx context.Context, a *app, date string) error {
	cfg := a.cfg
	p := a.printer

	// fail on a bad destination before running the analysis
	var format suppression.ReportFormat
	if out := cfg.Suppression.OutputPath; out != "" {
		var err error
		if format, err = suppression.FormatFromPath(out); err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "Unsupported report destination").
				WithContext("out", out)
		}
	}

	connect, err := newConnector(cfg.Engine, a.logger)
	if err != nil {
		return err
	}

	p.Header("dmastore suppress " + date)

	run := a.startRun(ctx, history.KindSuppress, map[string]string{
		"date":       date,
		"candidates": cfg.Suppression.CandidatesPath,
		"out":        cfg.Suppression.OutputPath,
		"top":        strconv.Itoa(cfg.Suppression.TopN),
	})

	spinner := a.spin("Loading candidates and cubes...")
	result, err := suppression.NewAnalyzer(connect, a.logger).Run(ctx, suppression.RunOptions{
		RunID:       run.id,
		Date:        date,
		Suppression: cfg.Suppression,
		Cubes:       cfg.Cubes,
		Units:       cfg.Schema.Units,
	})
	if err != nil {
		spinner.Stop(false, "Suppression failed")
		run.finish(ctx, history.Outcome{Err: err})
		return err
	}
	spinner.Stop(true, "Suppression calculated")

	report := result.Report
	if report.Empty {
		p.Warning("No suppression candidates for " + date + "; the report is empty")
	} else {
		showSuppression(p, report, cfg.Suppression.TopN)
	}

	if out := cfg.Suppression.OutputPath; out != "" {
		if err := writeReport(ctx, a, report, format, out); err != nil {
			run.finish(ctx, history.Outcome{Rows: int64(len(report.Groups)), Err: err})
			return err
		}
		p.Success("Report written to " + out)
	}

	run.finish(ctx, history.Outcome{Rows: int64(len(report.Groups))})
	return nil
}

func writeReport(ctx context.Context, a *app, report *suppression.Report, format suppression.ReportFormat, out string) error {
	data, err := suppression.NewReporter(report, a.cfg.Suppression.TopN).Generate(format)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode report")
	}

	sink, err := storage.ForDestination(ctx, out, a.cfg.Storage)
	if err != nil {
		return err
	}
	return sink.Put(ctx, out, data)
}

func showSuppression(p *ui.Printer, report *suppression.Report, topN int) {
	s := report.Summary
	p.Section("Summary")
	p.KeyValue("DMAs affected", s.DMAsAffected)
	p.KeyValue("Total blocks", ui.FormatCount(int64(s.TotalBlocks)))
	p.KeyValue("Blocks to suppress", ui.FormatCount(int64(s.UniqueBlocksToSuppress)))
	p.KeyValue("Suppression records", ui.FormatCount(int64(s.TotalSuppressionRecords)))
	p.KeyValue("Overall retention", ui.FormatPct(s.OverallRetentionPct))
	p.KeyValue("Mean retention", ui.FormatPct(s.MeanRetentionPct))
	p.KeyValue("Median retention", ui.FormatPct(s.MedianRetentionPct))

	if p.Quiet() {
		return
	}

	p.Section(fmt.Sprintf("Top %d by retention", topN))
	groupTable(report.TopByRetention(topN)).Render(p.Writer())

	p.Section(fmt.Sprintf("Top %d by blocks to suppress", topN))
	groupTable(report.TopBySuppression(topN)).Render(p.Writer())

	if bad := report.Inconsistent(); len(bad) > 0 {
		p.Warning(fmt.Sprintf("%d groups suppress blocks missing from every cube; their retention is understated", len(bad)))
	}
}

func groupTable(groups []suppression.GroupStat) *ui.Table {
	t := ui.NewTable(suppression.OutputColumns...).AlignRight(2, 3, 4, 5)
	for _, g := range groups {
		t.Append(
			g.DMA,
			g.State,
			strconv.Itoa(g.TotalBlocks),
			strconv.Itoa(g.UniqueBlocksToSuppress),
			strconv.Itoa(g.TotalSuppressionRecords),
			fmt.Sprintf("%.2f", g.RetentionRatePct),
		)
	}
	return t
}
