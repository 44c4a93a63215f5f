package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dmastore/internal/history"
	"dmastore/internal/store"
	"dmastore/internal/ui"
)

func newBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the partitioned win/loss store",
		Long: `Enrich raw win/loss facts with carrier reporting names and DMA geography
and write them as Parquet partitioned by ds, p_mover_ind, year, month, day
and the_date.

Rows without a complete partition key are excluded. With --overwrite (the
default) the output directory is replaced; otherwise new files are added
next to existing partitions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), a)
		},
	}

	f := cmd.Flags()
	f.String("facts", "", "raw facts: directory (searched recursively), file or glob")
	bindFlag(f, "facts", "build.facts_path")
	f.String("rules", "", "carrier naming rules: .csv or .parquet file, directory of parquet, or glob")
	bindFlag(f, "rules", "build.rules_path")
	f.String("geo", "", "census block to DMA crosswalk: .csv or .parquet file, directory of parquet, or glob")
	bindFlag(f, "geo", "build.geo_path")
	f.StringP("output", "o", "", "store output directory")
	bindFlag(f, "output", "build.output_path")
	f.Bool("overwrite", true, "replace the store instead of appending to it")
	bindFlag(f, "overwrite", "build.overwrite")

	return cmd
}

func runBuild(ctx context.Context, a *app) error {
	cfg := a.cfg
	p := a.printer

	connect, err := newConnector(cfg.Engine, a.logger)
	if err != nil {
		return err
	}

	p.Header("dmastore build")
	p.KeyValue("Facts", cfg.Build.FactsPath)
	p.KeyValue("Rules", cfg.Build.RulesPath)
	p.KeyValue("Geo", cfg.Build.GeoPath)
	p.KeyValue("Output", cfg.Build.OutputPath)
	p.KeyValue("Mode", buildMode(cfg.Build.Overwrite))

	run := a.startRun(ctx, history.KindBuild, map[string]string{
		"facts":     cfg.Build.FactsPath,
		"rules":     cfg.Build.RulesPath,
		"geo":       cfg.Build.GeoPath,
		"output":    cfg.Build.OutputPath,
		"overwrite": strconv.FormatBool(cfg.Build.Overwrite),
	})

	spinner := a.spin("Writing partitioned store...")
	result, err := store.NewBuilder(connect, a.logger).Build(ctx, store.BuildOptions{
		RunID:  run.id,
		Build:  cfg.Build,
		Schema: cfg.Schema,
	})
	if err != nil {
		spinner.Stop(false, "Build failed")
		run.finish(ctx, history.Outcome{Err: err})
		return err
	}
	spinner.Stop(true, "Store written")
	run.finish(ctx, history.Outcome{Rows: result.PersistedRows, Partitions: len(result.Partitions)})

	p.Section("Result")
	p.KeyValue("Run", result.RunID)
	p.KeyValue("Source rows", ui.FormatCount(result.SourceRows))
	p.KeyValue("Persisted rows", ui.FormatCount(result.PersistedRows))
	p.KeyValue("Excluded rows", ui.FormatCount(result.DroppedRows()))
	p.KeyValue("Partitions", len(result.Partitions))
	p.KeyValue("Duration", ui.FormatDuration(result.Duration))

	if !result.ParityOK() {
		p.Warning(fmt.Sprintf("Enrichment changed the row count: %s source rows, %s after joins; check dimension keys for duplicates",
			ui.FormatCount(result.SourceRows), ui.FormatCount(result.UnfilteredRows)))
	}
	if result.DroppedRows() > 0 {
		p.Warning(fmt.Sprintf("%s rows lacked a complete partition key and were excluded", ui.FormatCount(result.DroppedRows())))
	}

	p.Success(fmt.Sprintf("Store written to %s", result.Output))
	return nil
}

func buildMode(overwrite bool) string {
	if overwrite {
		return "overwrite"
	}
	return "append"
}
