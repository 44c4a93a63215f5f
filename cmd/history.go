package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"dmastore/internal/ui"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent build and suppression runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.History.Enabled {
				a.printer.Info("Run history is disabled (history.enabled)")
				return nil
			}

			ledger, err := openLedger(a.cfg.History.Path)
			if err != nil {
				return err
			}
			defer ledger.Close()

			runs, err := ledger.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				a.printer.Info("No runs recorded yet")
				return nil
			}

			t := ui.NewTable("run", "kind", "status", "started", "duration", "rows", "partitions", "error").AlignRight(5, 6)
			for _, r := range runs {
				duration := "-"
				if r.FinishedAt != nil {
					duration = ui.FormatDuration(r.Duration())
				}
				t.Append(
					shortID(r.ID),
					string(r.Kind),
					ui.StatusText(string(r.Status)),
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					duration,
					strconv.FormatInt(r.Rows, 10),
					strconv.Itoa(r.Partitions),
					truncate(r.Error, 60),
				)
			}
			t.Render(a.printer.Writer())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
