package cmd

import (
	"context"

	"dmastore/internal/history"
)

// runRecord tracks one command run in the history ledger. Ledger failures
// never fail the command.
type runRecord struct {
	a      *app
	ledger *history.Ledger
	id     string
}

func (a *app) startRun(ctx context.Context, kind history.Kind, params map[string]string) *runRecord {
	rec := &runRecord{a: a}
	if !a.cfg.History.Enabled {
		return rec
	}

	ledger, err := openLedger(a.cfg.History.Path)
	if err != nil {
		a.logger.WarnWithFields("history ledger unavailable", map[string]interface{}{
			"path":  a.cfg.History.Path,
			"error": err.Error(),
		})
		return rec
	}

	id, err := ledger.Start(ctx, kind, params)
	if err != nil {
		a.logger.Warnf("failed to record run start: %v", err)
		ledger.Close()
		return rec
	}

	rec.ledger, rec.id = ledger, id
	return rec
}

func (r *runRecord) finish(ctx context.Context, out history.Outcome) {
	if r.ledger == nil {
		return
	}
	defer r.ledger.Close()

	// record the outcome even when the command context was cancelled
	if err := r.ledger.Finish(context.WithoutCancel(ctx), r.id, out); err != nil {
		r.a.logger.Warnf("failed to record run outcome: %v", err)
	}
}
