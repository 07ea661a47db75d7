// Package pipeline runs the hosted-side leg end to end: collect labeled
// mail into the raw table, fold new rows into one job, hand the job to a
// browsing context. Everything after the hand-off happens outside this
// process's control and comes back, if at all, through the webhook.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/recap-reports/recap/internal/aggregator"
	"github.com/recap-reports/recap/internal/collector"
	"github.com/recap-reports/recap/internal/launcher"
	"github.com/recap-reports/recap/internal/mail"
	"github.com/recap-reports/recap/internal/store"
)

// Launcher hands a job URL to a browsing context. The two
// implementations are the system browser (manual agent) and the
// chromedp-driven agent; tests substitute their own.
type Launcher interface {
	Launch(ctx context.Context, jobURL string) error
}

// LaunchFunc adapts a function to the Launcher interface
type LaunchFunc func(ctx context.Context, jobURL string) error

func (f LaunchFunc) Launch(ctx context.Context, jobURL string) error { return f(ctx, jobURL) }

// Summary reports what a run did
type Summary struct {
	Collected  int
	Aggregated int
	Launched   bool
}

// Run executes collect -> aggregate -> launch. ErrEmptySource and
// ErrNothingNew pass through so the caller can phrase them as friendly
// messages rather than failures. By the time Launch is called the
// aggregated rows are already marked Processed; a launch failure
// therefore strands them, and the error message says so.
func Run(ctx context.Context, src mail.Source, st *store.Store, baseURL string, launch Launcher) (*Summary, error) {
	sum := &Summary{}

	collected, err := collector.Collect(ctx, src, st)
	if err != nil {
		return sum, fmt.Errorf("collection failed: %w", err)
	}
	sum.Collected = collected

	job, err := aggregator.Aggregate(st)
	if err != nil {
		return sum, err
	}
	sum.Aggregated = len(job.RowIDs)

	jobURL := launcher.URL(baseURL, job.Text)
	if err := launch.Launch(ctx, jobURL); err != nil {
		if errors.Is(err, launcher.ErrPopupBlocked) {
			return sum, fmt.Errorf("%w; the %d aggregated notes are already marked Processed, use 'recap reset-labels' and re-collect to rebuild the batch", err, sum.Aggregated)
		}
		return sum, fmt.Errorf("hand-off failed (the %d aggregated notes stay marked Processed): %w", sum.Aggregated, err)
	}
	sum.Launched = true
	return sum, nil
}
