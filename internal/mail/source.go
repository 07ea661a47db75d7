// Package mail abstracts the labeled mail source the collector reads
// from. A "label" is anything usable as a search predicate and as mutable
// state: an IMAP folder or a Gmail label, depending on the provider.
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/recap-reports/recap/internal/config"
)

// Thread is a mail conversation reduced to what the pipeline needs: only
// the first message of a thread is ever read.
type Thread struct {
	ID         string // Provider-specific handle (IMAP UID or Gmail thread ID)
	ReceivedAt time.Time
	Subject    string
	Body       string // Plain-text body of the first message
}

// Source is the mail-side contract. Search returns every thread bearing
// the source label and lacking the done label; MarkDone atomically swaps
// the labels so a re-run no longer sees the thread. Reset is the inverse
// bulk operation, for reprocessing.
type Source interface {
	Search(ctx context.Context) ([]Thread, error)
	MarkDone(ctx context.Context, t Thread) error
	Reset(ctx context.Context) (int, error)
	Close() error
}

// Open connects to the configured provider
func Open(ctx context.Context, cfg config.MailConfig) (Source, error) {
	switch cfg.Provider {
	case "imap":
		return OpenIMAP(ctx, cfg)
	case "gmail":
		return OpenGmail(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown mail provider: %q (imap or gmail)", cfg.Provider)
}
