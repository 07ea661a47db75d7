// Package collector ingests labeled mail threads into the raw table.
package collector

import (
	"context"
	"fmt"
	"log"

	"github.com/recap-reports/recap/internal/mail"
	"github.com/recap-reports/recap/internal/store"
)

// Collect appends one raw note per unprocessed thread and relabels each
// thread afterwards. The label swap is the sole guard against duplicate
// ingestion, so ordering matters: the row is appended first, and a failed
// append leaves the thread under the source label for the next run. The
// inverse window (store write succeeds, relabel fails) means the next
// run ingests the thread again; that is warned about, not hidden.
func Collect(ctx context.Context, src mail.Source, st *store.Store) (int, error) {
	threads, err := src.Search(ctx)
	if err != nil {
		return 0, fmt.Errorf("mail search failed: %w", err)
	}

	count := 0
	for _, t := range threads {
		note := &store.RawNote{
			ReceivedAt: t.ReceivedAt,
			Subject:    t.Subject,
			Body:       t.Body,
			Status:     store.StatusNew,
		}
		if err := st.AppendRaw(note); err != nil {
			return count, fmt.Errorf("failed to store thread %q: %w", t.Subject, err)
		}
		count++

		if err := src.MarkDone(ctx, t); err != nil {
			log.Printf("Warning: thread %q stored but not relabeled; the next collect will ingest it again: %v", t.Subject, err)
		}
	}
	return count, nil
}
