// Package aggregator folds new raw notes into a single job description
// for the chat page.
package aggregator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/recap-reports/recap/internal/store"
)

// InstructionHeader is the fixed preamble every job starts with. The
// browser-side agent keys on HeaderPrefix to tell a job fragment apart
// from the page's own routing state, so the two must stay in sync.
const InstructionHeader = "Create a table with columns: Date, Meeting Name, Accomplishments, Upcoming, Risks, Decisions. Use bullets for text within cells. Data source:\n\n"

// HeaderPrefix is the case-insensitive marker the agent checks for
const HeaderPrefix = "create a table with columns"

// Expected outcomes, not failures: surfaced to the operator as messages.
var (
	ErrEmptySource = errors.New("raw table has no rows")
	ErrNothingNew  = errors.New("no raw notes with status New")
)

// Job is the transient hand-off payload. It is consumed exactly once;
// nothing persists it.
type Job struct {
	Text   string
	RowIDs []int64
}

// Aggregate builds the job from every New raw note in table order and
// marks those rows Processed before returning. Marking first means a
// crash or abandoned hand-off can never fold the same rows into a second
// job; the cost is that an unretried hand-off strands them as Processed.
// That at-most-once trade is deliberate and must not be flipped to
// mark-after-success.
func Aggregate(st *store.Store) (*Job, error) {
	notes, err := st.ListRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to read raw notes: %w", err)
	}
	if len(notes) == 0 {
		return nil, ErrEmptySource
	}

	var b strings.Builder
	var ids []int64
	for _, n := range notes {
		if n.Status != store.StatusNew {
			continue
		}
		fmt.Fprintf(&b, "MEETING: %s\nCONTENT: %s\n\n", n.Subject, n.Body)
		ids = append(ids, n.ID)
	}
	if len(ids) == 0 {
		return nil, ErrNothingNew
	}

	if err := st.MarkRawProcessed(ids); err != nil {
		return nil, fmt.Errorf("failed to mark notes processed: %w", err)
	}

	return &Job{
		Text:   InstructionHeader + b.String(),
		RowIDs: ids,
	}, nil
}

// IsJobText reports whether a fragment carries a job, i.e. begins with
// the instruction-header prefix.
func IsJobText(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), HeaderPrefix)
}
