package aggregator

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/recap-reports/recap/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "recap.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAggregateEmptySource(t *testing.T) {
	st := newTestStore(t)

	if _, err := Aggregate(st); !errors.Is(err, ErrEmptySource) {
		t.Errorf("got %v, want ErrEmptySource", err)
	}
}

func TestAggregateNothingNew(t *testing.T) {
	st := newTestStore(t)

	note := &store.RawNote{Subject: "Old", Body: "done", Status: store.StatusProcessed}
	if err := st.AppendRaw(note); err != nil {
		t.Fatalf("AppendRaw: %v", err)
	}

	if _, err := Aggregate(st); !errors.Is(err, ErrNothingNew) {
		t.Errorf("got %v, want ErrNothingNew", err)
	}

	// No mutation on the no-op paths
	notes, err := st.ListRaw()
	if err != nil {
		t.Fatalf("ListRaw: %v", err)
	}
	if len(notes) != 1 || notes[0].Status != store.StatusProcessed {
		t.Errorf("store mutated by a no-op aggregate: %+v", notes)
	}
}

func TestAggregateBuildsJobInOrder(t *testing.T) {
	st := newTestStore(t)

	meetings := []struct{ subject, body string }{
		{"Weekly Sync", "Shipped X"},
		{"Planning", "Planned Y"},
		{"Retro", "Discussed Z"},
	}
	for _, m := range meetings {
		if err := st.AppendRaw(&store.RawNote{Subject: m.subject, Body: m.body, Status: store.StatusNew}); err != nil {
			t.Fatalf("AppendRaw: %v", err)
		}
	}
	// A processed row must not appear in the job
	if err := st.AppendRaw(&store.RawNote{Subject: "Ancient", Body: "skip me", Status: store.StatusProcessed}); err != nil {
		t.Fatalf("AppendRaw: %v", err)
	}

	job, err := Aggregate(st)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if !strings.HasPrefix(job.Text, InstructionHeader) {
		t.Errorf("job does not start with the instruction header")
	}
	if len(job.RowIDs) != 3 {
		t.Errorf("got %d row ids, want 3", len(job.RowIDs))
	}
	if strings.Contains(job.Text, "Ancient") {
		t.Errorf("processed row leaked into the job")
	}

	// Each subject/body appears exactly once, in table order
	lastIdx := -1
	for _, m := range meetings {
		entry := "MEETING: " + m.subject + "\nCONTENT: " + m.body + "\n\n"
		if strings.Count(job.Text, entry) != 1 {
			t.Errorf("entry for %q appears %d times, want 1", m.subject, strings.Count(job.Text, entry))
		}
		idx := strings.Index(job.Text, entry)
		if idx < lastIdx {
			t.Errorf("entry for %q out of table order", m.subject)
		}
		lastIdx = idx
	}
}

func TestAggregateMarksBeforeHandOff(t *testing.T) {
	st := newTestStore(t)

	if err := st.AppendRaw(&store.RawNote{Subject: "Sync", Body: "notes", Status: store.StatusNew}); err != nil {
		t.Fatalf("AppendRaw: %v", err)
	}

	if _, err := Aggregate(st); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	// The rows are Processed the moment the job exists, before any
	// external call could happen
	notes, err := st.ListRaw()
	if err != nil {
		t.Fatalf("ListRaw: %v", err)
	}
	if notes[0].Status != store.StatusProcessed {
		t.Errorf("got status %q, want Processed immediately after aggregation", notes[0].Status)
	}

	// A second aggregate therefore finds nothing, even if the hand-off
	// never happened
	if _, err := Aggregate(st); !errors.Is(err, ErrNothingNew) {
		t.Errorf("second aggregate: got %v, want ErrNothingNew", err)
	}
}

func TestIsJobText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"real job", InstructionHeader + "MEETING: x\n", true},
		{"case insensitive", "CREATE A TABLE WITH COLUMNS: whatever", true},
		{"leading whitespace", "  \ncreate a table with columns: x", true},
		{"empty", "", false},
		{"page routing state", "/conversation/12345", false},
		{"unrelated text", "hello world", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsJobText(tt.text); got != tt.want {
				t.Errorf("IsJobText(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
