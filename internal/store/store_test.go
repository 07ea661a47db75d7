package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(filepath.Join(t.TempDir(), "recap.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAppendRawPreservesOrder(t *testing.T) {
	st := newTestStore(t)

	subjects := []string{"Standup", "Planning", "Retro"}
	for _, s := range subjects {
		note := &RawNote{ReceivedAt: time.Now(), Subject: s, Body: "notes", Status: StatusNew}
		if err := st.AppendRaw(note); err != nil {
			t.Fatalf("AppendRaw(%s): %v", s, err)
		}
		if note.ID == 0 {
			t.Errorf("AppendRaw(%s): ID not set", s)
		}
	}

	notes, err := st.ListRaw()
	if err != nil {
		t.Fatalf("ListRaw: %v", err)
	}
	if len(notes) != len(subjects) {
		t.Fatalf("got %d notes, want %d", len(notes), len(subjects))
	}
	for i, n := range notes {
		if n.Subject != subjects[i] {
			t.Errorf("note %d: got subject %q, want %q (insertion order lost)", i, n.Subject, subjects[i])
		}
		if n.Status != StatusNew {
			t.Errorf("note %d: got status %q, want %q", i, n.Status, StatusNew)
		}
	}
}

func TestMarkRawProcessed(t *testing.T) {
	st := newTestStore(t)

	var ids []int64
	for _, s := range []string{"a", "b", "c"} {
		note := &RawNote{Subject: s, Body: s, Status: StatusNew}
		if err := st.AppendRaw(note); err != nil {
			t.Fatalf("AppendRaw: %v", err)
		}
		ids = append(ids, note.ID)
	}

	// Mark only the first two
	if err := st.MarkRawProcessed(ids[:2]); err != nil {
		t.Fatalf("MarkRawProcessed: %v", err)
	}

	notes, err := st.ListRaw()
	if err != nil {
		t.Fatalf("ListRaw: %v", err)
	}
	want := []Status{StatusProcessed, StatusProcessed, StatusNew}
	for i, n := range notes {
		if n.Status != want[i] {
			t.Errorf("note %d: got status %q, want %q", i, n.Status, want[i])
		}
	}

	// Empty id list is a no-op, not an error
	if err := st.MarkRawProcessed(nil); err != nil {
		t.Errorf("MarkRawProcessed(nil): %v", err)
	}
}

func TestMeetingFromRowPadding(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want [MeetingFields]string
	}{
		{
			name: "full row",
			row:  []string{"2024-01-01", "Sync", "a", "b", "c", "d"},
			want: [MeetingFields]string{"2024-01-01", "Sync", "a", "b", "c", "d"},
		},
		{
			name: "one field short",
			row:  []string{"d", "m", "a", "u", "r"},
			want: [MeetingFields]string{"d", "m", "a", "u", "r", ""},
		},
		{
			name: "single field",
			row:  []string{"only"},
			want: [MeetingFields]string{"only", "", "", "", "", ""},
		},
		{
			name: "empty row",
			row:  nil,
			want: [MeetingFields]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MeetingFromRow(tt.row)
			if m.Fields() != tt.want {
				t.Errorf("got %v, want %v", m.Fields(), tt.want)
			}
			if m.Status != StatusNew {
				t.Errorf("got status %q, want %q", m.Status, StatusNew)
			}
		})
	}
}

func TestAppendMeetingsAndCounts(t *testing.T) {
	st := newTestStore(t)

	meetings := []Meeting{
		MeetingFromRow([]string{"2024-01-01", "Sync", "Shipped X", "", "", ""}),
		MeetingFromRow([]string{"2024-01-08", "Planning", "Planned Y"}),
	}
	if err := st.AppendMeetings(meetings); err != nil {
		t.Fatalf("AppendMeetings: %v", err)
	}

	got, err := st.ListMeetings()
	if err != nil {
		t.Fatalf("ListMeetings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d meetings, want 2", len(got))
	}
	if got[0].Name != "Sync" || got[1].Name != "Planning" {
		t.Errorf("order lost: got %q, %q", got[0].Name, got[1].Name)
	}

	counts, err := st.MeetingCounts()
	if err != nil {
		t.Fatalf("MeetingCounts: %v", err)
	}
	if counts.Total != 2 || counts.New != 2 {
		t.Errorf("got counts %+v, want Total=2 New=2", counts)
	}
}

func TestTruncatePreservesSchema(t *testing.T) {
	st := newTestStore(t)

	if err := st.AppendRaw(&RawNote{Subject: "s", Body: "b"}); err != nil {
		t.Fatalf("AppendRaw: %v", err)
	}
	if err := st.AppendMeetings([]Meeting{MeetingFromRow([]string{"d"})}); err != nil {
		t.Fatalf("AppendMeetings: %v", err)
	}

	if err := st.Truncate(); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	raw, err := st.RawCounts()
	if err != nil {
		t.Fatalf("RawCounts: %v", err)
	}
	meetings, err := st.MeetingCounts()
	if err != nil {
		t.Fatalf("MeetingCounts: %v", err)
	}
	if raw.Total != 0 || meetings.Total != 0 {
		t.Errorf("tables not empty after truncate: raw=%d meetings=%d", raw.Total, meetings.Total)
	}

	// Schema survives: appends still work
	if err := st.AppendRaw(&RawNote{Subject: "after", Body: "truncate"}); err != nil {
		t.Errorf("AppendRaw after Truncate: %v", err)
	}
}
