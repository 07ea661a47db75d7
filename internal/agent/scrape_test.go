package agent

import (
	"reflect"
	"testing"
)

func TestParseTable(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    [][]string
		wantErr bool
	}{
		{
			name: "header row skipped",
			html: `<table>
				<tr><th>Date</th><th>Meeting Name</th></tr>
				<tr><td>2024-01-01</td><td>Weekly Sync</td></tr>
			</table>`,
			want: [][]string{{"2024-01-01", "Weekly Sync"}},
		},
		{
			name: "cell text trimmed",
			html: `<table>
				<tr><td>h1</td><td>h2</td></tr>
				<tr><td>  2024-01-01
				</td><td>
					Standup  </td></tr>
			</table>`,
			want: [][]string{{"2024-01-01", "Standup"}},
		},
		{
			name: "short rows kept as-is",
			html: `<table>
				<tr><td>h</td></tr>
				<tr><td>a</td><td>b</td><td>c</td></tr>
				<tr><td>d</td></tr>
			</table>`,
			want: [][]string{{"a", "b", "c"}, {"d"}},
		},
		{
			name: "th-only body rows dropped",
			html: `<table>
				<tr><th>h</th></tr>
				<tr><th>section</th></tr>
				<tr><td>a</td></tr>
			</table>`,
			want: [][]string{{"a"}},
		},
		{
			name:    "header only",
			html:    `<table><tr><th>Date</th><th>Name</th></tr></table>`,
			wantErr: true,
		},
		{
			name:    "no table at all",
			html:    `<div>still thinking</div>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTable(tt.html)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTable: err = %v, wantErr = %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseTable = %v, want %v", got, tt.want)
			}
		})
	}
}
