package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"q", Command{Name: "q"}},
		{"  Dedupe ", Command{Name: "dedupe"}},
		{"review spam campaign", Command{Name: "review", Args: "spam campaign"}},
		{"filter tab=reviewed", Command{Name: "filter", Args: "tab=reviewed"}},
		{"scoreMin=30&sort=score_desc", Command{Name: "filter", Args: "scoreMin=30&sort=score_desc"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
