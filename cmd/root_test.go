package cmd

import (
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"milliseconds", "500ms", 500 * time.Millisecond, false},
		{"seconds", "2s", 2 * time.Second, false},
		{"not a duration", "bogus", 0, true},
		{"bare number", "5", 0, true},
		{"zero", "0s", 0, true},
		{"negative", "-1s", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInterval(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseInterval(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseInterval(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseInterval(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
