package duration

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
		want    time.Duration
	}{
		{"0", false, 0},
		{"30m", false, 30 * time.Minute},
		{"90mins", false, 90 * time.Minute},
		{"1h", false, time.Hour},
		{"1h30m", false, 90 * time.Minute},
		{"2hours", false, 2 * time.Hour},
		{"1d", false, 24 * time.Hour},
		{"1w", false, 7 * 24 * time.Hour},
		{"-1h", true, 0},
		{"3mo", true, 0},
		{"invalid", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
