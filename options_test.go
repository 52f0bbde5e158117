package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTargets(t *testing.T) {
	tests := []struct {
		in      string
		want    []int64
		wantErr bool
	}{
		{"-100000,0", []int64{-100000, 0}, false},
		{" 5000 , -5000 ,", []int64{5000, -5000}, false},
		{"42", []int64{42}, false},
		{"", nil, true},
		{"1,two", nil, true},
	}

	for _, tt := range tests {
		got, err := ParseTargets(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTargets(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseTargets(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestParseRunMode(t *testing.T) {
	for _, m := range []RunMode{RunModeSequence, RunModeJog} {
		got, err := ParseRunMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseRunMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseRunMode("keyboard"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
