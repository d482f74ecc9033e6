package account

import (
	"regexp"
	"testing"
)

func TestNewHealthID_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^JEEV[A-Z0-9]{9}$`)
	for i := 0; i < 1000; i++ {
		id, err := NewHealthID()
		if err != nil {
			t.Fatalf("NewHealthID: %v", err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("health id %q does not match JEEV[A-Z0-9]{9}", id)
		}
	}
}

func TestNewHealthID_Unique(t *testing.T) {
	const n = 10000
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id, err := NewHealthID()
		if err != nil {
			t.Fatalf("NewHealthID: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate health id %s after %d generations", id, i)
		}
		seen[id] = true
	}
}

func TestValidHealthID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"JEEVABCDE1234", true},
		{"JEEV000000000", true},
		{"JEEVabcde1234", false},
		{"JEEVABCDE123", false},
		{"JEEVABCDE12345", false},
		{"XEEVABCDE1234", false},
		{"", false},
		{"NOT_A_REAL_ID", false},
	}
	for _, tt := range tests {
		if got := ValidHealthID(tt.in); got != tt.want {
			t.Errorf("ValidHealthID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
